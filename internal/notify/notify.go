// Package notify delivers one-time passcodes to account holders.
//
// SMTPSender mails codes through an SMTP relay. LogSender is the
// development fallback used when SMTP is not configured; it writes the
// code to the log only in debug mode.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/config"
	"github.com/amarati/amarati-core/internal/infrastructure/logging"
)

// ErrNoRecipient is returned when the user has no email address.
var ErrNoRecipient = errors.New("notify: empty recipient")

// Dialer sends fully built messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender mails OTP codes.
type SMTPSender struct {
	dialer  Dialer
	from    string
	appName string
	logger  *logging.Logger
}

// NewSMTPSender creates a sender from the smtp config section.
func NewSMTPSender(cfg config.SMTPConfig, appName string, logger *logging.Logger) *SMTPSender {
	return NewSMTPSenderWithDialer(
		gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		cfg.From, appName, logger)
}

// NewSMTPSenderWithDialer creates a sender that delivers through d.
func NewSMTPSenderWithDialer(d Dialer, from, appName string, logger *logging.Logger) *SMTPSender {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SMTPSender{dialer: d, from: from, appName: appName, logger: logger}
}

// SendOTP implements auth.OTPSender.
func (s *SMTPSender) SendOTP(ctx context.Context, user *auth.User, code string, purpose auth.Purpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(user.Email) == "" {
		return ErrNoRecipient
	}

	subject, lead := describe(purpose)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s", s.appName, subject))
	m.SetBody("text/plain", plainBody(user.FullName, lead, code))
	m.AddAlternative("text/html", htmlBody(s.appName, lead, code))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending %s email: %w", purpose, err)
	}

	s.logger.Info("otp email sent", "user_id", user.ID, "purpose", string(purpose))
	return nil
}

func describe(purpose auth.Purpose) (subject, lead string) {
	switch purpose {
	case auth.PurposePasswordReset:
		return "Password reset code", "Use this code to reset your password:"
	case auth.PurposeVerification:
		return "Verify your account", "Use this code to verify your account:"
	default:
		return "Your one-time code", "Your one-time code is:"
	}
}

func plainBody(name, lead, code string) string {
	greeting := "Hello"
	if name != "" {
		greeting += " " + name
	}
	return fmt.Sprintf("%s,\n\n%s %s\n\nIf you did not request this, you can ignore this email.\n",
		greeting, lead, code)
}

func htmlBody(appName, lead, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>%s</h2>
    <p>%s</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
  </div>
</body>
</html>`, appName, lead, code)
}

// LogSender records OTP issuance in the log instead of delivering it.
type LogSender struct {
	logger *logging.Logger
	debug  bool
}

// NewLogSender creates a LogSender. The code itself is logged only when
// debug is true.
func NewLogSender(logger *logging.Logger, debug bool) *LogSender {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogSender{logger: logger, debug: debug}
}

// SendOTP implements auth.OTPSender.
func (s *LogSender) SendOTP(_ context.Context, user *auth.User, code string, purpose auth.Purpose) error {
	if s.debug {
		s.logger.Info("otp issued (smtp disabled)",
			"user_id", user.ID, "purpose", string(purpose), "code", code)
		return nil
	}
	s.logger.Info("otp issued (smtp disabled)", "user_id", user.ID, "purpose", string(purpose))
	return nil
}
