package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/config"
	"github.com/amarati/amarati-core/internal/infrastructure/logging"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func testUser() *auth.User {
	return &auth.User{ID: "usr-1", Email: "ada@example.com", FullName: "Ada Lovelace"}
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSMTPSender_SendOTP(t *testing.T) {
	d := &captureDialer{}
	s := NewSMTPSenderWithDialer(d, "no-reply@amarati.test", "Amarati", nil)

	require.NoError(t, s.SendOTP(context.Background(), testUser(), "482913", auth.PurposeVerification))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"ada@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@amarati.test"}, m.GetHeader("From"))
	assert.Equal(t, []string{"[Amarati] Verify your account"}, m.GetHeader("Subject"))
	assert.Contains(t, render(t, m), "482913")
}

func TestSMTPSender_PasswordResetSubject(t *testing.T) {
	d := &captureDialer{}
	s := NewSMTPSenderWithDialer(d, "no-reply@amarati.test", "Amarati", nil)

	require.NoError(t, s.SendOTP(context.Background(), testUser(), "111111", auth.PurposePasswordReset))
	assert.Equal(t, []string{"[Amarati] Password reset code"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPSender_Errors(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewSMTPSenderWithDialer(&captureDialer{err: boom}, "from@amarati.test", "Amarati", nil)

	err := s.SendOTP(context.Background(), testUser(), "123456", auth.PurposeVerification)
	assert.ErrorIs(t, err, boom)

	err = s.SendOTP(context.Background(), &auth.User{ID: "usr-2"}, "123456", auth.PurposeVerification)
	assert.ErrorIs(t, err, ErrNoRecipient)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.SendOTP(ctx, testUser(), "123456", auth.PurposeVerification)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogSender_CodeOnlyInDebug(t *testing.T) {
	for _, debug := range []bool{false, true} {
		var buf bytes.Buffer
		logger := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)

		s := NewLogSender(logger, debug)
		require.NoError(t, s.SendOTP(context.Background(), testUser(), "654321", auth.PurposeVerification))

		out := buf.String()
		assert.Contains(t, out, "usr-1")
		assert.Equal(t, debug, strings.Contains(out, "654321"), "debug=%v output=%s", debug, out)
	}
}
