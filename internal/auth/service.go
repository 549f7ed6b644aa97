package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amarati/amarati-core/internal/infrastructure/logging"
)

// Client-facing success messages.
const (
	MsgRegistered      = "Registration successful. Please verify your account with the OTP sent."
	MsgOTPSent         = "OTP sent successfully"
	MsgResetOTPSent    = "Password reset OTP sent"
	MsgPasswordReset   = "Password reset successful. You can now login with your new password."
	MsgPasswordChanged = "Password changed successfully"
	MsgLoggedOut       = "Successfully logged out"
)

// Failure messages shared by more than one flow.
const (
	msgUserNotFound       = "User not found"
	msgInvalidCredentials = "Invalid email or password"
	msgDeactivated        = "Account is deactivated"
	msgOTPExpired         = "OTP has expired"
	msgOTPInvalid         = "Invalid OTP code"
	msgTooManyRequests    = "Too many requests. Please try again later."
)

// Audit actions emitted by the Service.
const (
	EventRegister             = "register"
	EventVerifyOTP            = "verify_otp"
	EventResendOTP            = "resend_otp"
	EventLogin                = "login"
	EventLoginFailed          = "login_failed"
	EventRefresh              = "refresh"
	EventPasswordResetRequest = "password_reset_request"
	EventPasswordReset        = "password_reset"
	EventPasswordChange       = "password_change"
)

// OTPSender delivers a freshly issued code to the account holder.
type OTPSender interface {
	SendOTP(ctx context.Context, user *User, code string, purpose Purpose) error
}

// Limiter decides whether another attempt under key is allowed right now.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Event is an auth occurrence worth keeping in the audit trail.
type Event struct {
	Action  string
	UserID  string
	Details map[string]any
}

// EventRecorder receives auth events. Implementations must not block.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event Event)
}

// ServiceConfig holds the tunables of the auth flows.
type ServiceConfig struct {
	OTPTTL    time.Duration
	OTPLength int

	// Debug echoes raw OTP codes in OTPResult. Never enable in production.
	Debug bool
}

// ServiceDeps holds dependencies for the auth Service. Users, OTPs and
// Codec are required; the rest are optional.
type ServiceDeps struct {
	Users        UserRepository
	OTPs         OTPRepository
	Codec        *TokenCodec
	Sender       OTPSender
	OTPLimiter   Limiter
	LoginLimiter Limiter
	Events       EventRecorder
	Clock        func() time.Time
	Logger       *logging.Logger
	Config       ServiceConfig
}

// Service runs the registration, verification, login, refresh and password
// flows over the user directory and the OTP store.
type Service struct {
	users        UserRepository
	otps         OTPRepository
	codec        *TokenCodec
	sender       OTPSender
	otpLimiter   Limiter
	loginLimiter Limiter
	events       EventRecorder
	now          func() time.Time
	logger       *logging.Logger
	cfg          ServiceConfig
}

// NewService creates an auth Service.
func NewService(deps ServiceDeps) *Service {
	s := &Service{
		users:        deps.Users,
		otps:         deps.OTPs,
		codec:        deps.Codec,
		sender:       deps.Sender,
		otpLimiter:   deps.OTPLimiter,
		loginLimiter: deps.LoginLimiter,
		events:       deps.Events,
		now:          deps.Clock,
		logger:       deps.Logger,
		cfg:          deps.Config,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.cfg.OTPTTL <= 0 {
		s.cfg.OTPTTL = DefaultOTPTTL
	}
	if s.cfg.OTPLength <= 0 {
		s.cfg.OTPLength = DefaultOTPLength
	}
	return s
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
	Role     Role
}

// Session is the result of a flow that logs the caller in.
type Session struct {
	TokenPair
	UserID string
	Role   Role
}

// OTPResult is the result of an OTP-issuing flow. Code is set only in
// debug mode.
type OTPResult struct {
	Message string
	Code    string
}

// Register creates an unverified account and issues a verification code.
// No tokens are issued.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := NormalizeEmail(in.Email)

	role := in.Role
	if role == "" {
		role = RoleTenant
	}
	if !IsValidRole(role) {
		return nil, newError(ErrBadRequest, fmt.Sprintf("Invalid role '%s'", role))
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, newError(ErrConflict, "Email already registered")
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	if in.Phone != "" {
		if _, err := s.users.GetByPhone(ctx, in.Phone); err == nil {
			return nil, newError(ErrConflict, "Phone number already registered")
		} else if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("checking phone: %w", err)
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		Phone:        in.Phone,
		FullName:     in.FullName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		IsVerified:   false,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			return nil, newError(ErrConflict, "Email already registered")
		case errors.Is(err, ErrPhoneExists):
			return nil, newError(ErrConflict, "Phone number already registered")
		}
		return nil, err
	}

	if _, err := s.issueOTP(ctx, user, PurposeVerification, false); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", string(user.Role))
	s.record(ctx, EventRegister, user.ID, map[string]any{"role": string(user.Role)})

	return user, nil
}

// VerifyOTP checks a verification code, marks the account verified and
// logs the caller in.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (*Session, error) {
	user, err := s.userForOTP(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, newError(ErrUnauthorized, msgDeactivated)
	}

	otp, err := s.checkOTP(ctx, user.ID, PurposeVerification, code,
		"No valid OTP found. Please request a new one.")
	if err != nil {
		return nil, err
	}

	if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
		return nil, err
	}
	if err := s.users.SetVerified(ctx, user.ID, true); err != nil {
		return nil, err
	}
	user.IsVerified = true

	s.logger.Info("user verified", "user_id", user.ID)
	s.record(ctx, EventVerifyOTP, user.ID, nil)

	return s.session(user)
}

// ResendOTP replaces any outstanding verification code with a new one.
func (s *Service) ResendOTP(ctx context.Context, email string) (*OTPResult, error) {
	if err := s.allow(ctx, s.otpLimiter, "otp:"+NormalizeEmail(email)); err != nil {
		return nil, err
	}

	user, err := s.userForOTP(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.IsVerified {
		return nil, newError(ErrBadRequest, "Account is already verified")
	}

	code, err := s.issueOTP(ctx, user, PurposeVerification, true)
	if err != nil {
		return nil, err
	}

	s.record(ctx, EventResendOTP, user.ID, nil)
	return s.otpResult(MsgOTPSent, code), nil
}

// Login checks credentials and issues a token pair. A missing account and
// a wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if err := s.allow(ctx, s.loginLimiter, "login:"+email); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.record(ctx, EventLoginFailed, "", map[string]any{"email": email, "reason": "unknown_email"})
			return nil, newError(ErrUnauthorized, msgInvalidCredentials)
		}
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		s.record(ctx, EventLoginFailed, user.ID, map[string]any{"reason": "bad_password"})
		return nil, newError(ErrUnauthorized, msgInvalidCredentials)
	}

	if !user.IsActive {
		return nil, newError(ErrUnauthorized, msgDeactivated)
	}
	if !user.IsVerified {
		return nil, newError(ErrBadRequest, "Account not verified. Please verify your OTP first.")
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	s.record(ctx, EventLogin, user.ID, nil)

	return s.session(user)
}

// Refresh exchanges a valid refresh token for a new token pair. The old
// refresh token stays valid until its own expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims := s.codec.VerifyRefresh(refreshToken)
	if claims == nil {
		return nil, newError(ErrUnauthorized, "Invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, newError(ErrUnauthorized, "User not found or inactive")
	}

	s.record(ctx, EventRefresh, user.ID, nil)
	return s.session(user)
}

// RequestPasswordReset replaces any outstanding reset code with a new one.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*OTPResult, error) {
	if err := s.allow(ctx, s.otpLimiter, "otp:"+NormalizeEmail(email)); err != nil {
		return nil, err
	}

	user, err := s.userForOTP(ctx, email)
	if err != nil {
		return nil, err
	}

	code, err := s.issueOTP(ctx, user, PurposePasswordReset, true)
	if err != nil {
		return nil, err
	}

	s.record(ctx, EventPasswordResetRequest, user.ID, nil)
	return s.otpResult(MsgResetOTPSent, code), nil
}

// ConfirmPasswordReset checks a reset code and replaces the password hash.
// The caller is not logged in.
func (s *Service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	user, err := s.userForOTP(ctx, email)
	if err != nil {
		return err
	}

	otp, err := s.checkOTP(ctx, user.ID, PurposePasswordReset, code, "No valid reset OTP found")
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.otps.MarkUsed(ctx, otp.ID); err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info("password reset", "user_id", user.ID)
	s.record(ctx, EventPasswordReset, user.ID, nil)
	return nil
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return newError(ErrNotFound, msgUserNotFound)
		}
		return err
	}

	ok, err := VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying password for %s: %w", user.ID, err)
	}
	if !ok {
		return newError(ErrUnauthorized, "Current password is incorrect")
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.record(ctx, EventPasswordChange, user.ID, nil)
	return nil
}

// userForOTP loads the account addressed by an OTP flow. These flows
// disclose a missing account as NotFound.
func (s *Service) userForOTP(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, newError(ErrNotFound, msgUserNotFound)
		}
		return nil, err
	}
	return user, nil
}

// checkOTP runs the shared validation sequence: a latest unused code must
// exist, must not be expired, and must match exactly.
func (s *Service) checkOTP(ctx context.Context, userID string, purpose Purpose, code, noneMsg string) (*OTPCode, error) {
	otp, err := s.otps.LatestValid(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return nil, newError(ErrOTPInvalid, noneMsg)
		}
		return nil, err
	}

	if otp.IsExpired(s.now()) {
		return nil, newError(ErrOTPExpired, msgOTPExpired)
	}
	if otp.Code != code {
		return nil, newError(ErrOTPInvalid, msgOTPInvalid)
	}
	return otp, nil
}

// issueOTP generates and stores a code for (user, purpose) and hands it to
// the sender. With replace set, outstanding codes for the pair are
// invalidated in the same transaction.
func (s *Service) issueOTP(ctx context.Context, user *User, purpose Purpose, replace bool) (string, error) {
	code, err := GenerateOTP(s.cfg.OTPLength)
	if err != nil {
		return "", err
	}

	if replace {
		_, err = s.otps.Replace(ctx, user.ID, code, purpose, s.cfg.OTPTTL)
	} else {
		_, err = s.otps.Create(ctx, user.ID, code, purpose, s.cfg.OTPTTL)
	}
	if err != nil {
		return "", err
	}

	if s.sender != nil {
		if err := s.sender.SendOTP(ctx, user, code, purpose); err != nil {
			s.logger.Warn("otp delivery failed",
				"user_id", user.ID,
				"purpose", string(purpose),
				"error", err,
			)
		}
	}

	return code, nil
}

func (s *Service) otpResult(message, code string) *OTPResult {
	res := &OTPResult{Message: message}
	if s.cfg.Debug {
		res.Code = code
	}
	return res
}

func (s *Service) session(user *User) (*Session, error) {
	pair, err := s.codec.IssuePair(user)
	if err != nil {
		return nil, err
	}
	return &Session{TokenPair: *pair, UserID: user.ID, Role: user.Role}, nil
}

// allow consults a limiter. A nil limiter or a limiter failure lets the
// request through.
func (s *Service) allow(ctx context.Context, l Limiter, key string) error {
	if l == nil {
		return nil
	}
	ok, err := l.Allow(ctx, key)
	if err != nil {
		s.logger.Warn("rate limiter unavailable", "key", key, "error", err)
		return nil
	}
	if !ok {
		return newError(ErrRateLimited, msgTooManyRequests)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, userID string, details map[string]any) {
	if s.events == nil {
		return
	}
	s.events.RecordEvent(ctx, Event{Action: action, UserID: userID, Details: details})
}
