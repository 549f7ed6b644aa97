package api

import (
	"net/http"
	"time"

	"github.com/amarati/amarati-core/internal/auth"
)

// Auth flow names used as metric labels.
const (
	flowRegister       = "register"
	flowVerifyOTP      = "verify_otp"
	flowResendOTP      = "resend_otp"
	flowLogin          = "login"
	flowRefresh        = "refresh"
	flowResetRequest   = "password_reset_request"
	flowResetConfirm   = "password_reset_confirm"
	flowChangePassword = "password_change"
)

type registerRequest struct {
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=8,max=128"`
	FullName string    `json:"full_name" validate:"required,min=2,max=255"`
	Phone    string    `json:"phone" validate:"omitempty,max=20"`
	Role     auth.Role `json:"role" validate:"omitempty,oneof=owner tenant supervisor provider admin"`
}

type registerResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Role       auth.Role `json:"role"`
	IsVerified bool      `json:"is_verified"`
	Message    string    `json:"message"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,min=4,max=10"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type confirmResetRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,min=4,max=10"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	UserID       string    `json:"user_id"`
	Role         auth.Role `json:"role"`
}

type otpResponse struct {
	Message string  `json:"message"`
	OTPCode *string `json:"otp_code"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// userResponse is the public shape of a user. Unset optional fields are null.
type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Phone      *string   `json:"phone"`
	FullName   string    `json:"full_name"`
	Role       auth.Role `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	AvatarURL  *string   `json:"avatar_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Phone:      optional(u.Phone),
		FullName:   u.FullName,
		Role:       u.Role,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		AvatarURL:  optional(u.AvatarURL),
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toTokenResponse(sess *auth.Session) tokenResponse {
	return tokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(sess.ExpiresIn.Seconds()),
		UserID:       sess.UserID,
		Role:         sess.Role,
	}
}

func toOTPResponse(res *auth.OTPResult) otpResponse {
	return otpResponse{Message: res.Message, OTPCode: optional(res.Code)}
}

// handleRegister creates an unverified account.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.authSvc.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     req.Role,
	})
	s.metrics.authOutcome(flowRegister, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:         user.ID,
		Email:      user.Email,
		FullName:   user.FullName,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		Message:    auth.MsgRegistered,
	})
}

// handleVerifyOTP activates an account and logs it in.
func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.authSvc.VerifyOTP(r.Context(), req.Email, req.Code)
	s.metrics.authOutcome(flowVerifyOTP, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(sess))
}

// handleResendOTP issues a fresh verification code.
func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.authSvc.ResendOTP(r.Context(), req.Email)
	s.metrics.authOutcome(flowResendOTP, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOTPResponse(res))
}

// handleLogin exchanges credentials for a token pair.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.authSvc.Login(r.Context(), req.Email, req.Password)
	s.metrics.authOutcome(flowLogin, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(sess))
}

// handleRefresh exchanges a refresh token for a new pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.authSvc.Refresh(r.Context(), req.RefreshToken)
	s.metrics.authOutcome(flowRefresh, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(sess))
}

// handleRequestPasswordReset issues a password reset code.
func (s *Server) handleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.authSvc.RequestPasswordReset(r.Context(), req.Email)
	s.metrics.authOutcome(flowResetRequest, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOTPResponse(res))
}

// handleConfirmPasswordReset sets a new password using a reset code.
func (s *Server) handleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := s.authSvc.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.NewPassword)
	s.metrics.authOutcome(flowResetConfirm, err)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: auth.MsgPasswordReset})
}

// handleMe returns the signed-in user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(id.User))
}

// handleLogout acknowledges a logout. Tokens stay valid until they expire;
// the client discards them.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: auth.MsgLoggedOut})
}
