package auth

import (
	"errors"
	"strings"
	"time"
)

// Role is the account tier that route gates check against.
type Role string

const (
	// RoleOwner owns properties and manages their units.
	RoleOwner Role = "owner"

	// RoleTenant rents a unit. The default role at registration.
	RoleTenant Role = "tenant"

	// RoleSupervisor looks after properties on an owner's behalf.
	RoleSupervisor Role = "supervisor"

	// RoleProvider is an external maintenance or service provider.
	RoleProvider Role = "provider"

	// RoleAdmin has full control, including user management.
	RoleAdmin Role = "admin"
)

// ValidRoles is the fixed set of account roles.
var ValidRoles = []Role{RoleOwner, RoleTenant, RoleSupervisor, RoleProvider, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User is an account record in the user directory.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsVerified   bool      `json:"is_verified"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Purpose tags what an OTP code is for. The set is open; these are the
// purposes the auth flows issue.
type Purpose string

const (
	PurposeVerification  Purpose = "verification"
	PurposePasswordReset Purpose = "password_reset"
)

// OTPCode is a one-time numeric code bound to a user and a purpose.
type OTPCode struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Code      string    `json:"-"`
	Purpose   Purpose   `json:"purpose"`
	IsUsed    bool      `json:"is_used"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsExpired reports whether the code has lapsed at now. Both sides are
// compared in UTC.
func (o *OTPCode) IsExpired(now time.Time) bool {
	return now.UTC().After(o.ExpiresAt.UTC())
}

// Sentinel errors for repository and codec operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailExists   = errors.New("email already registered")
	ErrPhoneExists   = errors.New("phone number already registered")
	ErrOTPNotFound   = errors.New("otp not found")
	ErrTokenExpired  = errors.New("token has expired")
	ErrTokenInvalid  = errors.New("invalid token")
	ErrUnknownMethod = errors.New("unsupported signing algorithm")
)
