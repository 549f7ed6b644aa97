package auth

import "errors"

// Error kinds returned by the auth flows and the role gate. Every *Error
// unwraps to exactly one of these, so callers branch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrOTPExpired   = errors.New("otp expired")
	ErrOTPInvalid   = errors.New("otp invalid")
	ErrRateLimited  = errors.New("rate limited")
)

// Error is a client-visible auth failure: a kind plus the message shown
// to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Message returns the client-facing message for err if it is an *Error,
// or fallback otherwise.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}
