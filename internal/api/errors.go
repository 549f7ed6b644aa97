package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/amarati/amarati-core/internal/auth"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeOTPExpired   = "otp_expired"
	ErrCodeOTPInvalid   = "otp_invalid"
)

// msgCredentials is the 401 message for routes that need a signed-in user.
const msgCredentials = "Could not validate credentials"

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response with a Bearer challenge.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeAuthError maps an auth error kind to its HTTP status. Anything that
// is not an *auth.Error is logged and reported as a generic 500.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	msg := auth.Message(err, "")

	switch {
	case msg == "":
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeInternalError(w, "internal server error")
	case errors.Is(err, auth.ErrUnauthorized):
		writeUnauthorized(w, msg)
	case errors.Is(err, auth.ErrForbidden):
		writeForbidden(w, msg)
	case errors.Is(err, auth.ErrNotFound):
		writeNotFound(w, msg)
	case errors.Is(err, auth.ErrConflict):
		writeConflict(w, msg)
	case errors.Is(err, auth.ErrOTPExpired):
		writeError(w, http.StatusBadRequest, ErrCodeOTPExpired, msg)
	case errors.Is(err, auth.ErrOTPInvalid):
		writeError(w, http.StatusBadRequest, ErrCodeOTPInvalid, msg)
	case errors.Is(err, auth.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, msg)
	default:
		writeBadRequest(w, msg)
	}
}
