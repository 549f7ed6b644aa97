package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/amarati/amarati-core/internal/auth"
)

// healthCheckTimeout bounds the database probe behind /health.
const healthCheckTimeout = 2 * time.Second

// endpoint describes one route in the /docs index.
type endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Auth   string `json:"auth"`
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(s.authMiddleware)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/docs", s.handleDocs)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.With(s.signedIn, s.gate(auth.ResourceUsers, auth.ActionRead)).Get("/metrics", s.handleMetrics)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/verify-otp", s.handleVerifyOTP)
			r.Post("/resend-otp", s.handleResendOTP)
			r.Post("/login", s.handleLogin)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/request-password-reset", s.handleRequestPasswordReset)
			r.Post("/confirm-password-reset", s.handleConfirmPasswordReset)
			r.Get("/me", s.handleMe)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(s.signedIn, s.gate(auth.ResourceUsers, auth.ActionRead)).Get("/", s.handleListUsers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetUser)
				r.Put("/", s.handleUpdateUser)
				r.Post("/change-password", s.handleChangePassword)
				r.With(s.signedIn, s.gate(auth.ResourceUsers, auth.ActionDelete)).Delete("/", s.handleDeactivateUser)
			})
		})

		r.Route("/properties", func(r chi.Router) {
			r.With(s.gate(auth.ResourceProperties, auth.ActionCreate)).Post("/", s.handleCreateProperty)
			r.Get("/", s.handleListProperties)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProperty)
				r.With(s.gate(auth.ResourceProperties, auth.ActionUpdate)).Put("/", s.handleUpdateProperty)
				r.With(s.gate(auth.ResourceProperties, auth.ActionDelete)).Delete("/", s.handleDeleteProperty)
			})
		})

		r.Route("/units", func(r chi.Router) {
			r.With(s.gate(auth.ResourceUnits, auth.ActionCreate)).Post("/", s.handleCreateUnit)
			r.Get("/property/{propertyID}", s.handleListUnitsByProperty)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetUnit)
				r.With(s.gate(auth.ResourceUnits, auth.ActionUpdate)).Put("/", s.handleUpdateUnit)
				r.With(s.gate(auth.ResourceUnits, auth.ActionDelete)).Delete("/", s.handleDeleteUnit)
			})
		})

		r.With(s.signedIn, s.gate(auth.ResourceUsers, auth.ActionRead)).Get("/audit-logs", s.handleListAuditLogs)
	})

	return r
}

// handleRoot returns service identity.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     s.app.Name,
		"version": s.version,
		"docs":    "/docs",
	})
}

// handleHealth returns the server health status. It reports "degraded"
// with 503 when the database probe fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"app":     s.app.Name,
		"version": s.version,
	})
}

// handleDocs lists the API surface.
func (s *Server) handleDocs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":       s.app.Name,
		"version":   s.version,
		"endpoints": apiEndpoints,
		"roles":     rolePermissions(),
	})
}

// rolePermissions lists the resource grants of every role.
func rolePermissions() map[auth.Role]map[auth.Resource][]auth.Action {
	roles := make(map[auth.Role]map[auth.Resource][]auth.Action, len(auth.ValidRoles))
	for _, role := range auth.ValidRoles {
		roles[role] = auth.PermissionsForRole(role)
	}
	return roles
}

var apiEndpoints = []endpoint{
	{http.MethodGet, "/health", "public"},
	{http.MethodPost, "/api/v1/auth/register", "public"},
	{http.MethodPost, "/api/v1/auth/verify-otp", "public"},
	{http.MethodPost, "/api/v1/auth/resend-otp", "public"},
	{http.MethodPost, "/api/v1/auth/login", "public"},
	{http.MethodPost, "/api/v1/auth/refresh", "public"},
	{http.MethodPost, "/api/v1/auth/request-password-reset", "public"},
	{http.MethodPost, "/api/v1/auth/confirm-password-reset", "public"},
	{http.MethodGet, "/api/v1/auth/me", "bearer"},
	{http.MethodPost, "/api/v1/auth/logout", "bearer"},
	{http.MethodGet, "/api/v1/users", "admin"},
	{http.MethodGet, "/api/v1/users/{id}", "self or admin"},
	{http.MethodPut, "/api/v1/users/{id}", "self or admin"},
	{http.MethodPost, "/api/v1/users/{id}/change-password", "self"},
	{http.MethodDelete, "/api/v1/users/{id}", "admin"},
	{http.MethodPost, "/api/v1/properties", "owner, admin"},
	{http.MethodGet, "/api/v1/properties", "bearer"},
	{http.MethodGet, "/api/v1/properties/{id}", "bearer"},
	{http.MethodPut, "/api/v1/properties/{id}", "owner, admin"},
	{http.MethodDelete, "/api/v1/properties/{id}", "owner, admin"},
	{http.MethodPost, "/api/v1/units", "owner, admin"},
	{http.MethodGet, "/api/v1/units/property/{property_id}", "bearer"},
	{http.MethodGet, "/api/v1/units/{id}", "bearer"},
	{http.MethodPut, "/api/v1/units/{id}", "owner, supervisor, admin"},
	{http.MethodDelete, "/api/v1/units/{id}", "owner, admin"},
	{http.MethodGet, "/api/v1/audit-logs", "admin"},
	{http.MethodGet, "/api/v1/metrics", "admin"},
}
