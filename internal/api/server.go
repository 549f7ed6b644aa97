package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amarati/amarati-core/internal/audit"
	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/config"
	"github.com/amarati/amarati-core/internal/infrastructure/logging"
	"github.com/amarati/amarati-core/internal/property"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker reports whether a backing store is reachable.
// *database.DB satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	App           config.AppConfig
	Logger        *logging.Logger
	DB            HealthChecker // optional: /health reports "degraded" when it fails
	Auth          *auth.Service
	Authenticator *auth.Authenticator
	Users         auth.UserRepository
	Properties    property.Repository
	AuditRepo     audit.Repository // optional: /audit-logs returns 500 without it
	Audit         *audit.Recorder  // optional: management events are not recorded without it
	Metrics       *Metrics         // optional: a fresh registry is created when nil
	Version       string
}

// Server is the HTTP API server for Amarati.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	app           config.AppConfig
	logger        *logging.Logger
	db            HealthChecker
	authSvc       *auth.Service
	authenticator *auth.Authenticator
	users         auth.UserRepository
	properties    property.Repository
	auditRepo     audit.Repository
	audit         *audit.Recorder
	metrics       *Metrics
	version       string
	server        *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil || deps.Authenticator == nil {
		return nil, fmt.Errorf("auth service and authenticator are required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.Properties == nil {
		return nil, fmt.Errorf("property repository is required")
	}

	s := &Server{
		cfg:           deps.Config,
		app:           deps.App,
		logger:        deps.Logger,
		db:            deps.DB,
		authSvc:       deps.Auth,
		authenticator: deps.Authenticator,
		users:         deps.Users,
		properties:    deps.Properties,
		auditRepo:     deps.AuditRepo,
		audit:         deps.Audit,
		metrics:       deps.Metrics,
		version:       deps.Version,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
