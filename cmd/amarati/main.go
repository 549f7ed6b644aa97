// Amarati Core - property management backend
//
// This is the main entry point for the Amarati API server. It serves the
// account, authentication and property/unit management endpoints over a
// single SQLite database, with optional Redis-backed rate limiting and SMTP
// delivery of one-time codes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/amarati/amarati-core/migrations"

	"github.com/amarati/amarati-core/internal/api"
	"github.com/amarati/amarati-core/internal/audit"
	"github.com/amarati/amarati-core/internal/auth"
	"github.com/amarati/amarati-core/internal/infrastructure/config"
	"github.com/amarati/amarati-core/internal/infrastructure/database"
	"github.com/amarati/amarati-core/internal/infrastructure/logging"
	"github.com/amarati/amarati-core/internal/notify"
	"github.com/amarati/amarati-core/internal/property"
	"github.com/amarati/amarati-core/internal/ratelimit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// configPathEnv overrides defaultConfigPath.
	configPathEnv = "AMARATI_CONFIG"

	// seedAdminEnv names the email of the admin account created on first boot.
	seedAdminEnv = "AMARATI_SEED_ADMIN_EMAIL"

	redisPingTimeout = 3 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Amarati Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"debug", cfg.App.Debug,
	)
	if cfg.App.Debug {
		log.Warn("debug mode enabled: OTP codes are returned in API responses")
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schemaVersion, err := db.Version(ctx)
	if err != nil {
		return fmt.Errorf("checking schema: %w", err)
	}

	users := auth.NewUserRepository(db.DB)
	userCount, err := users.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	log.Info("database ready",
		"path", cfg.Database.Path,
		"schema_version", schemaVersion,
		"users", userCount,
	)
	properties := property.NewSQLiteRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	if email := os.Getenv(seedAdminEnv); email != "" {
		if _, seedErr := auth.SeedAdmin(ctx, users, email, log); seedErr != nil {
			return fmt.Errorf("seeding admin: %w", seedErr)
		}
	}

	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     cfg.Security.JWT.Secret,
		Algorithm:  cfg.Security.JWT.Algorithm,
		AccessTTL:  cfg.AccessTokenTTL(),
		RefreshTTL: cfg.RefreshTokenTTL(),
	})
	if err != nil {
		return fmt.Errorf("creating token codec: %w", err)
	}

	// The recorder outlives the HTTP server so in-flight entries drain.
	recorder := audit.NewRecorder(auditRepo, log.With("component", "audit"), audit.DefaultBufferSize)
	recCtx, stopRecorder := context.WithCancel(context.Background())
	go recorder.Run(recCtx)
	defer func() {
		stopRecorder()
		<-recorder.Done()
	}()

	serviceDeps := auth.ServiceDeps{
		Users:  users,
		OTPs:   auth.NewOTPRepository(db.DB),
		Codec:  codec,
		Sender: newOTPSender(cfg, log),
		Events: recorder,
		Logger: log.With("component", "auth"),
		Config: auth.ServiceConfig{
			OTPTTL:    cfg.OTPTTL(),
			OTPLength: cfg.Security.OTP.Length,
			Debug:     cfg.App.Debug,
		},
	}

	if cfg.Redis.Enabled && cfg.Security.RateLimit.Enabled {
		rdb := connectRedis(ctx, cfg.Redis, log)
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				log.Error("error closing redis", "error", closeErr)
			}
		}()
		rl := cfg.Security.RateLimit
		serviceDeps.OTPLimiter = ratelimit.New(rdb, "otp", rl.OTPPerMinute, rl.OTPBurst)
		serviceDeps.LoginLimiter = ratelimit.New(rdb, "login", rl.LoginPerMinute, rl.LoginBurst)
		log.Info("rate limiting enabled",
			"otp_per_minute", rl.OTPPerMinute,
			"login_per_minute", rl.LoginPerMinute,
		)
	} else {
		log.Info("rate limiting disabled")
	}

	server, err := api.New(api.Deps{
		Config:        cfg.API,
		App:           cfg.App,
		Logger:        log.With("component", "api"),
		DB:            db,
		Auth:          auth.NewService(serviceDeps),
		Authenticator: auth.NewAuthenticator(codec, users),
		Users:         users,
		Properties:    properties,
		AuditRepo:     auditRepo,
		Audit:         recorder,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses AMARATI_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// newOTPSender picks SMTP delivery when configured and falls back to
// logging otherwise.
func newOTPSender(cfg *config.Config, log *logging.Logger) auth.OTPSender {
	if cfg.SMTP.Enabled {
		log.Info("OTP delivery via SMTP", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
		return notify.NewSMTPSender(cfg.SMTP, cfg.App.Name, log.With("component", "notify"))
	}
	log.Info("OTP delivery via log")
	return notify.NewLogSender(log.With("component", "notify"), cfg.App.Debug)
}

// connectRedis creates the limiter client. An unreachable server is not
// fatal: the limiters let requests through while it is down.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logging.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, rate limiting fails open", "addr", cfg.Addr, "error", err)
	} else {
		log.Info("redis connected", "addr", cfg.Addr)
	}
	return rdb
}
