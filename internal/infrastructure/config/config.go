package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "AMARATI_"

// Config is the root configuration structure for Amarati Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	API      APIConfig      `yaml:"api" envPrefix:"API_"`
	Security SecurityConfig `yaml:"security"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	SMTP     SMTPConfig     `yaml:"smtp" envPrefix:"SMTP_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
}

// AppConfig contains application identity and mode flags.
type AppConfig struct {
	Name string `yaml:"name" env:"APP_NAME"`

	// Debug echoes raw OTP codes in OTP-issuing responses.
	// Must be false in any non-development deployment.
	Debug bool `yaml:"debug" env:"DEBUG"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"PATH"`
	WALMode     bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"HOST"`
	Port     int              `yaml:"port" env:"PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// SecurityConfig contains token, OTP and rate limiting settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" envPrefix:"JWT_"`
	OTP       OTPConfig       `yaml:"otp" envPrefix:"OTP_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret    string `yaml:"secret" env:"SECRET"`
	Algorithm string `yaml:"algorithm" env:"ALGORITHM"`

	// AccessTokenTTL is in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL"`

	// RefreshTokenTTL is in days.
	RefreshTokenTTL int `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL"`
}

// OTPConfig contains one-time password settings.
type OTPConfig struct {
	// TTL is in minutes.
	TTL    int `yaml:"ttl" env:"TTL"`
	Length int `yaml:"length" env:"LENGTH"`
}

// RateLimitConfig contains token-bucket settings for abuse-prone auth flows.
// Rates are per minute; bursts are bucket capacities.
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" env:"ENABLED"`
	OTPPerMinute   int  `yaml:"otp_per_minute" env:"OTP_PER_MINUTE"`
	OTPBurst       int  `yaml:"otp_burst" env:"OTP_BURST"`
	LoginPerMinute int  `yaml:"login_per_minute" env:"LOGIN_PER_MINUTE"`
	LoginBurst     int  `yaml:"login_burst" env:"LOGIN_BURST"`
}

// RedisConfig contains the connection used by the rate limiter.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// SMTPConfig contains outbound mail settings for OTP delivery.
type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	From     string `yaml:"from" env:"FROM"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AMARATI_SECTION_KEY
// For example: AMARATI_DATABASE_PATH, AMARATI_JWT_SECRET, AMARATI_DEBUG
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name: "Amarati",
		},
		Database: DatabaseConfig{
			Path:        "./data/amarati.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Algorithm:       "HS256",
				AccessTokenTTL:  30,
				RefreshTokenTTL: 7,
			},
			OTP: OTPConfig{
				TTL:    5,
				Length: 6,
			},
			RateLimit: RateLimitConfig{
				Enabled:        true,
				OTPPerMinute:   3,
				OTPBurst:       3,
				LoginPerMinute: 10,
				LoginBurst:     10,
			},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		SMTP: SMTPConfig{
			Port: 587,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides overlays AMARATI_* environment variables onto cfg.
// Unset variables leave the file or default value in place.
func applyEnvOverrides(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Anyone holding the secret can mint tokens for any role.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set AMARATI_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	switch c.Security.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, "security.jwt.algorithm must be HS256, HS384, or HS512")
	}

	if c.Security.JWT.AccessTokenTTL < 1 {
		errs = append(errs, "security.jwt.access_token_ttl must be at least 1 minute")
	}
	if c.Security.JWT.RefreshTokenTTL < 1 {
		errs = append(errs, "security.jwt.refresh_token_ttl must be at least 1 day")
	}

	if c.Security.OTP.TTL < 1 {
		errs = append(errs, "security.otp.ttl must be at least 1 minute")
	}
	if c.Security.OTP.Length < 4 || c.Security.OTP.Length > 10 {
		errs = append(errs, "security.otp.length must be between 4 and 10")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}

	if c.SMTP.Enabled {
		if c.SMTP.Host == "" {
			errs = append(errs, "smtp.host is required when smtp is enabled")
		}
		if c.SMTP.From == "" {
			errs = append(errs, "smtp.from is required when smtp is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AccessTokenTTL returns the access token lifetime as a Duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a Duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.RefreshTokenTTL) * 24 * time.Hour
}

// OTPTTL returns the OTP lifetime as a Duration.
func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.Security.OTP.TTL) * time.Minute
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
