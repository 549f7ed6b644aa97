// Package logging provides structured logging for Amarati Core.
//
// The Logger is backed by zerolog and exposes a small key/value API so
// call sites read the same everywhere:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8000)
//	logger.Error("failed to open database", "error", err)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, console
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log passwords, tokens, or OTP codes.
package logging
