// Package config handles loading and validating Amarati Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with AMARATI_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - The JWT secret should be set via AMARATI_JWT_SECRET, never committed
//   - app.debug echoes OTP codes in API responses and must stay off in production
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.App.Name)
package config
