// Package config handles loading and validating stockapi Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with STOCKAPI_* environment variables
//   - Per-environment defaults (development, testing, staging, production)
//   - Validation of required fields
//
// Security Considerations:
//   - Database credentials and tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mgr, err := database.New(cfg.Database.URL, database.WithAutocommit(cfg.Autocommit()))
package config
