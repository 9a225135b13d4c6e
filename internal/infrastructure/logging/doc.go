// Package logging provides structured logging for stockapi Core.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version). Components derive child loggers
// with With("component", "database") and so on.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	dbLogger := logger.With("component", "database")
//	mgr, err := database.New(cfg.Database.URL, database.WithLogger(dbLogger))
//
// Never log connection strings unredacted, passwords or API tokens.
package logging
