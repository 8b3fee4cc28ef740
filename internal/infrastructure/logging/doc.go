// Package logging provides structured logging for the farm bridge.
//
// It wraps log/slog so every component logs the same way:
// JSON output in production, text for development, and a service/version
// pair on every entry.
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge started", "broker", addr)
//
// Never log secrets, tokens, or passwords.
package logging
