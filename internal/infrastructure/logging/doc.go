// Package logging provides structured logging for the library service.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Coloured text output for development (lmittmann/tint)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering that can be changed at runtime
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.SetLevel("debug")
//
// Never log secrets, tokens or password hashes.
package logging
