// Package logging provides structured logging for the Z-Wave controller.
//
// This package wraps Go's standard log/slog package so every component
// logs through one sink with the same default fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
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
//	logger.Info("tick evaluated", "module", "outdoor-light-switch", "tick", "7:00am")
//	logger.Error("device command failed", "node_id", 42, "error", err)
//
// Never log MQTT passwords, JWT secrets or InfluxDB tokens.
package logging
