// Package logging provides structured logging for the hydroponics gateway.
//
// It wraps Go's standard log/slog package so every component logs with the
// same handler, level filter and default fields (service, version).
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
//	logger.Info("starting gateway", "port", 3000)
//	logger.Error("query failed", "error", err)
//
// Never log passwords, including the credentials submitted to the login route.
package logging
