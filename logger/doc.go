// Package logger provides structured logging capabilities.
//
// The logger package sets up and configures the application's logging
// system using zap, providing structured, high-performance logging
// throughout the application. In production mode logs are written to
// stderr so that a stdio MCP transport keeps stdout reserved for the
// protocol.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("Application started")
//	logger.Warn("Something unexpected", zap.Error(err))
package logger
