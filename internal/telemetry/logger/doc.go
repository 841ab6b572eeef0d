// Package logger provides structured logging for snapkeep.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, JSON/text handlers, dynamic level
//   - context.go: logger and snapshot stream identity carried in a context
//   - redact.go: redaction of secret-looking attributes
package logger
