// Package logger provides structured logging for tokvault.
//
// All logging goes through log/slog. The handler underneath is either
// the standard JSON/text handler or a zap core (log.backend = zap), so
// call sites never depend on the backend:
//
//   - logger.go: Logger interface, configuration, global level
//   - zap.go: slog.Handler backed by a zap core
//   - context.go: request IDs and attributes carried on a context
//   - redact.go: sensitive data redaction, applied by both backends
package logger
