// Package logger provides structured logging for stockgate.
//
// It wraps log/slog:
//
//   - logger.go: Logger interface, JSON/text handlers, runtime level changes
//   - context.go: request id and OpenTelemetry trace id propagation
//   - redact.go: masking of bearer tokens, API keys and secret-named fields
//
// Every handler created by New passes attributes through redaction, so
// secrets never reach the output in clear text.
package logger
