// Package logger provides structured logging for FileVault.
//
//   - logger.go: slog-based logger, dynamic level, global default
//   - context.go: context propagation of the logger, connection ID and user
//   - redact.go: redaction of passwords, digests and file payloads
//
// Passwords and upload payloads must never reach the log. Attribute keys
// matching a sensitive pattern are redacted by the handler itself, so call
// sites cannot forget.
package logger
