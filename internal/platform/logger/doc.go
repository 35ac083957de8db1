// Package logger configures the process-wide slog JSON logger and carries
// per-job loggers through context.
package logger
