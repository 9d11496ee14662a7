// Package logging provides centralized logging for the email verifier.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is used for storing loggers in context.
type contextKey struct{}

var loggerKey = contextKey{}

// probeCounter is used to generate unique probe IDs.
var probeCounter atomic.Uint64

// NewLogger creates a new slog.Logger with the specified level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: lvl,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}

// WithProbe returns a new logger with probe-specific attributes.
// It generates a unique probe ID for log correlation.
func WithProbe(logger *slog.Logger, email string) *slog.Logger {
	probeID := probeCounter.Add(1)
	return logger.With(
		slog.Uint64("probe_id", probeID),
		slog.String("email", email),
	)
}

// WithSession returns a new logger with SMTP session attributes.
func WithSession(logger *slog.Logger, host string, port int) *slog.Logger {
	return logger.With(
		slog.String("mx_host", host),
		slog.Int("port", port),
	)
}

// FromContext retrieves the logger from the context.
// Returns the default logger if none is found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// NewContext returns a new context with the logger attached.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}
