// Package logging defines a minimal structured-logging interface used across
// the SDK. Implementations can wrap slog, zap, zerolog, etc. The default used
// by the SDK is a no-op logger so that library consumers opt in to output.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "session refreshed", "user", key, "exp", exp)
type Logger interface {
	// Debug logs fine-grained background activity (scheduler ticks,
	// cross-context reconciliation).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
