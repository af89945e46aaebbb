// Package logging is the structured logger every component receives.
// The process uses the slog-backed implementation; tests use Discard.
package logging

import "context"

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "user registered", "user_id", u.ID, "email", u.Email)
//
// Secrets, password hashes and raw tokens must never be passed as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
