package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log
// aggregation. Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithUser returns a logger with the owning user attached. The digest
// pipeline logs per-user events through this.
func WithUser(userID int64) *slog.Logger {
	return slog.With("user_id", userID)
}

// WithTurn returns a logger scoped to one conversation turn. The chat
// orchestrator logs turn-level events through this.
func WithTurn(userID int64, sessionID string) *slog.Logger {
	return slog.With(
		"user_id", userID,
		"session_id", sessionID,
	)
}
