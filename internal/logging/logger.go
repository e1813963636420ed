package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
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

// WithSession returns a logger with call session fields attached.
// Use this for everything a session logs so a conversation can be followed end to end.
func WithSession(roomID, callerID string) *slog.Logger {
	return slog.With(
		"room_id", roomID,
		"caller_id", callerID,
	)
}

// WithHelpRequest returns a logger scoped to one escalated question.
func WithHelpRequest(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("help_request_id", requestID)
}
