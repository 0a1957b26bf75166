package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/rule-horror/internal/config"
)

// Setup builds the process logger from config and installs it as the
// slog default.
func Setup(cfg *config.Config) *slog.Logger {
	l := New(os.Stdout, cfg.Environment, cfg.LogLevel())
	slog.SetDefault(l)
	return l
}

// New writes JSON in production and text everywhere else.
func New(w io.Writer, environment string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithSession scopes a logger to one session and player.
func WithSession(logger *slog.Logger, sessionKey, playerID string) *slog.Logger {
	if playerID == "" {
		return logger.With("session_key", sessionKey)
	}
	return logger.With("session_key", sessionKey, "player_id", playerID)
}
