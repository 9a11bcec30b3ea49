package infra

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide structured logger. Level comes from
// config ("debug", "info", "warn", "error"); anything else falls back to
// info.
func NewLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
