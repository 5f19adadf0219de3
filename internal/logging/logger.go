package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide JSON logger. slog keeps the engine
// free of logger plumbing while the JSON handler gives the tracking
// fleet's log pipeline structured records; AddSource makes per-event
// failure logs traceable to the handler that swallowed them.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}))
}

// parseLevel maps the LOG_LEVEL config value onto a slog level,
// defaulting to info for anything unrecognized.
func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
