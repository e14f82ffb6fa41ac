package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process logger: JSON in prod for log shipping, text
// otherwise. Unrecognized levels fall back to info with a warning.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	lv := parseLogLevel(level)

	if env == "prod" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: lv,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				// Shippers expect RFC 3339 timestamps.
				if a.Key == slog.TimeKey {
					return slog.String("time", a.Value.Time().Format(time.RFC3339Nano))
				}
				return a
			},
		}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
		return slog.LevelInfo
	}
}
