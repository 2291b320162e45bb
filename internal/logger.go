package internal

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// NewLogger returns a JSON logger in prod and a text logger otherwise. Every
// record carries service=invoicer; debug logging also records the source line.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var l = new(slog.LevelVar) // Info by default
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		slog.Default().Warn("Invalid log level. Using default level: info", slog.String("value", level))
		l.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{
		Level:     l,
		AddSource: l.Level() <= slog.LevelDebug,
	}

	var h slog.Handler
	switch env {
	case "prod":
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		}
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", "invoicer"))
}
