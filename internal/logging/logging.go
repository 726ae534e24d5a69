// Package logging configures the process-wide slog default.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Setup installs the default logger. Format "json" writes structured
// lines; "text" writes tinted human-readable lines; "auto" picks text
// when stderr is a terminal.
func Setup(level slog.Level, format string) {
	slog.SetDefault(slog.New(newHandler(os.Stderr, level, format)))
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		return tintHandler(w, level, true)
	default:
		isTTY := false
		if f, ok := w.(*os.File); ok {
			isTTY = term.IsTerminal(int(f.Fd()))
		}
		if isTTY {
			return tintHandler(w, level, true)
		}
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
}

func tintHandler(w io.Writer, level slog.Level, color bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !color,
	})
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
