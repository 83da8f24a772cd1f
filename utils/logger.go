package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelOff disables all output
const LevelOff = slog.Level(100)

// Logger wraps slog with level and format selection
type Logger struct {
	*slog.Logger
}

// NewLogger creates a logger writing to stderr
func NewLogger(level, format string) *Logger {
	return NewLoggerTo(os.Stderr, level, format)
}

// NewLoggerTo creates a logger writing to w. Level is one of debug, info, warn,
// error or off; format is text or json.
func NewLoggerTo(w io.Writer, level, format string) *Logger {
	lvl := ParseLevel(level)
	if lvl == LevelOff {
		return &Logger{slog.New(slog.NewTextHandler(io.Discard, nil))}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{slog.New(handler)}
}

// With returns a logger carrying the given attributes on every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off":
		return LevelOff
	default:
		return slog.LevelInfo
	}
}
