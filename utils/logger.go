package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger provides leveled, printf-style logging on top of a slog handler.
type Logger struct {
	s *slog.Logger
}

// New creates a Logger writing to w. level is one of debug, info, warn, error;
// format is "text" or "json".
func New(w io.Writer, level, format string) (*Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return &Logger{s: slog.New(slog.NewTextHandler(w, opts))}, nil
	case "json":
		return &Logger{s: slog.New(slog.NewJSONHandler(w, opts))}, nil
	default:
		return nil, fmt.Errorf("logger: unknown format %q", format)
	}
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(s *slog.Logger) *Logger {
	return &Logger{s: s}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{s: slog.New(slog.DiscardHandler)}
}

// With returns a Logger that adds the given key/value attributes to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{s: l.s.With(args...)}
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.s.Enabled(ctx, level) {
		return
	}
	l.s.Log(ctx, level, fmt.Sprintf(format, args...))
}
