package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup installs a text logger on w as the slog default.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}

// LogCommand logs a finished slash command.
func LogCommand(name, user string, took time.Duration, err error) {
	attrs := []any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.String("user", user),
		slog.Duration("took", took),
	}
	if err != nil {
		slog.Error("command failed", append(attrs, slog.Any("error", err))...)
		return
	}
	slog.Debug("command executed", attrs...)
}
