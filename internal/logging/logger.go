// Package logging defines a minimal structured-logging interface used across
// the project, with slog and logrus backends.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs a diagnostic message.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported values for New's format argument.
const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatLogrus = "logrus"
)

// New builds a Logger writing to w. format selects the backend and level is
// one of debug, info, warn, error.
func New(format, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		opts := &slog.HandlerOptions{Level: slogLevel(level)}
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, opts))), nil
	case FormatText:
		opts := &slog.HandlerOptions{Level: slogLevel(level)}
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, opts))), nil
	case FormatLogrus:
		l := logrus.New()
		l.SetOutput(w)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		lvl, err := logrus.ParseLevel(strings.ToLower(level))
		if err != nil {
			lvl = logrus.InfoLevel
		}
		l.SetLevel(lvl)
		return NewLogrusLogger(l), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
