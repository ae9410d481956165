package logging

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus entry to Logger. Key–value args become
// logrus fields; a dangling key is recorded under "!BADKEY" like slog does.
type LogrusLogger struct {
	e *logrus.Entry
}

func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{e: logrus.NewEntry(l)}
}

func (l *LogrusLogger) Debug(ctx context.Context, msg string, args ...any) {
	l.entry(ctx, args).Debug(msg)
}

func (l *LogrusLogger) Info(ctx context.Context, msg string, args ...any) {
	l.entry(ctx, args).Info(msg)
}

func (l *LogrusLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.entry(ctx, args).Warn(msg)
}

func (l *LogrusLogger) Error(ctx context.Context, msg string, args ...any) {
	l.entry(ctx, args).Error(msg)
}

func (l *LogrusLogger) With(args ...any) Logger {
	return &LogrusLogger{e: l.e.WithFields(toFields(args))}
}

func (l *LogrusLogger) entry(ctx context.Context, args []any) *logrus.Entry {
	e := l.e
	if ctx != nil {
		e = e.WithContext(ctx)
	}
	if len(args) == 0 {
		return e
	}
	return e.WithFields(toFields(args))
}

func toFields(args []any) logrus.Fields {
	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return fields
}
