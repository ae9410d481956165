package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// SlogLogger implements Logger on top of log/slog. When ctx carries a valid
// span context, its trace and span ids are added to the record.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, withTrace(ctx, args)...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, withTrace(ctx, args)...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, withTrace(ctx, args)...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, withTrace(ctx, args)...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}

func withTrace(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}
	return append(args, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
