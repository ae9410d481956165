package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestLogrus(t *testing.T) (*LogrusLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	return NewLogrusLogger(l), &buf
}

func TestLogrusLogger_LevelsAndFields(t *testing.T) {
	log, buf := newTestLogrus(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, s := range []string{
		"level=debug", "msg=dbg", "a=1",
		"level=info", "msg=inf", "b=2",
		"level=warning", "msg=wrn", "c=3",
		"level=error", "msg=err", "d=4",
	} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output:\n%s", s, out)
		}
	}
}

func TestLogrusLogger_With_AddsFields(t *testing.T) {
	log, buf := newTestLogrus(t)

	log.With("module", "grpc_server").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	for _, s := range []string{"module=grpc_server", "k=v", "msg=hello"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in output:\n%s", s, out)
		}
	}
}

func TestLogrusLogger_OddArgs(t *testing.T) {
	log, buf := newTestLogrus(t)

	log.Info(context.Background(), "odd", "lonely")

	if !strings.Contains(buf.String(), "!BADKEY=lonely") {
		t.Fatalf("dangling key not recorded:\n%s", buf.String())
	}
}
