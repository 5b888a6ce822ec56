package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLogger_Writer(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		WithFormat("text"),
		WithWriter(&buf),
		WithQuiet(),
	)

	log.Info("hello", "stage", "trim")

	output := buf.String()
	if !strings.Contains(output, "hello") {
		t.Errorf("expected log to contain message, got: %s", output)
	}
	if !strings.Contains(output, "stage=trim") {
		t.Errorf("expected log to contain attr, got: %s", output)
	}
}

func TestLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		WithFormat("text"),
		WithWriter(&buf),
		WithQuiet(),
	)

	log.Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug message should be suppressed at info level, got: %s", buf.String())
	}

	buf.Reset()
	log = NewLogger(
		WithDebug(),
		WithFormat("text"),
		WithWriter(&buf),
		WithQuiet(),
	)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug message should appear at debug level, got: %s", buf.String())
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		WithFormat("json"),
		WithWriter(&buf),
		WithQuiet(),
	)

	log.Info("structured", "key", "val")
	output := buf.String()
	if !strings.Contains(output, `"msg":"structured"`) {
		t.Errorf("expected JSON output, got: %s", output)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		WithFormat("text"),
		WithWriter(&buf),
		WithQuiet(),
	)

	child := log.With("run-id", "abc123")
	child.Info("tick")

	if !strings.Contains(buf.String(), "run-id=abc123") {
		t.Errorf("expected inherited attr in output, got: %s", buf.String())
	}
}

func TestContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(
		WithFormat("text"),
		WithWriter(&buf),
		WithQuiet(),
	)

	ctx := WithLogger(context.Background(), log)
	Info(ctx, "from context")

	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("expected context logger output, got: %s", buf.String())
	}
}

func TestContext_Default(t *testing.T) {
	// A context without a logger falls back to the default logger
	// without panicking.
	Info(context.Background(), "no logger attached")
}
