package loggy

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: slog.LevelInfo, Format: "json", AddSource: true})

	l.Debug("hidden")
	l.With("component", "store").Info("saved", "file", "a.go")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"saved"`)
	assert.Contains(t, out, `"component":"store"`)
	assert.Contains(t, out, `"file":"a.go"`)
	assert.Contains(t, out, "loggy_test.go")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: slog.LevelDebug, Format: "text"})
	l.WithError(errors.New("boom")).Warn("write failed")
	assert.Contains(t, buf.String(), "error=boom")
	assert.Same(t, l, l.WithError(nil))
}

func TestContextPropagation(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, Config{Level: slog.LevelInfo, Format: "text"})
	ctx := WithRequestID(WithLogger(context.Background(), l), "req-1")

	assert.Equal(t, "req-1", RequestID(ctx))
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "request_id=req-1")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.With("k", "v").Error("still nothing")
		l.WithGroup("g").Warn("nothing again")
	})
	assert.NotNil(t, l.Handler())
	assert.False(t, l.Handler().Enabled(context.Background(), slog.LevelError))
}
