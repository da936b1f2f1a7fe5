package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	prev := globalLogger
	t.Cleanup(func() { globalLogger = prev })

	buf := &bytes.Buffer{}
	globalLogger = New(buf, Config{Level: level, Format: "json"})
	return buf
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	buf := capture(t, "info")

	ctx := ContextWithDealID(ContextWithRequestID(context.Background(), "req-1"), "deal-9")
	Info(ctx, "deal transitioned", "to", "signed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "deal transitioned", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "deal-9", entry["deal_id"])
	assert.Equal(t, "signed", entry["to"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn")

	Info(context.Background(), "hidden")
	assert.Zero(t, buf.Len())

	Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogDuration(t *testing.T) {
	buf := capture(t, "debug")

	done := LogDuration(context.Background(), "sweep finished")
	done()
	assert.Contains(t, buf.String(), `"duration"`)
}
