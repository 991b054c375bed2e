package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	previous := Logger()
	t.Cleanup(func() { global.Store(previous) })

	buf := &bytes.Buffer{}
	Configure(Config{Level: level, Format: "json", Writer: buf})
	return buf
}

func TestContextLogging(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	ctx := WithQueryID(context.Background(), "q-123")
	ctx = WithContextValue(ctx, RelationKey, "users")

	InfoContext(ctx, "Test message with context", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Test message with context", entry["msg"])
	assert.Equal(t, "q-123", entry["query_id"])
	assert.Equal(t, "users", entry["relation"])
	assert.Equal(t, "value", entry["key"])
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)

	Debug("hidden")
	Info("hidden")
	Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.False(t, Enabled(context.Background(), slog.LevelInfo))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"DEBUG", slog.LevelDebug, true},
		{"warn", slog.LevelWarn, true},
		{"TRACE", LevelTrace, true},
		{"4", slog.Level(4), true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "TRACE", LevelName(LevelTrace))
	assert.Equal(t, "FATAL", LevelName(LevelFatal))
	assert.Equal(t, "INFO", LevelName(slog.LevelInfo))
}

func TestQueryID(t *testing.T) {
	assert.Equal(t, "", QueryID(context.Background()))
	assert.Equal(t, "abc", QueryID(WithQueryID(context.Background(), "abc")))
}
