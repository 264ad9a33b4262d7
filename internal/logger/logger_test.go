package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("INFO"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("Debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LOG_LEVEL_WARNING)

	log.Info("Heartbeat accepted", "machine_id", "m1")
	log.Warn("Health check failed", "error", "timeout")

	out := buf.String()
	assert.NotContains(t, out, "Heartbeat accepted")
	assert.Contains(t, out, "Health check failed")
	assert.Contains(t, out, "error=timeout")
}

func TestIsDebug(t *testing.T) {
	assert.True(t, IsDebug("debug"))
	assert.False(t, IsDebug("INFO"))
}
