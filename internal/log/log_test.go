package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelWarn, true)
	l.Info("dropped")
	l.Warn("kept", "observer", "ekf")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "ekf", rec["observer"])

	buf.Reset()
	l = newLogger(&buf, slog.LevelDebug, false)
	l.Debug("step", "i", 3)
	assert.Contains(t, buf.String(), "msg=step i=3")
}

func TestGlobal(t *testing.T) {
	Init("debug")
	assert.Same(t, L(), L())
	assert.NotNil(t, With("run", "x"))
}
