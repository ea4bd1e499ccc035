package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nope"))
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})

	l.WithComponent(ComponentLease).Info("lease saved", "lease_id", 7)

	out := buf.String()
	assert.Contains(t, out, "component=lease")
	assert.Contains(t, out, "lease_id=7")
}

func TestWithComponent_SingleKey(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf, JSON: true})

	l.With("request_id", "r1").WithComponent(ComponentHTTP).Info("x")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"component"`), out)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entry))
	assert.Equal(t, "http", entry["component"])
	assert.Equal(t, "r1", entry["request_id"])

	buf.Reset()
	l.Info("y")
	assert.Equal(t, 1, strings.Count(buf.String(), `"component":"app"`))
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})

	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
