package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(level LogLevel) (*HubLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	cfg.AddSource = false
	return NewLogger(cfg), buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestKeyValueArgsBecomeAttributes(t *testing.T) {
	logger, buf := captureLogger(LogLevelInfo)

	logger.Info("message routed", "message_id", "m-1", "to_agent", "worker")

	entry := lastEntry(t, buf)
	assert.Equal(t, "message routed", entry["msg"])
	assert.Equal(t, "m-1", entry["message_id"])
	assert.Equal(t, "worker", entry["to_agent"])
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := captureLogger(LogLevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	assert.Zero(t, buf.Len())

	logger.Warn("visible")
	assert.NotZero(t, buf.Len())
}

func TestWithComponentAndContext(t *testing.T) {
	logger, buf := captureLogger(LogLevelInfo)

	scoped := logger.WithComponent("dispatch").WithContext("agent_id", "w1")
	scoped.Info("cycle done")

	entry := lastEntry(t, buf)
	assert.Equal(t, "dispatch", entry["component"])
	assert.Equal(t, "w1", entry["agent_id"])

	// the parent logger is untouched
	logger.Info("plain")
	entry = lastEntry(t, buf)
	_, hasComponent := entry["component"]
	assert.False(t, hasComponent)
}

func TestErrorWithStack(t *testing.T) {
	logger, buf := captureLogger(LogLevelError)

	logger.ErrorWithStack(errors.New("boom"), "handler failed", "agent_id", "w1")

	entry := lastEntry(t, buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "w1", entry["agent_id"])
	assert.Contains(t, entry["stack_trace"], "goroutine")
}

func TestNoOpLoggerIsSilent(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("x")
	l.Info("x", "k", "v")
	l.Warn("x")
	l.Error("x")
}
