package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelqc/internal/config"
)

func readLastEntry(t *testing.T, content []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "nested", "pixelqc.log")

	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, GetLogger())

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := readLastEntry(t, content)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestInitializeLogger_OnlyOnce(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	dir := t.TempDir()
	first, err := InitializeLogger(config.LoggingConfig{Level: "info", Output: "file", FilePath: filepath.Join(dir, "a.log")})
	require.NoError(t, err)

	second, err := InitializeLogger(config.LoggingConfig{Level: "debug", Output: "file", FilePath: filepath.Join(dir, "b.log")})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.NoFileExists(t, filepath.Join(dir, "b.log"))
}

func TestTraceAndRunIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("debug", &buf)

	ctx := WithRunID(WithTraceID(context.Background(), "test-trace-123"), "survey-7")
	logger.InfoContext(ctx, "test with trace")

	entry := readLastEntry(t, buf.Bytes())
	assert.Equal(t, "test-trace-123", entry["trace_id"])
	assert.Equal(t, "survey-7", entry["run_id"])

	buf.Reset()
	logger.Info("no context ids")
	entry = readLastEntry(t, buf.Bytes())
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "run_id")
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		logged   []string
		filtered []string
	}{
		{level: "debug", logged: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", logged: []string{"INFO", "WARN", "ERROR"}, filtered: []string{"DEBUG"}},
		{level: "warning", logged: []string{"WARN", "ERROR"}, filtered: []string{"DEBUG", "INFO"}},
		{level: "error", logged: []string{"ERROR"}, filtered: []string{"DEBUG", "INFO", "WARN"}},
		{level: "bogus", logged: []string{"INFO"}, filtered: []string{"DEBUG"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("m")
			logger.Info("m")
			logger.Warn("m")
			logger.Error("m")

			out := buf.String()
			for _, lvl := range tt.logged {
				assert.Contains(t, out, `"level":"`+lvl+`"`)
			}
			for _, lvl := range tt.filtered {
				assert.NotContains(t, out, `"level":"`+lvl+`"`)
			}
		})
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	traceID := GetTraceID(ctx)
	assert.NotEmpty(t, traceID)

	// existing ids are kept
	assert.Equal(t, traceID, GetTraceID(EnsureTraceID(ctx)))

	assert.Empty(t, GetRunID(context.Background()))
	assert.Equal(t, "r1", GetRunID(WithRunID(context.Background(), "r1")))
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("info", &buf)

	WithComponent(logger, "loader").Info("test message")
	entry := readLastEntry(t, buf.Bytes())
	assert.Equal(t, "loader", entry["component"])
}
