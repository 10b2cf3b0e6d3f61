package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// observe swaps the global logger for one that records entries.
func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	previous := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = previous })
	return logs
}

func TestInitialize_RejectsUnknownLevel(t *testing.T) {
	previous := Log
	t.Cleanup(func() { Log = previous })

	err := Initialize(Config{Level: "loud", Environment: "development"})
	assert.Error(t, err)
}

func TestInitialize_ProductionWritesFiles(t *testing.T) {
	previous := Log
	t.Cleanup(func() { Log = previous })
	dir := t.TempDir()

	require.NoError(t, Initialize(Config{Level: "info", Environment: "production", LogDir: dir, ServiceName: "flowsync-api"}))
	Info("hello")
	Sync()

	assert.FileExists(t, dir+"/app.log")
}

func TestLogHTTPRequest_LevelByStatus(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogHTTPRequest("POST", "/api/v1/integrations/x/sync", 202, 0.01)
	LogHTTPRequest("POST", "/api/v1/integrations/x/sync", 409, 0.01)
	LogHTTPRequest("POST", "/api/v1/integrations/x/sync", 500, 0.01)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, int64(409), entries[1].ContextMap()["status"])
}

func TestLogAPICall_ErrorsOnly(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogAPICall("notion", "create_page", "success", 0.2)
	LogAPICall("notion", "create_page", "error", 0.2)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "notion", entries[0].ContextMap()["api"])
}

func TestForRun(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	ForRun("run-1", "int-1").Info("Sync run started")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "int-1", fields["integration_id"])
}
