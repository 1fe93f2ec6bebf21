// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// -- Test Cases --

func TestNewLogger(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))

		logger.Info("This is a test message.")
		require.NoError(t, logger.Sync())

		output := buf.String()
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "This is a test message.")
		assert.Contains(t, output, "TestService.")
		assert.Contains(t, output, colorGreen, "Info level should be colorized green")
		assert.Contains(t, output, colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		}, zapcore.AddSync(&buf))

		logger.Warn("This is a JSON message.", zap.String("key", "value"))
		require.NoError(t, logger.Sync())

		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")

		assert.Equal(t, "WARN", logEntry["level"])
		assert.Equal(t, "JSONTest", logEntry["logger"])
		assert.Equal(t, "This is a JSON message.", logEntry["msg"])
		assert.Equal(t, "value", logEntry["key"])
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))

		logger.Info("dropped")
		logger.Error("kept")
		require.NoError(t, logger.Sync())

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(config.LoggerConfig{Level: "loud", Format: "json"}, zapcore.AddSync(&buf))

		logger.Debug("hidden")
		logger.Info("shown")
		require.NoError(t, logger.Sync())

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("writes JSON to a log file if configured", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "chatpilot.log")

		var console bytes.Buffer
		logger := NewLogger(config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logPath,
			MaxSize: 1,
		}, zapcore.AddSync(&console))

		logger.Debug("Message to file.", zap.Int("chunks", 3))
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(logPath)
		require.NoError(t, err)

		line := strings.TrimSpace(string(content))
		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &logEntry))
		assert.Equal(t, "Message to file.", logEntry["msg"])
		assert.Equal(t, float64(3), logEntry["chunks"])
		assert.Contains(t, console.String(), "Message to file.")
	})
}

func TestGlobalLogger(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		logger := GetLogger()
		require.NotNil(t, logger)
	})

	t.Run("initialize only once", func(t *testing.T) {
		ResetForTest()
		var first, second bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "second"}, zapcore.AddSync(&second))

		GetLogger().Info("hello")
		Sync()

		assert.Contains(t, first.String(), `"logger":"first"`)
		assert.Empty(t, second.String())
	})
}
