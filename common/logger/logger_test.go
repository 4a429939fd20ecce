package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skybridge-ai/bedrock-gateway/common/config"
)

func TestLoggerReadyOnImport(t *testing.T) {
	require.NotNil(t, Logger)
	Logger.Debug("logger smoke test")
}

func TestSetupLoggerCreatesLogFile(t *testing.T) {
	prevDir := LogDir
	prevOne := config.OnlyOneLogFile
	LogDir = t.TempDir()
	config.OnlyOneLogFile = true
	t.Cleanup(func() {
		LogDir = prevDir
		config.OnlyOneLogFile = prevOne
	})

	SetupLogger()

	_, err := os.Stat(filepath.Join(LogDir, "gateway.log"))
	assert.NoError(t, err)
}
