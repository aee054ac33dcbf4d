package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quran-tui/internal/config"
)

func TestNewWritesToStateDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", tmpDir)

	logger, err := New(config.LoggingConfig{Level: "info"}, false)
	require.NoError(t, err)

	logger.Info("chapter loaded")
	logger.Debug("hidden at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(tmpDir, "quran-tui", "quran-tui.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "chapter loaded")
	assert.NotContains(t, string(data), "hidden at info level")
}

func TestNewVerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")

	logger, err := New(config.LoggingConfig{Level: "warn", File: path}, true)
	require.NoError(t, err)

	logger.Debug("transition")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "transition")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "chatty", File: "stderr"}, false)
	assert.Error(t, err)
}

func TestNewOff(t *testing.T) {
	logger, err := New(config.LoggingConfig{File: "off"}, false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
