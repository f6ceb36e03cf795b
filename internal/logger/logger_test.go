package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-lang/qi/internal/config"
)

func TestGetLogger_FallsBackBeforeSetup(t *testing.T) {
	assert.NotNil(t, GetLogger(), "early diagnostics need a logger before Setup runs")
}

func TestSetup_InstallsProcessLogger(t *testing.T) {
	cfg := config.DefaultConfig()
	lg := Setup(cfg)
	require.NotNil(t, lg)
	assert.Equal(t, lg, GetLogger(), "Setup result becomes the process logger")
}

func TestSetup_FileSinkCreatesDirectory(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Output = []string{"file"}
	cfg.Logging.Dir = filepath.Join(t.TempDir(), "logs")

	require.NotNil(t, Setup(cfg))
	info, err := os.Stat(cfg.Logging.Dir)
	require.NoError(t, err, "file sink must create its directory")
	assert.True(t, info.IsDir())
}

func TestSetup_NeverSilent(t *testing.T) {
	cfg := config.DefaultConfig()
	// A file sink with no directory configured degrades; the console
	// fallback still attaches.
	cfg.Logging.Output = []string{"file"}
	cfg.Logging.Dir = ""
	assert.NotNil(t, Setup(cfg))

	cfg.Logging.Output = nil
	assert.NotNil(t, Setup(cfg))
}

func TestLogFilePath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Dir = ""
	_, err := logFilePath(cfg)
	assert.Error(t, err)

	cfg.Logging.Dir = filepath.Join(t.TempDir(), "out")
	path, err := logFilePath(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Logging.Dir, "qi.log"), path)
}
