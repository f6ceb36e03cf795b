package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoConfig(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "qi.toml"))
	require.NoError(t, err, "should load without error")

	assert.Equal(t, "main", cfg.Build.ModuleName)
	assert.NotEmpty(t, cfg.Build.DataLayout)
	assert.NotEmpty(t, cfg.Build.Triple)
	assert.True(t, cfg.Runtime.WorkStealing)
	assert.Equal(t, 8470, cfg.Service.Port)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[build]
module_name = "demo"
triple = "aarch64-unknown-linux-gnu"

[runtime]
workers = 4
work_stealing = false

[service]
port = 9000
`
	path := filepath.Join(tmpDir, "qi.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Build.ModuleName)
	assert.Equal(t, "aarch64-unknown-linux-gnu", cfg.Build.Triple)
	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.False(t, cfg.Runtime.WorkStealing)
	assert.Equal(t, 9000, cfg.Service.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, 500, cfg.Watch.DebounceMs)
}

func TestLoadFromString_EnvExpansion(t *testing.T) {
	t.Setenv("QI_TEST_MODULE", "expanded")
	cfg, err := LoadFromString(`
[build]
module_name = "${QI_TEST_MODULE}"
`)
	require.NoError(t, err)
	assert.Equal(t, "expanded", cfg.Build.ModuleName)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Service.Port = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Logging.Level = "verbose"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Watch.DebounceMs = -1
	assert.Error(t, bad.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "qi.toml")

	cfg := DefaultConfig()
	cfg.Build.ModuleName = "roundtrip"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Build.ModuleName)
}

func TestWriteExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qi.toml")
	require.NoError(t, WriteExampleConfig(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}
