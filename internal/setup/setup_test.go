package setup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBinary(t *testing.T, dir string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), mode))
	return path
}

func TestLoadClientConfig_Missing(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClientConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestInstall_PreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "theme": "dark",
  "mcpServers": {"other": {"command": "/usr/bin/other"}}
}`), 0644))

	binary := writeBinary(t, dir, 0755)
	entry, err := Install(Options{
		ConfigPath: path,
		BinaryPath: binary,
		DataDir:    "/var/lib/screening",
		LogLevel:   "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, binary, entry.Command)
	assert.Equal(t, "/var/lib/screening", entry.Env["HEALTH_DATA_DIR"])
	assert.Equal(t, "debug", entry.Env["HEALTH_LOG_LEVEL"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "dark", raw["theme"])

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Contains(t, cfg.MCPServers, "other")
	assert.Contains(t, cfg.MCPServers, ServerName)
}

func TestInstall_BinaryNotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	_, err := Install(Options{ConfigPath: filepath.Join(t.TempDir(), "config.json")})
	assert.Error(t, err)
}

func TestFindBinary_OnPath(t *testing.T) {
	dir := t.TempDir()
	binary := writeBinary(t, dir, 0755)
	t.Setenv("PATH", dir)

	found, err := FindBinary()
	require.NoError(t, err)
	assert.Equal(t, binary, found)
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	t.Run("not registered", func(t *testing.T) {
		status, err := GetStatus(path)
		require.NoError(t, err)
		assert.False(t, status.Registered)
		assert.NotEmpty(t, status.Issues)
	})

	t.Run("registered", func(t *testing.T) {
		binary := writeBinary(t, dir, 0755)
		_, err := Install(Options{ConfigPath: path, BinaryPath: binary, DataDir: dir})
		require.NoError(t, err)

		status, err := GetStatus(path)
		require.NoError(t, err)
		assert.True(t, status.Registered)
		assert.True(t, status.BinaryExists)
		assert.Equal(t, dir, status.DataDir)
		assert.Empty(t, status.Issues)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := Install(Options{ConfigPath: path, BinaryPath: filepath.Join(dir, "gone")})
		require.NoError(t, err)

		status, err := GetStatus(path)
		require.NoError(t, err)
		assert.True(t, status.Registered)
		assert.False(t, status.BinaryExists)
		assert.Len(t, status.Issues, 1)
	})
}

func TestUninstall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	removed, err := Uninstall(path)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = Install(Options{ConfigPath: path, BinaryPath: writeBinary(t, dir, 0755)})
	require.NoError(t, err)

	removed, err = Uninstall(path)
	require.NoError(t, err)
	assert.True(t, removed)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.NotContains(t, cfg.MCPServers, ServerName)
}
