package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadLiteConfig_Defaults(t *testing.T) {
	clearLiteEnv(t)

	cfg := LoadLiteConfig()

	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadLiteConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HEALTH_DATA_DIR", "/tmp/test-screening")
	t.Setenv("HEALTH_CACHE_MAX_ITEMS", "500")
	t.Setenv("HEALTH_CACHE_TTL", "12h")
	t.Setenv("HEALTH_LOG_LEVEL", "debug")
	t.Setenv("HEALTH_LOG_FORMAT", "text")

	cfg := LoadLiteConfig()

	assert.Equal(t, "/tmp/test-screening", cfg.DataDir)
	assert.Equal(t, 500, cfg.CacheMaxItems)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoadLiteConfig_InvalidValuesIgnored(t *testing.T) {
	clearLiteEnv(t)
	t.Setenv("HEALTH_CACHE_MAX_ITEMS", "-3")
	t.Setenv("HEALTH_CACHE_TTL", "soon")

	cfg := LoadLiteConfig()

	assert.Equal(t, 1000, cfg.CacheMaxItems)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
}

func TestLiteConfig_Paths(t *testing.T) {
	cfg := &LiteConfig{DataDir: "/home/user/.health-screening"}

	assert.Equal(t, "/home/user/.health-screening/reviews.db", cfg.ReviewDBPath())
	assert.Equal(t, "/home/user/.health-screening/exports", cfg.ExportDir())
}

func TestLiteConfig_EnsureDataDir(t *testing.T) {
	cfg := &LiteConfig{DataDir: filepath.Join(t.TempDir(), "screening")}

	require.NoError(t, cfg.EnsureDataDir())

	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.ExportDir())
}

func TestLiteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LiteConfig)
		wantErr string
	}{
		{name: "defaults", mutate: func(*LiteConfig) {}},
		{name: "empty data dir", mutate: func(c *LiteConfig) { c.DataDir = "" }, wantErr: EnvDataDir},
		{name: "bad level", mutate: func(c *LiteConfig) { c.LogLevel = "loud" }, wantErr: EnvLogLevel},
		{name: "bad format", mutate: func(c *LiteConfig) { c.LogFormat = "xml" }, wantErr: EnvLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLiteConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func clearLiteEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvDataDir, EnvCacheMaxItems, EnvCacheTTL, EnvLogLevel, EnvLogFormat} {
		t.Setenv(v, "")
	}
}
