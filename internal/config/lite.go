package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Environment variables read by LoadLiteConfig
const (
	EnvDataDir       = "HEALTH_DATA_DIR"
	EnvCacheMaxItems = "HEALTH_CACHE_MAX_ITEMS"
	EnvCacheTTL      = "HEALTH_CACHE_TTL"
	EnvLogLevel      = "HEALTH_LOG_LEVEL"
	EnvLogFormat     = "HEALTH_LOG_FORMAT"
)

// LiteConfig configures the MCP stdio server and the CLI from the
// environment alone. Everything lives under DataDir.
type LiteConfig struct {
	DataDir string

	// Evaluation memo
	CacheMaxItems int
	CacheTTL      time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultLiteConfig keeps data in ~/.health-screening
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:       filepath.Join(homeDir, ".health-screening"),
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig applies environment overrides to the defaults. Values that
// do not parse, or are not positive, are ignored.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if n, err := strconv.Atoi(os.Getenv(EnvCacheMaxItems)); err == nil && n > 0 {
		cfg.CacheMaxItems = n
	}
	if d, err := time.ParseDuration(os.Getenv(EnvCacheTTL)); err == nil && d > 0 {
		cfg.CacheTTL = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// Validate rejects settings the MCP server cannot start with
func (c *LiteConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%s must not be empty", EnvDataDir)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("invalid %s %q: must be json or text", EnvLogFormat, c.LogFormat)
	}
	return nil
}

// ReviewDBPath is the SQLite review log shared with cmd/server's default layout
func (c *LiteConfig) ReviewDBPath() string {
	return filepath.Join(c.DataDir, "reviews.db")
}

// ExportDir receives export_review_log output
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates DataDir and its export directory
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.ExportDir(), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
