package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-screening-server/internal/domain"
)

func TestNew(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		logger, err := New(domain.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
		assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
		assert.Equal(t, os.Stdout, logger.Out)
	})

	t.Run("text to stderr", func(t *testing.T) {
		logger, err := New(domain.LoggingConfig{Level: "warn", Format: "TEXT", Output: "stderr"})
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
		assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
		assert.Equal(t, os.Stderr, logger.Out)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger, err := New(domain.LoggingConfig{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "server.log")
		logger, err := New(domain.LoggingConfig{Level: "info", Output: "file", Filename: path})
		require.NoError(t, err)

		logger.WithField("submission_id", "abc").Info("Submission saved")
		if f, ok := logger.Out.(*os.File); ok {
			require.NoError(t, f.Close())
		}

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"Submission saved"`)
		assert.Contains(t, string(data), `"submission_id":"abc"`)
	})

	t.Run("file output without name", func(t *testing.T) {
		_, err := New(domain.LoggingConfig{Output: "file"})
		assert.Error(t, err)
	})

	t.Run("invalid output", func(t *testing.T) {
		_, err := New(domain.LoggingConfig{Output: "syslog"})
		assert.Error(t, err)
	})
}
