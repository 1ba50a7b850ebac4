package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/review"
)

const smokerSnapshot = `{
  "personal_info": {"age": 35, "gender": "male"},
  "lifestyle": {"smoking_status": "current", "physical_activity": "active"},
  "medical_history": {},
  "family_history": {},
  "measurements": {"height_cm": 180, "weight_kg": 80},
  "symptoms": {"stress_level": "low"},
  "preventive_care": {}
}`

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEvaluateCommand(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		out, err := execute(t, smokerSnapshot, "evaluate")
		require.NoError(t, err)

		var result domain.EvaluationResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Contains(t, result.FiredRules, "SMOKING")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshot.json")
		require.NoError(t, os.WriteFile(path, []byte(smokerSnapshot), 0644))

		out, err := execute(t, "", "evaluate", "--file", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Chest X-Ray")
	})

	t.Run("incomplete", func(t *testing.T) {
		_, err := execute(t, `{"personal_info": {"age": 40}}`, "evaluate")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrIncompleteSnapshot)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "", "evaluate", "-f", filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestRulesCommand(t *testing.T) {
	out, err := execute(t, "", "rules")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 17)
	assert.Contains(t, lines[1], "ARTHRITIS")
	assert.Contains(t, lines[16], "STRESS")
}

func TestReviewsExportImport(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.db")

	store, err := review.NewSQLiteStore(source)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), &domain.ReviewEntry{
		SubmissionID: uuid.New(),
		Reviewer:     "dr-admin",
		Status:       domain.StatusRejected,
		Feedback:     "Missing blood pressure",
	}))
	require.NoError(t, store.Close())

	exportPath := filepath.Join(dir, "reviews.json")
	_, err = execute(t, "", "reviews", "export", "--db", source, "--out", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Missing blood pressure")

	target := filepath.Join(dir, "target.db")
	out, err := execute(t, "", "reviews", "import", "--db", target, "--in", exportPath)
	require.NoError(t, err)
	assert.Equal(t, "imported 1, skipped 0\n", out)

	out, err = execute(t, "", "reviews", "import", "--db", target, "--in", exportPath)
	require.NoError(t, err)
	assert.Equal(t, "imported 0, skipped 1\n", out)

	out, err = execute(t, "", "reviews", "export", "--db", target)
	require.NoError(t, err)
	assert.Contains(t, out, "dr-admin")

	out, err = execute(t, "", "reviews", "count", "--db", target)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, "", "reviews", "export", "--db", target, "--out", filepath.Join(dir, "missing", "reviews.json"))
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HEALTH_SCREENING_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	out, err := execute(t, "", "token", "--user", "admin-1", "--role", "admin")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)

	_, err = execute(t, "", "token", "--user", "admin-1", "--role", "root")
	assert.Error(t, err)

	_, err = execute(t, "", "token")
	assert.Error(t, err)
}

func TestMCPCommands(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "client.json")
	binary := filepath.Join(dir, "health-screening-mcp")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755))

	out, err := execute(t, "", "mcp", "install", "--config", configPath, "--binary", binary, "--data-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "registered health-screening")

	out, err = execute(t, "", "mcp", "status", "--config", configPath)
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, true, status["registered"])
	assert.Equal(t, binary, status["command"])

	out, err = execute(t, "", "mcp", "uninstall", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	out, err = execute(t, "", "mcp", "uninstall", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "not registered\n", out)
}
