package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/health-screening-server/internal/database"
	"github.com/health-screening-server/internal/domain"
)

// generateTestPassword creates a random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := newTestLogger()
	db, err := database.NewConnection(ctx, config, logger)
	require.NoError(t, err, "Failed to create database connection")

	migrationRunner, err := database.NewMigrationRunner(config.URL(), "../../migrations", logger)
	require.NoError(t, err, "Failed to create migration runner")
	require.NoError(t, migrationRunner.Up(ctx), "Failed to run migrations")

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func TestSubmissionRepository_Postgres(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSubmissionRepository(db.Pool, newTestLogger())
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		submission := testSubmission("pg-user-1", time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, repo.SaveSubmission(ctx, submission))

		got, err := repo.GetByID(ctx, submission.ID)
		require.NoError(t, err)
		assert.Equal(t, submission.UserID, got.UserID)
		assert.Equal(t, submission.Recommendations, got.Recommendations)
		assert.Equal(t, submission.Suggestions, got.Suggestions)
		assert.True(t, submission.SubmittedAt.Equal(got.SubmittedAt))
		assert.Nil(t, got.ReviewedAt)
		assert.Equal(t, 52, *got.Snapshot.PersonalInfo.Age)

		byUser, err := repo.GetByUser(ctx, "pg-user-1")
		require.NoError(t, err)
		assert.Equal(t, submission.ID, byUser.ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.UpdateReview(ctx, uuid.New(), domain.ReviewDecision{Status: domain.StatusApproved})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("resubmit replaces outputs", func(t *testing.T) {
		submission := testSubmission("pg-user-2", time.Now().UTC())
		submission.Snapshot = testSnapshot("150/95")
		submission.Recommendations, submission.Suggestions = hypertensionOutputs()
		require.NoError(t, repo.SaveSubmission(ctx, submission))

		submission.Snapshot = testSnapshot("120/80")
		submission.Recommendations = nil
		submission.Suggestions = nil
		require.NoError(t, repo.SaveSubmission(ctx, submission))

		got, err := repo.GetByID(ctx, submission.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Recommendations)
		assert.Empty(t, got.Suggestions)
		assert.Equal(t, "120/80", got.Snapshot.Measurements.BloodPressure)
	})

	t.Run("failed save keeps previous outputs", func(t *testing.T) {
		submission := testSubmission("pg-user-3", time.Now().UTC())
		require.NoError(t, repo.SaveSubmission(ctx, submission))
		previous := append([]domain.Recommendation(nil), submission.Recommendations...)

		// same user under a new id violates the unique user constraint
		other := testSubmission("pg-user-3", time.Now().UTC())
		other.Recommendations, other.Suggestions = hypertensionOutputs()
		require.Error(t, repo.SaveSubmission(ctx, other))

		got, err := repo.GetByID(ctx, submission.ID)
		require.NoError(t, err)
		assert.Equal(t, previous, got.Recommendations)

		_, err = repo.GetByID(ctx, other.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("review and list", func(t *testing.T) {
		submission := testSubmission("pg-user-4", time.Now().UTC().Add(time.Hour))
		require.NoError(t, repo.SaveSubmission(ctx, submission))

		err := repo.UpdateReview(ctx, submission.ID, domain.ReviewDecision{
			Status:   domain.StatusRejected,
			Feedback: "Incomplete family history",
			Reviewer: "dr-admin",
		})
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, submission.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, got.Status)
		assert.Equal(t, "dr-admin", got.ReviewedBy)
		require.NotNil(t, got.ReviewedAt)

		all, err := repo.List(ctx, 10, 0)
		require.NoError(t, err)
		require.NotEmpty(t, all)
		assert.Equal(t, submission.ID, all[0].ID, "newest submission first")

		pending, err := repo.ListByStatus(ctx, domain.StatusPending, 10, 0)
		require.NoError(t, err)
		for _, p := range pending {
			assert.Equal(t, domain.StatusPending, p.Status)
			assert.NotEqual(t, submission.ID, p.ID)
		}
	})
}
