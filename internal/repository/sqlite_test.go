package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-screening-server/internal/domain"
)

func setupSQLiteRepo(t *testing.T) *SQLiteSubmissionRepository {
	t.Helper()
	repo, err := NewSQLiteSubmissionRepository(filepath.Join(t.TempDir(), "screening.db"), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteSubmissionRepository_SaveAndGet(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	submission := testSubmission("user-1", time.Now().UTC())
	require.NoError(t, repo.SaveSubmission(ctx, submission))

	got, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)

	assert.Equal(t, submission.ID, got.ID)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Nil(t, got.ReviewedAt)
	assert.WithinDuration(t, submission.SubmittedAt, got.SubmittedAt, time.Millisecond)
	assert.Equal(t, submission.Recommendations, got.Recommendations)
	assert.Equal(t, submission.Suggestions, got.Suggestions)

	require.NotNil(t, got.Snapshot)
	require.NotNil(t, got.Snapshot.PersonalInfo.Age)
	assert.Equal(t, 52, *got.Snapshot.PersonalInfo.Age)
	assert.Equal(t, "mild asthma", got.Snapshot.MedicalHistory.OtherConditions)
	assert.True(t, got.Snapshot.IsComplete())

	byUser, err := repo.GetByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, submission.ID, byUser.ID)
}

func TestSQLiteSubmissionRepository_NotFound(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.UpdateReview(ctx, uuid.New(), domain.ReviewDecision{Status: domain.StatusApproved})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteSubmissionRepository_SaveDefaults(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	submission := &domain.Submission{UserID: "user-2", Snapshot: testSnapshot("118/76")}
	require.NoError(t, repo.SaveSubmission(ctx, submission))

	assert.NotEqual(t, uuid.Nil, submission.ID)
	assert.Equal(t, domain.StatusPending, submission.Status)
	assert.False(t, submission.SubmittedAt.IsZero())

	got, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Recommendations)
	assert.Empty(t, got.Recommendations)
	assert.NotNil(t, got.Suggestions)
	assert.Empty(t, got.Suggestions)
}

func TestSQLiteSubmissionRepository_SaveRequiresSnapshot(t *testing.T) {
	repo := setupSQLiteRepo(t)

	err := repo.SaveSubmission(context.Background(), &domain.Submission{UserID: "user-3"})
	assert.ErrorIs(t, err, domain.ErrIncompleteSnapshot)
}

// A corrected resubmission must fully replace the hypertension outputs.
func TestSQLiteSubmissionRepository_ResubmitReplacesOutputs(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	submission := testSubmission("user-4", time.Now().UTC())
	submission.Snapshot = testSnapshot("150/95")
	submission.Recommendations, submission.Suggestions = hypertensionOutputs()
	require.NoError(t, repo.SaveSubmission(ctx, submission))

	got, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.Contains(t, rulesOf(got.Recommendations), "HYPERTENSION")

	submission.Snapshot = testSnapshot("120/80")
	submission.Recommendations = []domain.Recommendation{
		{TestName: "Pulmonary Function Test", Reason: "Asthma history", Category: domain.CategoryDiagnosticProcedure, Rule: "RESPIRATORY"},
	}
	submission.Suggestions = nil
	require.NoError(t, repo.SaveSubmission(ctx, submission))

	got, err = repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.NotContains(t, rulesOf(got.Recommendations), "HYPERTENSION")
	assert.Len(t, got.Recommendations, 1)
	assert.Empty(t, got.Suggestions)
	assert.Equal(t, "120/80", got.Snapshot.Measurements.BloodPressure)
}

func TestSQLiteSubmissionRepository_FailedSaveKeepsPreviousOutputs(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	submission := testSubmission("user-5", time.Now().UTC())
	require.NoError(t, repo.SaveSubmission(ctx, submission))
	previous := append([]domain.Recommendation(nil), submission.Recommendations...)

	_, err := repo.db.Exec(`
		CREATE TRIGGER reject_suggestion BEFORE INSERT ON suggestions
		WHEN NEW.suggestion_text = 'boom'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END;
	`)
	require.NoError(t, err)

	submission.Recommendations, _ = hypertensionOutputs()
	submission.Suggestions = []domain.Suggestion{{Text: "boom", Category: domain.CategoryLifestyle}}
	err = repo.SaveSubmission(ctx, submission)
	require.Error(t, err)

	got, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, previous, got.Recommendations)
	assert.Equal(t, []domain.Suggestion{{Text: "Walk daily", Category: domain.CategoryLifestyle, Rule: "SEDENTARY"}}, got.Suggestions)
}

func TestSQLiteSubmissionRepository_UpdateReview(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	submission := testSubmission("user-6", time.Now().UTC())
	require.NoError(t, repo.SaveSubmission(ctx, submission))

	reviewedAt := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	err := repo.UpdateReview(ctx, submission.ID, domain.ReviewDecision{
		Status:     domain.StatusNeedsInfo,
		Feedback:   "Please add recent lab results",
		Reviewer:   "dr-admin",
		ReviewedAt: reviewedAt,
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNeedsInfo, got.Status)
	assert.Equal(t, "Please add recent lab results", got.AdminFeedback)
	assert.Equal(t, "dr-admin", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, reviewedAt.Equal(*got.ReviewedAt))
	assert.Equal(t, submission.Recommendations, got.Recommendations, "review must not touch outputs")
}

func TestSQLiteSubmissionRepository_List(t *testing.T) {
	repo := setupSQLiteRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	ids := make([]uuid.UUID, 0, 3)
	for i, user := range []string{"a", "b", "c"} {
		submission := testSubmission(user, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.SaveSubmission(ctx, submission))
		ids = append(ids, submission.ID)
	}
	require.NoError(t, repo.UpdateReview(ctx, ids[1], domain.ReviewDecision{Status: domain.StatusApproved, Reviewer: "admin"}))

	all, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})
	assert.Len(t, all[0].Recommendations, 2)

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[1], page[0].ID)

	pending, err := repo.ListByStatus(ctx, domain.StatusPending, 0, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[2], pending[0].ID)
	assert.Equal(t, ids[0], pending[1].ID)

	approved, err := repo.ListByStatus(ctx, domain.StatusApproved, 10, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, ids[1], approved[0].ID)
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name           string
		limit, offset  int
		wantL, wantOff int
	}{
		{"defaults", 0, 0, defaultListLimit, 0},
		{"negative offset", 10, -5, 10, 0},
		{"above max", 1000, 3, maxListLimit, 3},
		{"unchanged", 25, 50, 25, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := clampPage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantL, l)
			assert.Equal(t, tt.wantOff, o)
		})
	}
}
