package review

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-screening-server/internal/domain"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reviews.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStore_RecordAndHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	submissionID := uuid.New()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	first := &domain.ReviewEntry{
		SubmissionID: submissionID,
		Reviewer:     "dr-admin",
		Status:       domain.StatusNeedsInfo,
		Feedback:     "Please add your latest blood pressure reading",
		CreatedAt:    base,
	}
	second := &domain.ReviewEntry{
		SubmissionID: submissionID,
		Reviewer:     "dr-admin",
		Status:       domain.StatusApproved,
		CreatedAt:    base.Add(time.Hour),
	}
	other := &domain.ReviewEntry{
		SubmissionID: uuid.New(),
		Reviewer:     "dr-other",
		Status:       domain.StatusRejected,
		CreatedAt:    base,
	}

	require.NoError(t, store.Record(ctx, second))
	require.NoError(t, store.Record(ctx, first))
	require.NoError(t, store.Record(ctx, other))
	assert.NotZero(t, first.ID)

	history, err := store.ListBySubmission(ctx, submissionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusNeedsInfo, history[0].Status)
	assert.Equal(t, "Please add your latest blood pressure reading", history[0].Feedback)
	assert.Equal(t, domain.StatusApproved, history[1].Status)
	assert.Equal(t, submissionID, history[1].SubmissionID)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSQLiteStore_ListPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &domain.ReviewEntry{
			SubmissionID: uuid.New(),
			Reviewer:     "dr-admin",
			Status:       domain.StatusReviewed,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	rest, err := store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, source.Record(ctx, &domain.ReviewEntry{
			SubmissionID: uuid.New(),
			Reviewer:     "dr-admin",
			Status:       domain.StatusApproved,
			Feedback:     "ok",
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}))
	}

	var buf bytes.Buffer
	written, err := source.ExportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, written)
	assert.Contains(t, buf.String(), `"version": "1.0"`)
	assert.Contains(t, buf.String(), `"count": 3`)

	target := setupTestStore(t)
	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, imported)
	assert.Equal(t, 0, skipped)

	imported, skipped, err = target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 3, skipped)
}

func TestSQLiteStore_ImportRejectsBadJSON(t *testing.T) {
	store := setupTestStore(t)

	_, _, err := store.ImportJSON(context.Background(), bytes.NewReader([]byte("{not json")))
	assert.Error(t, err)
}
