package review

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-screening-server/internal/domain"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return store, mock
}

func TestPostgresStore_Record(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()
	submissionID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO review_log")).
		WithArgs(submissionID.String(), "dr-admin", "approved", "looks good", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	entry := &domain.ReviewEntry{
		SubmissionID: submissionID,
		Reviewer:     "dr-admin",
		Status:       domain.StatusApproved,
		Feedback:     "looks good",
	}
	require.NoError(t, store.Record(ctx, entry))
	assert.Equal(t, int64(42), entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListBySubmission(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()
	submissionID := uuid.New()
	created := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "submission_id", "reviewer", "status", "feedback", "created_at"}).
		AddRow(int64(1), submissionID.String(), "dr-admin", "needs_info", "more detail", created).
		AddRow(int64(2), submissionID.String(), "dr-admin", "approved", "", created.Add(time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM review_log")).
		WithArgs(submissionID.String()).
		WillReturnRows(rows)

	history, err := store.ListBySubmission(ctx, submissionID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.StatusNeedsInfo, history[0].Status)
	assert.Equal(t, submissionID, history[0].SubmissionID)
	assert.Equal(t, created, history[0].CreatedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM review_log")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportJSON(t *testing.T) {
	store, mock := setupMockStore(t)

	payload := `{
		"version": "1.0",
		"count": 3,
		"entries": [
			{"submission_id": "` + uuid.NewString() + `", "reviewed_by": "a", "status": "approved", "created_at": "2026-04-01T09:00:00Z"},
			{"submission_id": "` + uuid.NewString() + `", "reviewed_by": "b", "status": "rejected", "created_at": "2026-04-01T09:00:00Z"},
			{"submission_id": "` + uuid.NewString() + `", "reviewed_by": "c", "status": "pending", "created_at": "2026-04-01T09:00:00Z"}
		]
	}`

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (submission_id, reviewer, created_at) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (submission_id, reviewer, created_at) DO NOTHING")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	imported, skipped, err := store.ImportJSON(context.Background(), bytes.NewBufferString(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 2, skipped, "duplicate and non-review status are skipped")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}
