package review

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/health-screening-server/internal/domain"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL review store.
// It expects the review_log table to exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL review store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Record appends an entry to the log.
func (s *PostgresStore) Record(ctx context.Context, entry *domain.ReviewEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO review_log (submission_id, reviewer, status, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		entry.SubmissionID,
		entry.Reviewer,
		string(entry.Status),
		entry.Feedback,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}
	return nil
}

func (s *PostgresStore) insertIfAbsent(ctx context.Context, entry *domain.ReviewEntry) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (submission_id, reviewer, status, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id, reviewer, created_at) DO NOTHING
	`,
		entry.SubmissionID,
		entry.Reviewer,
		string(entry.Status),
		entry.Feedback,
		entry.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListBySubmission returns the review history of one submission, oldest first.
func (s *PostgresStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*domain.ReviewEntry, error) {
	query := `
		SELECT id, submission_id, reviewer, status, feedback, created_at
		FROM review_log
		WHERE submission_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review history: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// List returns all entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.ReviewEntry, error) {
	query := `
		SELECT id, submission_id, reviewer, status, feedback, created_at
		FROM review_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list review log: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// Count returns the total number of entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count review log: %w", err)
	}
	return count, nil
}

// ExportJSON exports the whole log to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) (int, error) {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports entries from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
