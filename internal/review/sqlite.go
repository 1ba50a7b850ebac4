package review

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/health-screening-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(s scanner) (*domain.ReviewEntry, error) {
	entry := &domain.ReviewEntry{}
	var status string

	err := s.Scan(&entry.ID, &entry.SubmissionID, &entry.Reviewer, &status, &entry.Feedback, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Status = domain.SubmissionStatus(status)
	return entry, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS review_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		reviewer TEXT NOT NULL,
		status TEXT NOT NULL,
		feedback TEXT DEFAULT '',
		created_at DATETIME NOT NULL,
		UNIQUE(submission_id, reviewer, created_at)
	);

	CREATE INDEX IF NOT EXISTS idx_review_log_submission ON review_log(submission_id);
	CREATE INDEX IF NOT EXISTS idx_review_log_created_at ON review_log(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Record appends an entry to the log.
func (s *SQLiteStore) Record(ctx context.Context, entry *domain.ReviewEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (submission_id, reviewer, status, feedback, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.SubmissionID.String(),
		entry.Reviewer,
		string(entry.Status),
		entry.Feedback,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	entry.ID = id
	return nil
}

func (s *SQLiteStore) insertIfAbsent(ctx context.Context, entry *domain.ReviewEntry) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO review_log (submission_id, reviewer, status, feedback, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (submission_id, reviewer, created_at) DO NOTHING
	`,
		entry.SubmissionID.String(),
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
func (s *SQLiteStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*domain.ReviewEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, reviewer, status, feedback, created_at
		FROM review_log
		WHERE submission_id = ?
		ORDER BY created_at ASC, id ASC
	`, submissionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

// List returns all entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.ReviewEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, reviewer, status, feedback, created_at
		FROM review_log
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	return collect(rows)
}

func collect(rows *sql.Rows) ([]*domain.ReviewEntry, error) {
	result := make([]*domain.ReviewEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// Count returns the total number of entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_log").Scan(&count)
	return count, err
}

// ExportJSON exports the whole log to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) (int, error) {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports entries from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
