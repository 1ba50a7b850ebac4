package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/health-screening-server/internal/domain"
)

// SQLiteSubmissionRepository persists submissions in a local SQLite file.
// Used by single-instance deployments and the CLI.
type SQLiteSubmissionRepository struct {
	db  *sql.DB
	log *logrus.Logger
	now func() time.Time
}

// NewSQLiteSubmissionRepository opens (or creates) the database at dbPath
func NewSQLiteSubmissionRepository(dbPath string, logger *logrus.Logger) (*SQLiteSubmissionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
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
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteSubmissionRepository{
		db:  db,
		log: logger,
		now: time.Now,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		snapshot TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		admin_feedback TEXT NOT NULL DEFAULT '',
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at DATETIME,
		submitted_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at);

	CREATE TABLE IF NOT EXISTS recommendations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		test_name TEXT NOT NULL,
		reason TEXT NOT NULL,
		category TEXT NOT NULL,
		rule TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_recommendations_submission ON recommendations(submission_id, position);

	CREATE TABLE IF NOT EXISTS suggestions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		suggestion_text TEXT NOT NULL,
		category TEXT NOT NULL,
		rule TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_suggestions_submission ON suggestions(submission_id, position);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveSubmission upserts the submission and replaces its outputs in one transaction
func (r *SQLiteSubmissionRepository) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	prepareSave(submission, r.now)

	snapshot, err := encodeSnapshot(submission.Snapshot)
	if err != nil {
		return err
	}

	if err := r.saveTx(ctx, submission, snapshot); err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": submission.ID,
			"user_id":       submission.UserID,
			"error":         err,
		}).Error("Failed to save submission")
		return fmt.Errorf("saving submission: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id":   submission.ID,
		"status":          submission.Status,
		"recommendations": len(submission.Recommendations),
		"suggestions":     len(submission.Suggestions),
	}).Info("Submission saved successfully")

	return nil
}

func (r *SQLiteSubmissionRepository) saveTx(ctx context.Context, submission *domain.Submission, snapshot []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := submission.ID.String()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (
			id, user_id, snapshot, status, admin_feedback, reviewed_by,
			reviewed_at, submitted_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			snapshot = excluded.snapshot,
			status = excluded.status,
			admin_feedback = excluded.admin_feedback,
			reviewed_by = excluded.reviewed_by,
			reviewed_at = excluded.reviewed_at,
			updated_at = excluded.updated_at
	`,
		id,
		submission.UserID,
		string(snapshot),
		string(submission.Status),
		submission.AdminFeedback,
		submission.ReviewedBy,
		nullTime(submission.ReviewedAt),
		submission.SubmittedAt,
		submission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recommendations WHERE submission_id = ?", id); err != nil {
		return fmt.Errorf("clearing recommendations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM suggestions WHERE submission_id = ?", id); err != nil {
		return fmt.Errorf("clearing suggestions: %w", err)
	}

	for i, rec := range submission.Recommendations {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO recommendations (submission_id, position, test_name, reason, category, rule)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, rec.TestName, rec.Reason, rec.Category, rec.Rule)
		if err != nil {
			return fmt.Errorf("inserting recommendation %d: %w", i, err)
		}
	}
	for i, sug := range submission.Suggestions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO suggestions (submission_id, position, suggestion_text, category, rule)
			VALUES (?, ?, ?, ?, ?)
		`, id, i, sug.Text, sug.Category, sug.Rule)
		if err != nil {
			return fmt.Errorf("inserting suggestion %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a submission with its outputs
func (r *SQLiteSubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id.String())
	return r.getOne(ctx, row)
}

// GetByUser retrieves the single submission owned by a user
func (r *SQLiteSubmissionRepository) GetByUser(ctx context.Context, userID string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE user_id = ?`, userID)
	return r.getOne(ctx, row)
}

// ListByStatus retrieves submissions in one status, newest first
func (r *SQLiteSubmissionRepository) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]*domain.Submission, error) {
	limit, offset = clampPage(limit, offset)
	return r.list(ctx, `SELECT `+submissionColumns+`
		FROM submissions
		WHERE status = ?
		ORDER BY submitted_at DESC, id
		LIMIT ? OFFSET ?`, string(status), limit, offset)
}

// List retrieves all submissions, newest first
func (r *SQLiteSubmissionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	limit, offset = clampPage(limit, offset)
	return r.list(ctx, `SELECT `+submissionColumns+`
		FROM submissions
		ORDER BY submitted_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
}

// UpdateReview stores an admin decision without touching the outputs
func (r *SQLiteSubmissionRepository) UpdateReview(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) error {
	reviewedAt := decision.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = r.now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = ?, admin_feedback = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(decision.Status), decision.Feedback, decision.Reviewer, reviewedAt, r.now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating review: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating review: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": id,
		"status":        decision.Status,
		"reviewed_by":   decision.Reviewer,
	}).Info("Submission review updated")
	return nil
}

// Close closes the database
func (r *SQLiteSubmissionRepository) Close() error {
	return r.db.Close()
}

// Ping checks that the database file is reachable
func (r *SQLiteSubmissionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteSubmission(s scanner) (*domain.Submission, error) {
	var (
		submission domain.Submission
		id         string
		snapshot   string
		status     string
		reviewedAt sql.NullTime
	)

	err := s.Scan(
		&id,
		&submission.UserID,
		&snapshot,
		&status,
		&submission.AdminFeedback,
		&submission.ReviewedBy,
		&reviewedAt,
		&submission.SubmittedAt,
		&submission.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	submission.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parsing submission id: %w", err)
	}
	submission.Snapshot, err = decodeSnapshot([]byte(snapshot))
	if err != nil {
		return nil, err
	}
	submission.Status = domain.SubmissionStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		submission.ReviewedAt = &t
	}
	return &submission, nil
}

func (r *SQLiteSubmissionRepository) getOne(ctx context.Context, row *sql.Row) (*domain.Submission, error) {
	submission, err := scanSQLiteSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	if err := r.loadOutputs(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

func (r *SQLiteSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	submissions := make([]*domain.Submission, 0)
	for rows.Next() {
		submission, err := scanSQLiteSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		submissions = append(submissions, submission)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, submission := range submissions {
		if err := r.loadOutputs(ctx, submission); err != nil {
			return nil, err
		}
	}
	return submissions, nil
}

func (r *SQLiteSubmissionRepository) loadOutputs(ctx context.Context, submission *domain.Submission) error {
	id := submission.ID.String()

	rows, err := r.db.QueryContext(ctx, `
		SELECT test_name, reason, category, rule
		FROM recommendations
		WHERE submission_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return fmt.Errorf("loading recommendations: %w", err)
	}
	submission.Recommendations = make([]domain.Recommendation, 0)
	for rows.Next() {
		var rec domain.Recommendation
		if err := rows.Scan(&rec.TestName, &rec.Reason, &rec.Category, &rec.Rule); err != nil {
			rows.Close()
			return fmt.Errorf("scanning recommendation: %w", err)
		}
		submission.Recommendations = append(submission.Recommendations, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT suggestion_text, category, rule
		FROM suggestions
		WHERE submission_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return fmt.Errorf("loading suggestions: %w", err)
	}
	defer rows.Close()
	submission.Suggestions = make([]domain.Suggestion, 0)
	for rows.Next() {
		var sug domain.Suggestion
		if err := rows.Scan(&sug.Text, &sug.Category, &sug.Rule); err != nil {
			return fmt.Errorf("scanning suggestion: %w", err)
		}
		submission.Suggestions = append(submission.Suggestions, sug)
	}
	return rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
