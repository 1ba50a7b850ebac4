package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

const submissionColumns = `id, user_id, snapshot, status, admin_feedback, reviewed_by,
			   reviewed_at, submitted_at, updated_at`

// SubmissionRepository handles submission persistence on PostgreSQL
type SubmissionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
	now func() time.Time
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:  db,
		log: logger,
		now: time.Now,
	}
}

// SaveSubmission upserts the submission and replaces its recommendations and
// suggestions in one transaction
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	prepareSave(submission, r.now)

	snapshot, err := encodeSnapshot(submission.Snapshot)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO submissions (
				id, user_id, snapshot, status, admin_feedback, reviewed_by,
				reviewed_at, submitted_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9
			)
			ON CONFLICT (id) DO UPDATE SET
				snapshot = EXCLUDED.snapshot,
				status = EXCLUDED.status,
				admin_feedback = EXCLUDED.admin_feedback,
				reviewed_by = EXCLUDED.reviewed_by,
				reviewed_at = EXCLUDED.reviewed_at,
				updated_at = EXCLUDED.updated_at`,
			submission.ID,
			submission.UserID,
			snapshot,
			string(submission.Status),
			submission.AdminFeedback,
			submission.ReviewedBy,
			submission.ReviewedAt,
			submission.SubmittedAt,
			submission.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upserting submission: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM recommendations WHERE submission_id = $1`, submission.ID); err != nil {
			return fmt.Errorf("clearing recommendations: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM suggestions WHERE submission_id = $1`, submission.ID); err != nil {
			return fmt.Errorf("clearing suggestions: %w", err)
		}

		batch := &pgx.Batch{}
		for i, rec := range submission.Recommendations {
			batch.Queue(`
				INSERT INTO recommendations (submission_id, position, test_name, reason, category, rule)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				submission.ID, i, rec.TestName, rec.Reason, rec.Category, rec.Rule)
		}
		for i, sug := range submission.Suggestions {
			batch.Queue(`
				INSERT INTO suggestions (submission_id, position, suggestion_text, category, rule)
				VALUES ($1, $2, $3, $4, $5)`,
				submission.ID, i, sug.Text, sug.Category, sug.Rule)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting outputs: %w", err)
		}
		return nil
	})
	if err != nil {
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

// GetByID retrieves a submission with its outputs
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	submission, err := r.scanSubmission(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"submission_id": id,
			"error":         err,
		}).Error("Failed to get submission by ID")
		return nil, fmt.Errorf("getting submission by ID: %w", err)
	}

	if err := r.loadOutputs(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GetByUser retrieves the single submission owned by a user
func (r *SubmissionRepository) GetByUser(ctx context.Context, userID string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = $1`

	submission, err := r.scanSubmission(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err,
		}).Error("Failed to get submission by user")
		return nil, fmt.Errorf("getting submission by user: %w", err)
	}

	if err := r.loadOutputs(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// ListByStatus retrieves submissions in one status, newest first
func (r *SubmissionRepository) ListByStatus(ctx context.Context, status domain.SubmissionStatus, limit, offset int) ([]*domain.Submission, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		WHERE status = $1
		ORDER BY submitted_at DESC, id
		LIMIT $2 OFFSET $3`

	return r.list(ctx, query, string(status), limit, offset)
}

// List retrieves all submissions, newest first
func (r *SubmissionRepository) List(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	limit, offset = clampPage(limit, offset)
	query := `SELECT ` + submissionColumns + `
		FROM submissions
		ORDER BY submitted_at DESC, id
		LIMIT $1 OFFSET $2`

	return r.list(ctx, query, limit, offset)
}

// UpdateReview stores an admin decision without touching the outputs
func (r *SubmissionRepository) UpdateReview(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) error {
	reviewedAt := decision.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = r.now().UTC()
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE submissions
		SET status = $2, admin_feedback = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $6
		WHERE id = $1`,
		id, string(decision.Status), decision.Feedback, decision.Reviewer, reviewedAt, r.now().UTC(),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": id,
			"error":         err,
		}).Error("Failed to update review")
		return fmt.Errorf("updating review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": id,
		"status":        decision.Status,
		"reviewed_by":   decision.Reviewer,
	}).Info("Submission review updated")

	return nil
}

// Close is a no-op; the pool is owned by the caller
func (r *SubmissionRepository) Close() error {
	return nil
}

func (r *SubmissionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Submission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}

	submissions := make([]*domain.Submission, 0)
	for rows.Next() {
		submission, err := r.scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		submissions = append(submissions, submission)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submissions: %w", err)
	}

	for _, submission := range submissions {
		if err := r.loadOutputs(ctx, submission); err != nil {
			return nil, err
		}
	}
	return submissions, nil
}

func (r *SubmissionRepository) scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var (
		submission domain.Submission
		snapshot   []byte
		status     string
		reviewedAt *time.Time
	)

	err := row.Scan(
		&submission.ID,
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

	submission.Snapshot, err = decodeSnapshot(snapshot)
	if err != nil {
		return nil, err
	}
	submission.Status = domain.SubmissionStatus(status)
	submission.ReviewedAt = reviewedAt
	return &submission, nil
}

func (r *SubmissionRepository) loadOutputs(ctx context.Context, submission *domain.Submission) error {
	rows, err := r.db.Query(ctx, `
		SELECT test_name, reason, category, rule
		FROM recommendations
		WHERE submission_id = $1
		ORDER BY position`, submission.ID)
	if err != nil {
		return fmt.Errorf("loading recommendations: %w", err)
	}
	recommendations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Recommendation, error) {
		var rec domain.Recommendation
		err := row.Scan(&rec.TestName, &rec.Reason, &rec.Category, &rec.Rule)
		return rec, err
	})
	if err != nil {
		return fmt.Errorf("scanning recommendations: %w", err)
	}

	rows, err = r.db.Query(ctx, `
		SELECT suggestion_text, category, rule
		FROM suggestions
		WHERE submission_id = $1
		ORDER BY position`, submission.ID)
	if err != nil {
		return fmt.Errorf("loading suggestions: %w", err)
	}
	suggestions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Suggestion, error) {
		var sug domain.Suggestion
		err := row.Scan(&sug.Text, &sug.Category, &sug.Rule)
		return sug, err
	})
	if err != nil {
		return fmt.Errorf("scanning suggestions: %w", err)
	}

	submission.Recommendations = recommendations
	submission.Suggestions = suggestions
	return nil
}
