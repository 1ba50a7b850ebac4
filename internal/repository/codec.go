package repository

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/health-screening-server/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func encodeSnapshot(snapshot *domain.QuestionnaireSnapshot) ([]byte, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("encoding snapshot: %w", domain.ErrIncompleteSnapshot)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*domain.QuestionnaireSnapshot, error) {
	var snapshot domain.QuestionnaireSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// prepareSave fills the bookkeeping fields a save relies on
func prepareSave(submission *domain.Submission, now func() time.Time) {
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	ts := now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = ts
	}
	if submission.UpdatedAt.IsZero() {
		submission.UpdatedAt = ts
	}
	if submission.Status == "" {
		submission.Status = domain.StatusPending
	}
	if submission.Recommendations == nil {
		submission.Recommendations = make([]domain.Recommendation, 0)
	}
	if submission.Suggestions == nil {
		submission.Suggestions = make([]domain.Suggestion, 0)
	}
}
