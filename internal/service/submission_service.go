package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

// SubmissionServiceConfig controls per-submission locking
type SubmissionServiceConfig struct {
	LockTTL     time.Duration
	WaitTimeout time.Duration
	RetryDelay  time.Duration
}

// SubmissionService owns the submit, review and regenerate workflows around the engine
type SubmissionService struct {
	engine    domain.RecommendationEngine
	repo      domain.SubmissionRepository
	locker    domain.Locker
	cache     domain.SubmissionCache
	reviews   domain.ReviewLog
	publisher domain.EventPublisher
	config    SubmissionServiceConfig
	logger    *logrus.Logger
	now       func() time.Time
}

// NewSubmissionService creates a new submission service. cache and publisher may be nil.
func NewSubmissionService(
	engine domain.RecommendationEngine,
	repo domain.SubmissionRepository,
	locker domain.Locker,
	cache domain.SubmissionCache,
	reviews domain.ReviewLog,
	publisher domain.EventPublisher,
	config SubmissionServiceConfig,
	logger *logrus.Logger,
) *SubmissionService {
	if config.LockTTL == 0 {
		config.LockTTL = 30 * time.Second
	}
	if config.WaitTimeout == 0 {
		config.WaitTimeout = 5 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 50 * time.Millisecond
	}

	return &SubmissionService{
		engine:    engine,
		repo:      repo,
		locker:    locker,
		cache:     cache,
		reviews:   reviews,
		publisher: publisher,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate validates a snapshot and runs the engine without persisting anything
func (s *SubmissionService) Evaluate(ctx context.Context, snapshot *domain.QuestionnaireSnapshot) (*domain.EvaluationResult, error) {
	if err := domain.ValidateSnapshot(snapshot); err != nil {
		return nil, err
	}
	return s.engine.Evaluate(snapshot)
}

// Submit stores the caller's questionnaire and regenerates its outputs.
// A user has at most one submission; resubmitting replaces the snapshot,
// resets the status to pending and clears the previous review.
func (s *SubmissionService) Submit(ctx context.Context, userID string, snapshot *domain.QuestionnaireSnapshot) (*domain.Submission, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user_id", "is required", userID)
	}
	if err := domain.ValidateSnapshot(snapshot); err != nil {
		return nil, err
	}

	var saved *domain.Submission
	err := s.withUserLock(ctx, userID, func(ctx context.Context) error {
		existing, err := s.repo.GetByUser(ctx, userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("loading existing submission: %w", err)
		}

		result, err := s.engine.Evaluate(snapshot)
		if err != nil {
			return fmt.Errorf("evaluating snapshot: %w", err)
		}

		now := s.now().UTC()
		submission := existing
		if submission == nil {
			submission = &domain.Submission{
				ID:          uuid.New(),
				UserID:      userID,
				SubmittedAt: now,
			}
		}
		submission.Snapshot = snapshot
		submission.UpdatedAt = now
		resetReview(submission)
		applyResult(submission, result)

		if err := s.repo.SaveSubmission(ctx, submission); err != nil {
			return fmt.Errorf("saving submission: %w", err)
		}
		s.invalidate(ctx, submission.ID)

		s.logger.WithFields(logrus.Fields{
			"submission_id":   submission.ID,
			"user_id":         userID,
			"resubmission":    existing != nil,
			"fired_rules":     result.FiredRules,
			"recommendations": len(result.Recommendations),
			"suggestions":     len(result.Suggestions),
		}).Info("Generated screening recommendations")

		s.publish(ctx, newEvent(domain.EventSubmitted, submission, userID, result))
		saved = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// GetForUser returns the caller's own submission
func (s *SubmissionService) GetForUser(ctx context.Context, userID string) (*domain.Submission, error) {
	submission, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting submission for user %s: %w", userID, err)
	}
	return submission, nil
}

// Get returns a submission by ID. Patients may only read their own.
func (s *SubmissionService) Get(ctx context.Context, principal domain.Principal, id uuid.UUID) (*domain.Submission, error) {
	submission, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() && submission.UserID != principal.UserID {
		return nil, domain.ErrForbidden
	}
	return submission, nil
}

// ListPending returns submissions awaiting review, newest first
func (s *SubmissionService) ListPending(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	submissions, err := s.repo.ListByStatus(ctx, domain.StatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing pending submissions: %w", err)
	}
	return submissions, nil
}

// ListAll returns every submission, newest first
func (s *SubmissionService) ListAll(ctx context.Context, limit, offset int) ([]*domain.Submission, error) {
	submissions, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	return submissions, nil
}

// Review applies an admin decision. An empty status means approved.
func (s *SubmissionService) Review(ctx context.Context, reviewer string, id uuid.UUID, status domain.SubmissionStatus, feedback string) (*domain.Submission, error) {
	if status == "" {
		status = domain.StatusApproved
	}
	if !status.IsReviewOutcome() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var reviewed *domain.Submission
	err = s.withUserLock(ctx, current.UserID, func(ctx context.Context) error {
		decision := domain.ReviewDecision{
			Status:     status,
			Feedback:   feedback,
			Reviewer:   reviewer,
			ReviewedAt: s.now().UTC(),
		}
		if err := s.repo.UpdateReview(ctx, id, decision); err != nil {
			return fmt.Errorf("updating review: %w", err)
		}
		s.invalidate(ctx, id)

		if s.reviews != nil {
			entry := &domain.ReviewEntry{
				SubmissionID: id,
				Reviewer:     reviewer,
				Status:       status,
				Feedback:     feedback,
				CreatedAt:    decision.ReviewedAt,
			}
			if err := s.reviews.Record(ctx, entry); err != nil {
				s.logger.WithError(err).WithField("submission_id", id).Warn("Failed to record review log entry")
			}
		}

		updated, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("reloading submission: %w", err)
		}
		reviewed = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"submission_id": id,
		"reviewer":      reviewer,
		"status":        status,
	}).Info("Submission reviewed")

	s.publish(ctx, newEvent(domain.EventReviewed, reviewed, reviewer, nil))
	return reviewed, nil
}

// Regenerate re-runs the engine on the stored snapshot and replaces the outputs.
// The submission goes back to pending since its outputs changed.
func (s *SubmissionService) Regenerate(ctx context.Context, actor string, id uuid.UUID) (*domain.Submission, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var regenerated *domain.Submission
	err = s.withUserLock(ctx, current.UserID, func(ctx context.Context) error {
		submission, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("loading submission: %w", err)
		}

		result, err := s.engine.Evaluate(submission.Snapshot)
		if err != nil {
			return fmt.Errorf("evaluating stored snapshot: %w", err)
		}

		submission.UpdatedAt = s.now().UTC()
		resetReview(submission)
		applyResult(submission, result)

		if err := s.repo.SaveSubmission(ctx, submission); err != nil {
			return fmt.Errorf("saving submission: %w", err)
		}
		s.invalidate(ctx, id)

		s.publish(ctx, newEvent(domain.EventRegenerated, submission, actor, result))
		regenerated = submission
		return nil
	})
	if err != nil {
		return nil, err
	}
	return regenerated, nil
}

// ReviewHistory returns the review log of one submission, oldest first
func (s *SubmissionService) ReviewHistory(ctx context.Context, id uuid.UUID) ([]*domain.ReviewEntry, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	if s.reviews == nil {
		return []*domain.ReviewEntry{}, nil
	}
	entries, err := s.reviews.ListBySubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing review history: %w", err)
	}
	return entries, nil
}

// Rules exposes the engine catalog
func (s *SubmissionService) Rules() []domain.RuleInfo {
	return s.engine.Rules()
}

func (s *SubmissionService) load(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	if s.cache == nil {
		return s.getByID(ctx, id)
	}

	if submission, ok := s.cache.Get(ctx, id); ok {
		return submission, nil
	}

	generation := s.cache.Generation(ctx, id)
	submission, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.cache.Fill(ctx, submission, generation) {
		s.logger.WithField("submission_id", id).Debug("Submission read not cached")
	}
	return submission, nil
}

func (s *SubmissionService) getByID(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting submission %s: %w", id, err)
	}
	return submission, nil
}

func (s *SubmissionService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
}

func (s *SubmissionService) publish(ctx context.Context, event *domain.SubmissionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":    event.Type,
			"submission_id": event.SubmissionID,
		}).Warn("Failed to publish submission event")
	}
}

// withUserLock serializes writes for one user's submission
func (s *SubmissionService) withUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	key := "submission:" + userID
	deadline := time.Now().Add(s.config.WaitTimeout)

	for {
		token, acquired, err := s.locker.TryLock(ctx, key, s.config.LockTTL)
		if err != nil {
			return fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if acquired {
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					s.logger.WithError(err).WithField("lock_key", key).Warn("Failed to release lock")
				}
			}()
			return fn(ctx)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", domain.ErrLockUnavailable, key)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.config.RetryDelay):
		}
	}
}

func resetReview(submission *domain.Submission) {
	submission.Status = domain.StatusPending
	submission.AdminFeedback = ""
	submission.ReviewedBy = ""
	submission.ReviewedAt = nil
}

func applyResult(submission *domain.Submission, result *domain.EvaluationResult) {
	submission.Recommendations = result.Recommendations
	submission.Suggestions = result.Suggestions
}

func newEvent(eventType domain.EventType, submission *domain.Submission, actor string, result *domain.EvaluationResult) *domain.SubmissionEvent {
	event := &domain.SubmissionEvent{
		ID:              uuid.NewString(),
		Type:            eventType,
		SubmissionID:    submission.ID,
		UserID:          submission.UserID,
		Status:          submission.Status,
		Actor:           actor,
		Recommendations: len(submission.Recommendations),
		OccurredAt:      time.Now().UTC(),
	}
	if result != nil {
		event.FiredRules = result.FiredRules
	}
	return event
}
