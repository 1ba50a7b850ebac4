package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecommendationEngine evaluates a questionnaire snapshot into screening outputs
type RecommendationEngine interface {
	Evaluate(snapshot *QuestionnaireSnapshot) (*EvaluationResult, error)
	Rules() []RuleInfo
}

// SubmissionRepository defines the interface for submission persistence.
// SaveSubmission must replace the stored outputs atomically: on failure the previous set stays intact.
type SubmissionRepository interface {
	SaveSubmission(ctx context.Context, submission *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	GetByUser(ctx context.Context, userID string) (*Submission, error)
	ListByStatus(ctx context.Context, status SubmissionStatus, limit, offset int) ([]*Submission, error)
	List(ctx context.Context, limit, offset int) ([]*Submission, error)
	UpdateReview(ctx context.Context, id uuid.UUID, decision ReviewDecision) error
	Close() error
}

// ReviewLog records every admin review action
type ReviewLog interface {
	Record(ctx context.Context, entry *ReviewEntry) error
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*ReviewEntry, error)
}

// SubmissionCache is a read-through cache for submissions.
// Generation is read before loading from storage; Fill discards the loaded
// submission if Invalidate ran in between.
type SubmissionCache interface {
	Get(ctx context.Context, id uuid.UUID) (*Submission, bool)
	Generation(ctx context.Context, id uuid.UUID) int64
	Fill(ctx context.Context, submission *Submission, generation int64) bool
	Invalidate(ctx context.Context, id uuid.UUID)
}

// Locker provides exclusive, expiring locks on a key.
// Unlock only releases a lock still held under the given token.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// EventPublisher delivers submission lifecycle events to downstream consumers
type EventPublisher interface {
	Publish(ctx context.Context, event *SubmissionEvent) error
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
