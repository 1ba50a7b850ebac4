package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus represents the review lifecycle of a submission
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusReviewed  SubmissionStatus = "reviewed"
	StatusApproved  SubmissionStatus = "approved"
	StatusRejected  SubmissionStatus = "rejected"
	StatusNeedsInfo SubmissionStatus = "needs_info"
)

// String returns the string representation of the status
func (s SubmissionStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known lifecycle states
func (s SubmissionStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusApproved, StatusRejected, StatusNeedsInfo:
		return true
	}
	return false
}

// IsReviewOutcome reports whether s can be set by an admin review
func (s SubmissionStatus) IsReviewOutcome() bool {
	return s.IsValid() && s != StatusPending
}

// Recommendation categories
const (
	CategoryScreening           = "Screening"
	CategoryBloodTest           = "Blood Test"
	CategoryCardiacTest         = "Cardiac Test"
	CategoryImaging             = "Imaging"
	CategoryUrineTest           = "Urine Test"
	CategoryDiagnosticProcedure = "Diagnostic Procedure"
	CategoryMedicalConsultation = "Medical Consultation"
	CategoryLifestyle           = "Lifestyle"
	CategoryMentalHealth        = "Mental Health"
)

// Recommendation is a suggested diagnostic test with its rationale
type Recommendation struct {
	TestName string `json:"test_name"`
	Reason   string `json:"reason"`
	Category string `json:"category"`
	Rule     string `json:"rule,omitempty"`
}

// Suggestion is a lifestyle or consultation suggestion
type Suggestion struct {
	Text     string `json:"suggestion_text"`
	Category string `json:"category"`
	Rule     string `json:"rule,omitempty"`
}

// EvaluationResult is the full output of one engine pass
type EvaluationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	Suggestions     []Suggestion     `json:"suggestions"`
	FiredRules      []string         `json:"fired_rules"`
	EvaluatedAt     time.Time        `json:"evaluated_at"`
}

// Submission is one user's questionnaire with its review state and generated outputs
type Submission struct {
	ID              uuid.UUID              `json:"id"`
	UserID          string                 `json:"user_id"`
	Snapshot        *QuestionnaireSnapshot `json:"snapshot"`
	Status          SubmissionStatus       `json:"status"`
	AdminFeedback   string                 `json:"admin_feedback"`
	ReviewedBy      string                 `json:"reviewed_by"`
	ReviewedAt      *time.Time             `json:"reviewed_at,omitempty"`
	SubmittedAt     time.Time              `json:"submitted_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Recommendations []Recommendation       `json:"recommendations"`
	Suggestions     []Suggestion           `json:"suggestions"`
}

// ReviewDecision carries an admin's review of a submission
type ReviewDecision struct {
	Status     SubmissionStatus `json:"status"`
	Feedback   string           `json:"admin_feedback"`
	Reviewer   string           `json:"reviewed_by"`
	ReviewedAt time.Time        `json:"reviewed_at"`
}

// RuleInfo describes one rule of the catalog
type RuleInfo struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Role is the caller's role carried in the access token
type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Principal identifies an authenticated caller
type Principal struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the principal has the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// ReviewEntry is one admin review action in the audit log
type ReviewEntry struct {
	ID           int64            `json:"id,omitempty"`
	SubmissionID uuid.UUID        `json:"submission_id"`
	Reviewer     string           `json:"reviewed_by"`
	Status       SubmissionStatus `json:"status"`
	Feedback     string           `json:"admin_feedback"`
	CreatedAt    time.Time        `json:"created_at"`
}

// EventType names a submission lifecycle event
type EventType string

const (
	EventSubmitted   EventType = "submission.submitted"
	EventReviewed    EventType = "submission.reviewed"
	EventRegenerated EventType = "submission.regenerated"
)

// SubmissionEvent is published after a submission changes state
type SubmissionEvent struct {
	ID              string           `json:"id"`
	Type            EventType        `json:"type"`
	SubmissionID    uuid.UUID        `json:"submission_id"`
	UserID          string           `json:"user_id"`
	Status          SubmissionStatus `json:"status"`
	Actor           string           `json:"actor"`
	FiredRules      []string         `json:"fired_rules,omitempty"`
	Recommendations int              `json:"recommendations"`
	OccurredAt      time.Time        `json:"occurred_at"`
}
