package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors returned across packages. Wrap them with fmt.Errorf and test with errors.Is.
var (
	ErrIncompleteSnapshot = errors.New("incomplete snapshot")
	ErrRuleEvaluation     = errors.New("rule evaluation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrLockUnavailable    = errors.New("lock unavailable")
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeIncompleteSnapshot = "INCOMPLETE_SNAPSHOT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeInternalServer     = "INTERNAL_SERVER_ERROR"
)

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ValidationErrors collects every field failure of one payload
type ValidationErrors []*ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "; ")
}

// NewIncompleteSnapshotError wraps ErrIncompleteSnapshot with the missing section names
func NewIncompleteSnapshotError(missing []string) error {
	return fmt.Errorf("%w: missing %s", ErrIncompleteSnapshot, strings.Join(missing, ", "))
}
