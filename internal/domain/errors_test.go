package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Incomplete snapshot",
			code:      ErrCodeIncompleteSnapshot,
			message:   "Questionnaire is incomplete",
			details:   "missing symptoms",
			requestID: "req-123",
		},
		{
			name:      "Not found",
			code:      ErrCodeNotFound,
			message:   "Submission not found",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "String validation error",
			field:   "lifestyle.smoking_status",
			message: "must be one of never, former, current",
			value:   "sometimes",
		},
		{
			name:    "Integer validation error",
			field:   "personal_info.age",
			message: "must be greater than or equal to 0",
			value:   -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}
			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}
			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		NewValidationError("a", "is required", nil),
		NewValidationError("b", "must be at most 10 characters", "xxxxxxxxxxxx"),
	}

	got := errs.Error()
	if !strings.Contains(got, "field 'a'") || !strings.Contains(got, "field 'b'") {
		t.Errorf("Expected both fields in %q", got)
	}
	if strings.Count(got, "; ") != 1 {
		t.Errorf("Expected entries joined by '; ', got %q", got)
	}
}

func TestIncompleteSnapshotError(t *testing.T) {
	err := NewIncompleteSnapshotError([]string{"symptoms", "preventive_care"})

	if !errors.Is(err, ErrIncompleteSnapshot) {
		t.Fatalf("Expected ErrIncompleteSnapshot, got %v", err)
	}
	if err.Error() != "incomplete snapshot: missing symptoms, preventive_care" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	wrapped := fmt.Errorf("submitting: %w", err)
	if !errors.Is(wrapped, ErrIncompleteSnapshot) {
		t.Error("Expected wrapped error to match ErrIncompleteSnapshot")
	}
}

func TestErrorCodeConstants(t *testing.T) {
	expected := map[string]string{
		ErrCodeInvalidInput:       "INVALID_INPUT",
		ErrCodeIncompleteSnapshot: "INCOMPLETE_SNAPSHOT",
		ErrCodeNotFound:           "NOT_FOUND",
		ErrCodeForbidden:          "FORBIDDEN",
		ErrCodeUnauthorized:       "UNAUTHORIZED",
		ErrCodeRateLimit:          "RATE_LIMIT_EXCEEDED",
		ErrCodeConflict:           "CONFLICT",
		ErrCodeInternalServer:     "INTERNAL_SERVER_ERROR",
	}

	for actual, want := range expected {
		if actual != want {
			t.Errorf("Expected %s, got %s", want, actual)
		}
	}
}
