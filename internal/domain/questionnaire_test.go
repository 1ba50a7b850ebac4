package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionnaireSnapshot_MissingSections(t *testing.T) {
	var nilSnapshot *QuestionnaireSnapshot
	assert.Len(t, nilSnapshot.MissingSections(), 7)
	assert.False(t, nilSnapshot.IsComplete())

	empty := &QuestionnaireSnapshot{}
	assert.Equal(t, []string{
		"personal_info", "lifestyle", "medical_history", "family_history",
		"measurements", "symptoms", "preventive_care",
	}, empty.MissingSections())

	partial := completeSnapshot()
	partial.MedicalHistory = nil
	assert.Equal(t, []string{"medical_history"}, partial.MissingSections())
	assert.False(t, partial.IsComplete())

	assert.Empty(t, completeSnapshot().MissingSections())
	assert.True(t, completeSnapshot().IsComplete())
}

func TestSubmissionStatus(t *testing.T) {
	tests := []struct {
		status   SubmissionStatus
		valid    bool
		isReview bool
	}{
		{StatusPending, true, false},
		{StatusReviewed, true, true},
		{StatusApproved, true, true},
		{StatusRejected, true, true},
		{StatusNeedsInfo, true, true},
		{"archived", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.status.IsValid())
			assert.Equal(t, tt.isReview, tt.status.IsReviewOutcome())
			assert.Equal(t, string(tt.status), tt.status.String())
		})
	}
}

func TestPrincipal_IsAdmin(t *testing.T) {
	assert.True(t, Principal{UserID: "a", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Principal{UserID: "p", Role: RolePatient}.IsAdmin())
	assert.False(t, Principal{UserID: "x"}.IsAdmin())
}
