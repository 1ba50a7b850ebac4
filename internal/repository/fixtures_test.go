package repository

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testSnapshot(bloodPressure string) *domain.QuestionnaireSnapshot {
	age := 52
	bmi := 27.4
	return &domain.QuestionnaireSnapshot{
		PersonalInfo:   &domain.PersonalInfo{Age: &age, Gender: "female"},
		Lifestyle:      &domain.Lifestyle{SmokingStatus: domain.SmokingNever, PhysicalActivity: "moderate"},
		MedicalHistory: &domain.MedicalHistory{OtherConditions: "mild asthma"},
		FamilyHistory:  &domain.FamilyHistory{Diabetes: true},
		Measurements:   &domain.Measurements{HeightCM: 165, WeightKG: 74.5, BMI: &bmi, BloodPressure: bloodPressure},
		Symptoms:       &domain.Symptoms{StressLevel: "moderate"},
		PreventiveCare: &domain.PreventiveCare{Vaccinations: "influenza"},
	}
}

func testSubmission(userID string, submittedAt time.Time) *domain.Submission {
	return &domain.Submission{
		ID:          uuid.New(),
		UserID:      userID,
		Snapshot:    testSnapshot("120/80"),
		Status:      domain.StatusPending,
		SubmittedAt: submittedAt,
		UpdatedAt:   submittedAt,
		Recommendations: []domain.Recommendation{
			{TestName: "Lipid Profile", Reason: "first", Category: domain.CategoryBloodTest, Rule: "AGE_SCREENING"},
			{TestName: "HbA1c", Reason: "second", Category: domain.CategoryBloodTest, Rule: "DIABETES"},
		},
		Suggestions: []domain.Suggestion{
			{Text: "Walk daily", Category: domain.CategoryLifestyle, Rule: "SEDENTARY"},
		},
	}
}

func hypertensionOutputs() ([]domain.Recommendation, []domain.Suggestion) {
	return []domain.Recommendation{
			{TestName: "ECG", Reason: "Elevated blood pressure", Category: domain.CategoryCardiacTest, Rule: "HYPERTENSION"},
			{TestName: "Kidney Function Test", Reason: "Elevated blood pressure", Category: domain.CategoryBloodTest, Rule: "HYPERTENSION"},
		}, []domain.Suggestion{
			{Text: "Reduce salt intake", Category: domain.CategoryLifestyle, Rule: "HYPERTENSION"},
		}
}

func rulesOf(recs []domain.Recommendation) []string {
	rules := make([]string, 0, len(recs))
	for _, r := range recs {
		rules = append(rules, r.Rule)
	}
	return rules
}
