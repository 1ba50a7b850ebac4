package domain

import (
	"time"
)

// SmokingStatus represents the lifestyle smoking answer
type SmokingStatus string

const (
	SmokingNever   SmokingStatus = "never"
	SmokingFormer  SmokingStatus = "former"
	SmokingCurrent SmokingStatus = "current"
)

// PersonalInfo holds demographic answers
type PersonalInfo struct {
	Age     *int   `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender  string `json:"gender" validate:"max=10"`
	Contact string `json:"contact" validate:"max=100"`
}

// Lifestyle holds habit answers. Free-text fields are matched case-insensitively.
type Lifestyle struct {
	SmokingStatus      SmokingStatus `json:"smoking_status" validate:"omitempty,smoking_status"`
	AlcoholConsumption string        `json:"alcohol_consumption" validate:"max=50"`
	PhysicalActivity   string        `json:"physical_activity" validate:"max=100"`
	Diet               string        `json:"diet" validate:"max=200"`
}

// MedicalHistory holds the personal medical history section
type MedicalHistory struct {
	Diabetes        bool   `json:"diabetes"`
	Hypertension    bool   `json:"hypertension"`
	HeartDisease    bool   `json:"heart_disease"`
	OtherConditions string `json:"other_conditions"`
	Medications     string `json:"medications"`
	Allergies       string `json:"allergies"`
}

// FamilyHistory mirrors the personal history booleans for first-degree relatives
type FamilyHistory struct {
	Diabetes     bool   `json:"diabetes"`
	HeartDisease bool   `json:"heart_disease"`
	Cancer       bool   `json:"cancer"`
	Other        string `json:"other"`
}

// Measurements holds body measurements and self-reported lab values
type Measurements struct {
	HeightCM      float64  `json:"height_cm" validate:"gte=0"`
	WeightKG      float64  `json:"weight_kg" validate:"gte=0"`
	BMI           *float64 `json:"bmi" validate:"omitempty,gte=0"`
	BloodPressure string   `json:"blood_pressure" validate:"max=20"`
	BloodSugar    string   `json:"blood_sugar" validate:"max=20"`
	Cholesterol   string   `json:"cholesterol" validate:"max=20"`
}

// Symptoms holds current symptom answers
type Symptoms struct {
	ChestPain      bool   `json:"chest_pain"`
	Breathlessness bool   `json:"breathlessness"`
	Fatigue        bool   `json:"fatigue"`
	SleepQuality   string `json:"sleep_quality" validate:"max=50"`
	StressLevel    string `json:"stress_level" validate:"max=50"`
}

// PreventiveCare is informational only; no rule reads it today.
type PreventiveCare struct {
	LastCheckup  *time.Time `json:"last_checkup,omitempty"`
	Vaccinations string     `json:"vaccinations"`
}

// QuestionnaireSnapshot is the complete, read-only set of answers for one submission.
// A nil section means the snapshot is incomplete.
type QuestionnaireSnapshot struct {
	PersonalInfo   *PersonalInfo   `json:"personal_info" validate:"required"`
	Lifestyle      *Lifestyle      `json:"lifestyle" validate:"required"`
	MedicalHistory *MedicalHistory `json:"medical_history" validate:"required"`
	FamilyHistory  *FamilyHistory  `json:"family_history" validate:"required"`
	Measurements   *Measurements   `json:"measurements" validate:"required"`
	Symptoms       *Symptoms       `json:"symptoms" validate:"required"`
	PreventiveCare *PreventiveCare `json:"preventive_care" validate:"required"`
}

// MissingSections returns the JSON names of absent sections in declaration order
func (s *QuestionnaireSnapshot) MissingSections() []string {
	if s == nil {
		return []string{"personal_info", "lifestyle", "medical_history", "family_history", "measurements", "symptoms", "preventive_care"}
	}

	var missing []string
	if s.PersonalInfo == nil {
		missing = append(missing, "personal_info")
	}
	if s.Lifestyle == nil {
		missing = append(missing, "lifestyle")
	}
	if s.MedicalHistory == nil {
		missing = append(missing, "medical_history")
	}
	if s.FamilyHistory == nil {
		missing = append(missing, "family_history")
	}
	if s.Measurements == nil {
		missing = append(missing, "measurements")
	}
	if s.Symptoms == nil {
		missing = append(missing, "symptoms")
	}
	if s.PreventiveCare == nil {
		missing = append(missing, "preventive_care")
	}
	return missing
}

// IsComplete reports whether all seven sections are present
func (s *QuestionnaireSnapshot) IsComplete() bool {
	return len(s.MissingSections()) == 0
}
