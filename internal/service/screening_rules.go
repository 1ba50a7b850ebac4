package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/health-screening-server/internal/domain"
)

// Diagnostic test names. These literals are part of the output contract.
const (
	testKidneyFunction    = "Kidney Function Test (Serum Creatinine, Blood Urea)"
	testUricAcid          = "Serum Uric Acid"
	testRAFactor          = "Rheumatoid Factor (RA Factor)"
	testLFT               = "Liver Function Test (LFT)"
	testRFT               = "Renal Function Test (RFT)"
	testElectrolytes      = "Serum Electrolytes"
	testLipidProfile      = "Lipid Profile"
	testECG               = "Electrocardiogram (ECG)"
	testEcho              = "2D Echocardiography (2D ECHO)"
	testPTINR             = "Prothrombin Time (PT INR)"
	testUSGAbdomen        = "Ultrasound Abdomen (USG)"
	testCBP               = "Complete Blood Picture (CBP)"
	testEndoscopy         = "Upper GI Endoscopy"
	testFBS               = "Fasting Blood Sugar (FBS)"
	testTMT               = "Treadmill Test (TMT)"
	testTroponin          = "Cardiac Troponin"
	testUrineRoutine      = "Urine Routine Examination"
	testUrineACR          = "Urine Albumin-Creatinine Ratio (ACR)"
	testUSGKUB            = "Ultrasound KUB"
	testTSH               = "Thyroid Stimulating Hormone (TSH)"
	testFreeT3            = "Free T3"
	testFreeT4            = "Free T4"
	testAntiTPO           = "Anti-TPO Antibodies"
	testUSGThyroid        = "Ultrasound Thyroid"
	testFundoscopy        = "Fundoscopy"
	testPPBS              = "Post Prandial Blood Sugar (PPBS)"
	testHbA1c             = "HbA1c (Glycated Hemoglobin)"
	testVitaminB12        = "Vitamin B12"
	testUrineMicroalbumin = "Urine Microalbumin"
	testDilatedFundus     = "Dilated Fundus Examination"
	testDiabeticFoot      = "Diabetic Foot Examination (Biothesiometry)"
	testChestXRay         = "Chest X-Ray"
	testLowDoseCT         = "Low-Dose CT Scan (Lung Cancer Screening)"
	testSpirometry        = "Pulmonary Function Test (Spirometry)"
	testGGT               = "Gamma-Glutamyl Transferase (GGT)"
	testVitaminD          = "Vitamin D (25-OH)"
	testFecalOccultBlood  = "Fecal Occult Blood Test"
	testSerumCalcium      = "Serum Calcium"
	testPapSmear          = "Pap Smear"
	testMammography       = "Mammography"
)

// Rationale strings attached to every recommendation of a rule
const (
	reasonArthritis       = "Arthritis reported in your medical history. These tests check kidney function, uric acid levels and rheumatoid markers."
	reasonLiver           = "Liver disease reported in your medical history. These tests assess liver function, clotting and related organ involvement."
	reasonGIBleeding      = "Hematemesis or melena reported alongside liver disease. An endoscopy is advised to look for varices or bleeding sources."
	reasonStroke          = "History of stroke reported. Cholesterol and heart rhythm should be monitored to reduce the risk of recurrence."
	reasonHighCholesterol = "Your reported cholesterol is above 5.2 mmol/L. These tests assess cardiovascular risk and metabolic health."
	reasonCardiac         = "Heart disease in your history, family history, or reported chest pain. A cardiac evaluation is recommended."
	reasonKidney          = "Kidney disease reported in your medical history. These tests monitor kidney function and structure."
	reasonThyroid         = "Thyroid condition reported in your medical history. These tests evaluate thyroid hormone levels and gland structure."
	reasonHypertension    = "Hypertension reported or blood pressure reading of 140 systolic or above. These tests check for effects on the kidneys, heart and eyes."
	reasonDiabetes        = "Personal or family history of diabetes. These tests monitor blood sugar control and screen for complications."
	reasonSmoking         = "You currently smoke. These tests screen for lung disease, lung cancer and cardiovascular effects of smoking."
	reasonAlcohol         = "Regular alcohol consumption reported. These tests assess liver health and related metabolic effects."
	reasonAgeScreening    = "Routine screening recommended for your age group (%d years)."
	reasonPapSmearYoung   = "Cervical cancer screening is recommended every 3 years for women in your age group (%d years)."
	reasonPapSmear        = "Cervical cancer screening is recommended every 3 years, or every 5 years with HPV co-testing, for women in your age group (%d years)."
	reasonMammography     = "Breast cancer screening is recommended every 1 to 2 years for women in your age group (%d years)."
	reasonObesity         = "Your BMI is above 30. These tests screen for metabolic conditions associated with obesity."
	reasonFattyLiver      = "Your BMI is above 35. An abdominal ultrasound is advised to check for fatty liver disease."
	reasonSedentary       = "Low physical activity reported. These tests screen for deficiencies and metabolic risks linked to a sedentary lifestyle."
)

// Suggestion texts, one per rule
const (
	suggestRheumatologist = "Consult a rheumatologist for a joint assessment and a long-term arthritis management plan."
	suggestHepatologist   = "Consult a hepatologist for evaluation of your liver condition and avoid alcohol completely."
	suggestNeurologist    = "Consult a neurologist for stroke follow-up and secondary prevention."
	suggestHeartDiet      = "Adopt a heart-healthy diet low in saturated fats and trans fats, and include regular aerobic exercise."
	suggestCardiologist   = "Consult a cardiologist for a comprehensive heart evaluation."
	suggestNephrologist   = "Consult a nephrologist for kidney disease management and dietary guidance."
	suggestPulmonologist  = "Consult a pulmonologist for respiratory evaluation and a lung function management plan."
	suggestEndocrine      = "Consult an endocrinologist for thyroid evaluation and treatment."
	suggestLowSodium      = "Follow a low-sodium diet, limit processed foods and monitor your blood pressure regularly."
	suggestDiabetesPlan   = "Follow an annual diabetes screening schedule and consult a diabetologist for ongoing care."
	suggestQuitSmoking    = "Quitting smoking is the most important step for your health. Consider a smoking cessation program or nicotine replacement therapy."
	suggestReduceAlcohol  = "Reduce alcohol intake to within recommended limits and include alcohol-free days each week."
	suggestNutrition      = "Consult a nutritionist for a personalized weight management plan and aim for at least 150 minutes of moderate activity per week."
	suggestMoreActivity   = "Increase physical activity gradually, aiming for at least 30 minutes of moderate exercise on most days."
	suggestMentalHealth   = "High stress levels reported. Consider stress management techniques such as mindfulness, and consult a mental health professional if stress persists."
)

const cholesterolThreshold = 5.2

type testSpec struct {
	name     string
	category string
}

func bloodTest(name string) testSpec   { return testSpec{name, domain.CategoryBloodTest} }
func cardiacTest(name string) testSpec { return testSpec{name, domain.CategoryCardiacTest} }
func imaging(name string) testSpec     { return testSpec{name, domain.CategoryImaging} }
func urineTest(name string) testSpec   { return testSpec{name, domain.CategoryUrineTest} }
func procedure(name string) testSpec   { return testSpec{name, domain.CategoryDiagnosticProcedure} }
func screening(name string) testSpec   { return testSpec{name, domain.CategoryScreening} }

// Outcome is what a fired rule contributes to the evaluation result
type Outcome struct {
	Recommendations []domain.Recommendation
	Suggestions     []domain.Suggestion
}

func (o *Outcome) recommend(reason string, tests ...testSpec) {
	for _, t := range tests {
		o.Recommendations = append(o.Recommendations, domain.Recommendation{
			TestName: t.name,
			Reason:   reason,
			Category: t.category,
		})
	}
}

func (o *Outcome) suggest(text, category string) {
	o.Suggestions = append(o.Suggestions, domain.Suggestion{
		Text:     text,
		Category: category,
	})
}

// initializeRules registers the screening catalog. Registration order is output order.
func (e *RecommendationEngine) initializeRules() {
	e.addRule("ARTHRITIS", "Arthritis", "Medical history mentions arthritis",
		conditionMentions("arthritis"), produceArthritis)
	e.addRule("LIVER_DISEASE", "Liver disease", "Medical history mentions liver disease",
		conditionMentions("liver"), produceLiverDisease)
	e.addRule("STROKE", "Stroke", "Medical history mentions stroke",
		conditionMentions("stroke"), produceStroke)
	e.addRule("HIGH_CHOLESTEROL", "High cholesterol", "Reported cholesterol above 5.2",
		hasHighCholesterol, produceHighCholesterol)
	e.addRule("CARDIAC_RISK", "Cardiac risk", "Personal or family heart disease, or chest pain",
		hasCardiacRisk, produceCardiacRisk)
	e.addRule("KIDNEY_DISEASE", "Kidney disease", "Medical history mentions kidney disease",
		conditionMentions("kidney"), produceKidneyDisease)
	e.addRule("RESPIRATORY", "Respiratory disease", "Medical history mentions asthma or COPD",
		conditionMentions("asthma", "copd"), produceRespiratory)
	e.addRule("THYROID", "Thyroid disorder", "Medical history mentions a thyroid condition",
		conditionMentions("thyroid"), produceThyroid)
	e.addRule("HYPERTENSION", "Hypertension", "Hypertension reported or blood pressure reading contains 140/",
		hasHypertension, produceHypertension)
	e.addRule("DIABETES", "Diabetes", "Personal or family history of diabetes",
		hasDiabetesHistory, produceDiabetes)
	e.addRule("SMOKING", "Current smoker", "Smoking status is current",
		isCurrentSmoker, produceSmoking)
	e.addRule("ALCOHOL", "Regular alcohol use", "Alcohol consumption mentions regular use",
		lifestyleMentions(func(l *domain.Lifestyle) string { return l.AlcoholConsumption }, "regular"), produceAlcohol)
	e.addRule("AGE_SCREENING", "Age-based screening", "Age falls within a routine screening band",
		inScreeningAgeBand, produceAgeScreening)
	e.addRule("OBESITY", "Obesity", "BMI above 30",
		isObese, produceObesity)
	e.addRule("SEDENTARY", "Sedentary lifestyle", "Physical activity is sedentary or mild",
		lifestyleMentions(func(l *domain.Lifestyle) string { return l.PhysicalActivity }, "sedentary", "mild"), produceSedentary)
	e.addRule("STRESS", "High stress", "Stress level mentions high",
		hasHighStress, produceStress)
}

// containsAnyFold reports whether text contains any keyword, ignoring case.
// Keywords are expected in lower case.
func containsAnyFold(text string, keywords ...string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// parseLeadingFloat parses the first whitespace-separated token of s
func parseLeadingFloat(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Predicates

func conditionMentions(keywords ...string) func(*domain.QuestionnaireSnapshot) bool {
	return func(s *domain.QuestionnaireSnapshot) bool {
		return containsAnyFold(s.MedicalHistory.OtherConditions, keywords...)
	}
}

func lifestyleMentions(field func(*domain.Lifestyle) string, keywords ...string) func(*domain.QuestionnaireSnapshot) bool {
	return func(s *domain.QuestionnaireSnapshot) bool {
		return containsAnyFold(field(s.Lifestyle), keywords...)
	}
}

func hasHighCholesterol(s *domain.QuestionnaireSnapshot) bool {
	v, ok := parseLeadingFloat(s.Measurements.Cholesterol)
	return ok && v > cholesterolThreshold
}

func hasCardiacRisk(s *domain.QuestionnaireSnapshot) bool {
	return s.MedicalHistory.HeartDisease || s.FamilyHistory.HeartDisease || s.Symptoms.ChestPain
}

func hasHypertension(s *domain.QuestionnaireSnapshot) bool {
	return s.MedicalHistory.Hypertension || strings.Contains(s.Measurements.BloodPressure, "140/")
}

func hasDiabetesHistory(s *domain.QuestionnaireSnapshot) bool {
	return s.MedicalHistory.Diabetes || s.FamilyHistory.Diabetes
}

func isCurrentSmoker(s *domain.QuestionnaireSnapshot) bool {
	return s.Lifestyle.SmokingStatus == domain.SmokingCurrent
}

func inScreeningAgeBand(s *domain.QuestionnaireSnapshot) bool {
	return s.PersonalInfo.Age != nil && ageBandOf(*s.PersonalInfo.Age) != bandNone
}

func isObese(s *domain.QuestionnaireSnapshot) bool {
	return s.Measurements.BMI != nil && *s.Measurements.BMI > 30
}

func hasHighStress(s *domain.QuestionnaireSnapshot) bool {
	return containsAnyFold(s.Symptoms.StressLevel, "high")
}

func isFemale(s *domain.QuestionnaireSnapshot) bool {
	return strings.EqualFold(s.PersonalInfo.Gender, "female")
}

// Producers

func produceArthritis(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonArthritis,
		bloodTest(testKidneyFunction),
		bloodTest(testUricAcid),
		bloodTest(testRAFactor),
	)
	o.suggest(suggestRheumatologist, domain.CategoryMedicalConsultation)
	return o
}

func produceLiverDisease(s *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonLiver,
		bloodTest(testLFT),
		bloodTest(testRFT),
		bloodTest(testElectrolytes),
		bloodTest(testLipidProfile),
		cardiacTest(testECG),
		cardiacTest(testEcho),
		bloodTest(testPTINR),
		imaging(testUSGAbdomen),
		bloodTest(testCBP),
	)
	if containsAnyFold(s.MedicalHistory.OtherConditions, "hematemesis", "melena") {
		o.recommend(reasonGIBleeding, procedure(testEndoscopy))
	}
	o.suggest(suggestHepatologist, domain.CategoryMedicalConsultation)
	return o
}

func produceStroke(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonStroke,
		bloodTest(testLipidProfile),
		cardiacTest(testECG),
	)
	o.suggest(suggestNeurologist, domain.CategoryMedicalConsultation)
	return o
}

func produceHighCholesterol(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonHighCholesterol,
		bloodTest(testLipidProfile),
		bloodTest(testLFT),
		bloodTest(testFBS),
		cardiacTest(testECG),
		cardiacTest(testEcho),
		cardiacTest(testTMT),
	)
	o.suggest(suggestHeartDiet, domain.CategoryLifestyle)
	return o
}

func produceCardiacRisk(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonCardiac,
		cardiacTest(testECG),
		cardiacTest(testEcho),
		cardiacTest(testTMT),
		cardiacTest(testTroponin),
		bloodTest(testLipidProfile),
	)
	o.suggest(suggestCardiologist, domain.CategoryMedicalConsultation)
	return o
}

func produceKidneyDisease(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonKidney,
		bloodTest(testRFT),
		bloodTest(testElectrolytes),
		urineTest(testUrineRoutine),
		urineTest(testUrineACR),
		imaging(testUSGKUB),
	)
	o.suggest(suggestNephrologist, domain.CategoryMedicalConsultation)
	return o
}

func produceRespiratory(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.suggest(suggestPulmonologist, domain.CategoryMedicalConsultation)
	return o
}

func produceThyroid(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonThyroid,
		bloodTest(testTSH),
		bloodTest(testFreeT3),
		bloodTest(testFreeT4),
		bloodTest(testAntiTPO),
		bloodTest(testLipidProfile),
		imaging(testUSGThyroid),
	)
	o.suggest(suggestEndocrine, domain.CategoryMedicalConsultation)
	return o
}

func produceHypertension(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonHypertension,
		bloodTest(testRFT),
		bloodTest(testElectrolytes),
		bloodTest(testLipidProfile),
		bloodTest(testFBS),
		urineTest(testUrineRoutine),
		cardiacTest(testECG),
		cardiacTest(testEcho),
		procedure(testFundoscopy),
	)
	o.suggest(suggestLowSodium, domain.CategoryLifestyle)
	return o
}

func produceDiabetes(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonDiabetes,
		bloodTest(testFBS),
		bloodTest(testPPBS),
		bloodTest(testHbA1c),
		bloodTest(testLipidProfile),
		bloodTest(testRFT),
		bloodTest(testLFT),
		bloodTest(testTSH),
		bloodTest(testVitaminB12),
		urineTest(testUrineRoutine),
		urineTest(testUrineMicroalbumin),
		cardiacTest(testECG),
		procedure(testDilatedFundus),
		procedure(testDiabeticFoot),
	)
	o.suggest(suggestDiabetesPlan, domain.CategoryMedicalConsultation)
	return o
}

func produceSmoking(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonSmoking,
		imaging(testChestXRay),
		imaging(testLowDoseCT),
		procedure(testSpirometry),
		cardiacTest(testECG),
		bloodTest(testCBP),
	)
	o.suggest(suggestQuitSmoking, domain.CategoryLifestyle)
	return o
}

func produceAlcohol(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonAlcohol,
		bloodTest(testLFT),
		bloodTest(testGGT),
		bloodTest(testCBP),
		bloodTest(testLipidProfile),
		bloodTest(testFBS),
		bloodTest(testVitaminB12),
		imaging(testUSGAbdomen),
	)
	o.suggest(suggestReduceAlcohol, domain.CategoryLifestyle)
	return o
}

type ageBand int

const (
	bandNone ageBand = iota
	band20to30
	band30to40
	band40to45
	band45to60
)

// ageBandOf maps an age to its screening band: [20,30], (30,40], (40,45], (45,60]
func ageBandOf(age int) ageBand {
	switch {
	case age >= 20 && age <= 30:
		return band20to30
	case age > 30 && age <= 40:
		return band30to40
	case age > 40 && age <= 45:
		return band40to45
	case age > 45 && age <= 60:
		return band45to60
	default:
		return bandNone
	}
}

func produceAgeScreening(s *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	age := *s.PersonalInfo.Age
	reason := fmt.Sprintf(reasonAgeScreening, age)
	band := ageBandOf(age)

	switch band {
	case band20to30:
		o.recommend(reason,
			screening(testCBP),
			screening(testFBS),
			screening(testLipidProfile),
			screening(testTSH),
			screening(testUrineRoutine),
			screening(testVitaminD),
		)
	case band30to40:
		o.recommend(reason,
			screening(testCBP),
			screening(testFBS),
			screening(testLipidProfile),
			screening(testTSH),
			screening(testUrineRoutine),
			screening(testVitaminD),
			screening(testECG),
		)
		if age > 35 {
			o.recommend(reason, screening(testHbA1c))
		}
	case band40to45:
		o.recommend(reason,
			screening(testCBP),
			screening(testFBS),
			screening(testHbA1c),
			screening(testLipidProfile),
			screening(testTSH),
			screening(testRFT),
			screening(testLFT),
			screening(testECG),
		)
	case band45to60:
		o.recommend(reason,
			screening(testCBP),
			screening(testFBS),
			screening(testHbA1c),
			screening(testLipidProfile),
			screening(testTSH),
			screening(testRFT),
			screening(testLFT),
			screening(testECG),
			screening(testTMT),
			screening(testVitaminD),
			screening(testFecalOccultBlood),
		)
	}

	if isFemale(s) {
		if band == band20to30 {
			o.recommend(fmt.Sprintf(reasonPapSmearYoung, age), screening(testPapSmear))
		} else {
			o.recommend(fmt.Sprintf(reasonPapSmear, age), screening(testPapSmear))
		}
		if band == band40to45 || band == band45to60 {
			o.recommend(fmt.Sprintf(reasonMammography, age), imaging(testMammography))
		}
	}
	return o
}

func produceObesity(s *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonObesity,
		bloodTest(testFBS),
		bloodTest(testHbA1c),
		bloodTest(testLipidProfile),
		bloodTest(testLFT),
		bloodTest(testTSH),
		bloodTest(testUricAcid),
		bloodTest(testVitaminD),
		cardiacTest(testECG),
	)
	if *s.Measurements.BMI > 35 {
		o.recommend(reasonFattyLiver, imaging(testUSGAbdomen))
	}
	o.suggest(suggestNutrition, domain.CategoryLifestyle)
	return o
}

func produceSedentary(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.recommend(reasonSedentary,
		bloodTest(testFBS),
		bloodTest(testLipidProfile),
		bloodTest(testVitaminD),
		bloodTest(testVitaminB12),
		bloodTest(testCBP),
		bloodTest(testTSH),
		bloodTest(testSerumCalcium),
		cardiacTest(testECG),
	)
	o.suggest(suggestMoreActivity, domain.CategoryLifestyle)
	return o
}

func produceStress(_ *domain.QuestionnaireSnapshot) Outcome {
	var o Outcome
	o.suggest(suggestMentalHealth, domain.CategoryMentalHealth)
	return o
}
