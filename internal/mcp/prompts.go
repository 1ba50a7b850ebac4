package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

const (
	promptQuestionnaireIntake    = "questionnaire_intake"
	promptExplainRecommendations = "explain_recommendations"
	screeningDisclaimer          = "These recommendations come from fixed screening rules and are not a diagnosis. A clinician should confirm which tests are appropriate."
)

// registerPrompts adds the guided workflows
func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        promptQuestionnaireIntake,
		Description: "Collect a complete health questionnaire snapshot from the user, section by section",
	}, s.handleIntakePrompt)

	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        promptExplainRecommendations,
		Description: "Evaluate a snapshot and explain each recommended test and suggestion in plain language",
		Arguments: []*mcp.PromptArgument{
			{
				Name:        "snapshot",
				Description: "Questionnaire snapshot as JSON",
				Required:    true,
			},
			{
				Name:        "audience",
				Description: "patient (default) or clinician",
			},
		},
	}, s.handleExplainPrompt)
}

func (s *Server) handleIntakePrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var b strings.Builder
	b.WriteString("Help the user fill in a health screening questionnaire. Ask about one section at a time and build a JSON object with these sections:\n\n")
	b.WriteString("- personal_info: age, gender, contact\n")
	b.WriteString("- lifestyle: smoking_status (never, former or current), alcohol_consumption, physical_activity, diet\n")
	b.WriteString("- medical_history: diabetes, hypertension, heart_disease (true/false), other_conditions, medications, allergies\n")
	b.WriteString("- family_history: diabetes, heart_disease, cancer (true/false), other\n")
	b.WriteString("- measurements: height_cm, weight_kg, bmi, blood_pressure (for example 120/80), blood_sugar, cholesterol (mmol/L)\n")
	b.WriteString("- symptoms: chest_pain, breathlessness, fatigue (true/false), sleep_quality, stress_level\n")
	b.WriteString("- preventive_care: last_checkup, vaccinations\n\n")
	b.WriteString("Every section must be present, even if empty. ")
	fmt.Fprintf(&b, "When the snapshot is complete, call the %s tool with it.", toolEvaluateQuestionnaire)

	return &mcp.GetPromptResult{
		Description: "Questionnaire intake",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}

func (s *Server) handleExplainPrompt(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	raw := args["snapshot"]
	if raw == "" {
		return nil, fmt.Errorf("snapshot argument is required")
	}

	var snapshot domain.QuestionnaireSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	if err := domain.ValidateSnapshot(&snapshot); err != nil {
		return nil, err
	}

	result, _, err := s.memo.GetOrEvaluate(&snapshot, s.engine.Evaluate)
	if err != nil {
		return nil, err
	}

	audience := strings.ToLower(strings.TrimSpace(args["audience"]))
	if audience != "clinician" {
		audience = "patient"
	}

	s.logger.WithFields(logrus.Fields{
		"prompt":      promptExplainRecommendations,
		"audience":    audience,
		"fired_rules": len(result.FiredRules),
	}).Debug("Prompt rendered")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Explanation of %d recommendations for a %s", len(result.Recommendations), audience),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: renderExplanation(result, ruleByCode(s.engine.Rules()), audience)}},
		},
	}, nil
}

func renderExplanation(result *domain.EvaluationResult, rules map[string]domain.RuleInfo, audience string) string {
	var b strings.Builder

	if audience == "clinician" {
		b.WriteString("Summarize these screening results for a clinician. Group tests by category and note which rule triggered each one.\n\n")
	} else {
		b.WriteString("Explain these screening results to a patient in plain language. Say what each test checks and why it was suggested. Avoid alarming wording.\n\n")
	}

	if len(result.FiredRules) == 0 {
		b.WriteString("No screening rules fired for this questionnaire.\n\n")
	} else {
		b.WriteString("Rules that fired:\n")
		for _, code := range result.FiredRules {
			if rule, ok := rules[code]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", rule.Name, rule.Description)
			} else {
				fmt.Fprintf(&b, "- %s\n", code)
			}
		}
		b.WriteString("\n")
	}

	if len(result.Recommendations) > 0 {
		b.WriteString("Recommended tests:\n")
		for _, rec := range result.Recommendations {
			fmt.Fprintf(&b, "- %s [%s]: %s\n", rec.TestName, rec.Category, rec.Reason)
		}
		b.WriteString("\n")
	}

	if len(result.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, sug := range result.Suggestions {
			fmt.Fprintf(&b, "- [%s] %s\n", sug.Category, sug.Text)
		}
		b.WriteString("\n")
	}

	b.WriteString(screeningDisclaimer)
	return b.String()
}
