package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/health-screening-server/internal/domain"
)

const (
	toolEvaluateQuestionnaire = "evaluate_questionnaire"
	toolListScreeningRules    = "list_screening_rules"
	toolReviewHistory         = "get_review_history"
	toolExportReviews         = "export_review_log"
)

// EvaluateQuestionnaireParams defines parameters for the evaluate_questionnaire tool
type EvaluateQuestionnaireParams struct {
	Snapshot *domain.QuestionnaireSnapshot `json:"snapshot"`
}

// EvaluateQuestionnaireResult defines the result structure for the evaluate_questionnaire tool
type EvaluateQuestionnaireResult struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
	Suggestions     []domain.Suggestion     `json:"suggestions"`
	FiredRules      []string                `json:"fired_rules"`
	EvaluatedAt     time.Time               `json:"evaluated_at"`
	Cached          bool                    `json:"cached"`
}

// ListScreeningRulesParams takes no arguments
type ListScreeningRulesParams struct{}

// ListScreeningRulesResult defines the result structure for the list_screening_rules tool
type ListScreeningRulesResult struct {
	Rules []domain.RuleInfo `json:"rules"`
	Count int               `json:"count"`
}

// ReviewHistoryParams defines parameters for the get_review_history tool
type ReviewHistoryParams struct {
	SubmissionID string `json:"submission_id" jsonschema:"UUID of the submission"`
}

// ReviewHistoryResult defines the result structure for the get_review_history tool
type ReviewHistoryResult struct {
	SubmissionID string                `json:"submission_id"`
	Entries      []*domain.ReviewEntry `json:"entries"`
}

// ExportReviewsParams defines parameters for the export_review_log tool
type ExportReviewsParams struct {
	Filename string `json:"filename,omitempty" jsonschema:"file name inside the export directory"`
}

// ExportReviewsResult defines the result structure for the export_review_log tool
type ExportReviewsResult struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// handleEvaluateQuestionnaire handles the evaluate_questionnaire tool invocation
func (s *Server) handleEvaluateQuestionnaire(ctx context.Context, req *mcp.CallToolRequest, params EvaluateQuestionnaireParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolEvaluateQuestionnaire).Info("Tool invoked")

	if err := domain.ValidateSnapshot(params.Snapshot); err != nil {
		return s.createErrorResult("Invalid snapshot", err), nil, nil
	}

	evaluation, cached, err := s.memo.GetOrEvaluate(params.Snapshot, s.engine.Evaluate)
	if err != nil {
		if errors.Is(err, domain.ErrRuleEvaluation) {
			s.logger.WithError(err).Error("Screening evaluation failed")
		}
		return s.createErrorResult("Evaluation failed", err), nil, nil
	}

	result := EvaluateQuestionnaireResult{
		Recommendations: evaluation.Recommendations,
		Suggestions:     evaluation.Suggestions,
		FiredRules:      evaluation.FiredRules,
		EvaluatedAt:     evaluation.EvaluatedAt,
		Cached:          cached,
	}

	return s.createJSONResult(result,
		fmt.Sprintf("Evaluation completed: %d recommendations, %d suggestions from %d rules",
			len(result.Recommendations), len(result.Suggestions), len(result.FiredRules)))
}

// handleListScreeningRules handles the list_screening_rules tool invocation
func (s *Server) handleListScreeningRules(ctx context.Context, req *mcp.CallToolRequest, params ListScreeningRulesParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolListScreeningRules).Debug("Tool invoked")

	rules := s.engine.Rules()
	result := ListScreeningRulesResult{Rules: rules, Count: len(rules)}
	return s.createJSONResult(result, fmt.Sprintf("%d screening rules", len(rules)))
}

// handleReviewHistory handles the get_review_history tool invocation
func (s *Server) handleReviewHistory(ctx context.Context, req *mcp.CallToolRequest, params ReviewHistoryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolReviewHistory).Info("Tool invoked")

	if params.SubmissionID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("submission_id is required")), nil, nil
	}
	id, err := uuid.Parse(params.SubmissionID)
	if err != nil {
		return s.createErrorResult("Invalid submission_id", err), nil, nil
	}

	entries, err := s.reviews.ListBySubmission(ctx, id)
	if err != nil {
		return s.createErrorResult("Failed to load review history", err), nil, nil
	}

	result := ReviewHistoryResult{SubmissionID: id.String(), Entries: entries}
	return s.createJSONResult(result, fmt.Sprintf("%d review entries for %s", len(entries), id))
}

// handleExportReviews handles the export_review_log tool invocation
func (s *Server) handleExportReviews(ctx context.Context, req *mcp.CallToolRequest, params ExportReviewsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", toolExportReviews).Info("Tool invoked")

	filename := params.Filename
	if filename == "" {
		filename = fmt.Sprintf("reviews-%s.json", time.Now().UTC().Format("20060102-150405"))
	}
	// keep exports inside the export directory
	filename = filepath.Base(filename)

	if err := s.config.EnsureDataDir(); err != nil {
		return s.createErrorResult("Failed to prepare export directory", err), nil, nil
	}
	path := filepath.Join(s.config.ExportDir(), filename)

	f, err := os.Create(path)
	if err != nil {
		return s.createErrorResult("Failed to create export file", err), nil, nil
	}

	count, err := s.reviews.ExportJSON(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.WithError(removeErr).WithField("path", path).Warn("Failed to remove incomplete export")
		}
		return s.createErrorResult("Failed to export review log", err), nil, nil
	}

	result := ExportReviewsResult{Path: path, Count: count}
	return s.createJSONResult(result, fmt.Sprintf("Exported %d review entries to %s", count, path))
}

// createJSONResult wraps a result as pretty JSON text content plus a summary line
func (s *Server) createJSONResult(result any, summary string) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, result, nil
}

// createErrorResult creates a standardized error result
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
