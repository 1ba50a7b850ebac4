package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

// RecommendationEngine turns a questionnaire snapshot into screening recommendations
// and suggestions by running an ordered catalog of independent rules.
// It holds no per-evaluation state and is safe for concurrent use.
type RecommendationEngine struct {
	logger *logrus.Logger
	rules  []*ScreeningRule
	now    func() time.Time
}

// ScreeningRule pairs a predicate over the snapshot with the outputs it produces when true
type ScreeningRule struct {
	Code        string
	Name        string
	Description string
	Applies     func(snapshot *domain.QuestionnaireSnapshot) bool
	Produce     func(snapshot *domain.QuestionnaireSnapshot) Outcome
}

// NewRecommendationEngine creates an engine loaded with the screening catalog
func NewRecommendationEngine(logger *logrus.Logger) *RecommendationEngine {
	engine := &RecommendationEngine{
		logger: logger,
		rules:  make([]*ScreeningRule, 0, 16),
		now:    time.Now,
	}

	engine.initializeRules()

	engine.logger.WithField("rule_count", len(engine.rules)).Info("Initialized screening rules")

	return engine
}

// NewRecommendationEngineWithRules creates an engine with a caller supplied catalog
func NewRecommendationEngineWithRules(logger *logrus.Logger, rules []*ScreeningRule) *RecommendationEngine {
	return &RecommendationEngine{
		logger: logger,
		rules:  rules,
		now:    time.Now,
	}
}

// Evaluate runs every rule in catalog order. The result is returned only when the
// whole pass succeeds; a failing rule yields an error and no partial output.
func (e *RecommendationEngine) Evaluate(snapshot *domain.QuestionnaireSnapshot) (*domain.EvaluationResult, error) {
	if missing := snapshot.MissingSections(); len(missing) > 0 {
		return nil, domain.NewIncompleteSnapshotError(missing)
	}

	result := &domain.EvaluationResult{
		Recommendations: make([]domain.Recommendation, 0),
		Suggestions:     make([]domain.Suggestion, 0),
		FiredRules:      make([]string, 0),
	}

	for _, rule := range e.rules {
		outcome, fired, err := e.evaluateRule(rule, snapshot)
		if err != nil {
			e.logger.WithError(err).WithField("rule", rule.Code).Error("Screening rule failed")
			return nil, err
		}
		if !fired {
			continue
		}

		for _, rec := range outcome.Recommendations {
			rec.Rule = rule.Code
			result.Recommendations = append(result.Recommendations, rec)
		}
		for _, sug := range outcome.Suggestions {
			sug.Rule = rule.Code
			result.Suggestions = append(result.Suggestions, sug)
		}
		result.FiredRules = append(result.FiredRules, rule.Code)

		e.logger.WithFields(logrus.Fields{
			"rule":            rule.Code,
			"recommendations": len(outcome.Recommendations),
			"suggestions":     len(outcome.Suggestions),
		}).Debug("Screening rule fired")
	}
	result.EvaluatedAt = e.now().UTC()

	e.logger.WithFields(logrus.Fields{
		"fired_rules":     len(result.FiredRules),
		"recommendations": len(result.Recommendations),
		"suggestions":     len(result.Suggestions),
	}).Debug("Completed screening evaluation")

	return result, nil
}

// evaluateRule runs one rule, converting a panic into ErrRuleEvaluation
func (e *RecommendationEngine) evaluateRule(rule *ScreeningRule, snapshot *domain.QuestionnaireSnapshot) (outcome Outcome, fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, fired = Outcome{}, false
			err = fmt.Errorf("%w: rule %s: %v", domain.ErrRuleEvaluation, rule.Code, r)
		}
	}()

	if !rule.Applies(snapshot) {
		return Outcome{}, false, nil
	}
	return rule.Produce(snapshot), true, nil
}

// Rules returns the catalog in evaluation order
func (e *RecommendationEngine) Rules() []domain.RuleInfo {
	infos := make([]domain.RuleInfo, 0, len(e.rules))
	for _, rule := range e.rules {
		infos = append(infos, domain.RuleInfo{
			Code:        rule.Code,
			Name:        rule.Name,
			Description: rule.Description,
		})
	}
	return infos
}

// addRule is a helper to append a rule to the catalog
func (e *RecommendationEngine) addRule(code, name, description string, applies func(*domain.QuestionnaireSnapshot) bool, produce func(*domain.QuestionnaireSnapshot) Outcome) {
	e.rules = append(e.rules, &ScreeningRule{
		Code:        code,
		Name:        name,
		Description: description,
		Applies:     applies,
		Produce:     produce,
	})
}
