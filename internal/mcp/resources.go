package mcp

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/health-screening-server/internal/domain"
)

const (
	rulesURI         = "screening://rules"
	ruleTemplateURI  = "screening://rules/{code}"
	rulesURIPrefix   = rulesURI + "/"
	resourceMIMEType = "application/json"
)

// registerResources exposes the rule catalog as read-only resources
func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		Name:        "screening-rules",
		URI:         rulesURI,
		Description: "Screening rules in evaluation order",
		MIMEType:    resourceMIMEType,
	}, s.handleRulesResource)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "screening-rule",
		URITemplate: ruleTemplateURI,
		Description: "One screening rule by code, for example screening://rules/SMOKING",
		MIMEType:    resourceMIMEType,
	}, s.handleRuleResource)
}

func (s *Server) handleRulesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	rules := s.engine.Rules()
	return jsonResource(rulesURI, ListScreeningRulesResult{Rules: rules, Count: len(rules)})
}

func (s *Server) handleRuleResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	code := strings.ToUpper(strings.TrimPrefix(uri, rulesURIPrefix))

	for _, rule := range s.engine.Rules() {
		if rule.Code == code {
			return jsonResource(uri, rule)
		}
	}

	s.logger.WithField("uri", uri).Debug("Unknown rule resource requested")
	return nil, mcp.ResourceNotFoundError(uri)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: resourceMIMEType,
			Text:     string(data),
		}},
	}, nil
}

// ruleByCode is used by prompts to describe fired rules
func ruleByCode(rules []domain.RuleInfo) map[string]domain.RuleInfo {
	byCode := make(map[string]domain.RuleInfo, len(rules))
	for _, rule := range rules {
		byCode[rule.Code] = rule
	}
	return byCode
}
