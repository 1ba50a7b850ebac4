// Package mcp exposes the screening engine over stdio as MCP tools, rule
// catalog resources and guided prompts.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/cache"
	litecfg "github.com/health-screening-server/internal/config"
	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/review"
)

const (
	serverName    = "health-screening-mcp"
	serverVersion = "v0.1.0"
)

// Server is the MCP front end of the recommendation engine. Evaluation tools are
// stateless; results are memoized by snapshot fingerprint.
type Server struct {
	config    *litecfg.LiteConfig
	mcpServer *mcp.Server
	engine    domain.RecommendationEngine
	memo      *cache.EvaluationMemo
	reviews   review.Store
	logger    *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithReviewStore enables the review log tools.
func WithReviewStore(store review.Store) ServerOption {
	return func(s *Server) error {
		s.reviews = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// NewServer creates a new MCP server instance
func NewServer(cfg *litecfg.LiteConfig, engine domain.RecommendationEngine, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config: cfg,
		engine: engine,
		memo:   cache.NewEvaluationMemo(cfg.CacheMaxItems, cfg.CacheTTL),
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	server.registerTools()
	server.registerResources()
	server.registerPrompts()

	server.logger.Info("MCP server initialized successfully")
	return server, nil
}

// registerTools registers the screening tools with the MCP SDK
func (s *Server) registerTools() {
	count := 0

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolEvaluateQuestionnaire,
		Description: "Evaluate a complete health questionnaire snapshot and return screening test recommendations and lifestyle suggestions",
		// the snapshot carries free-form dates, so only the top level shape is enforced here
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleEvaluateQuestionnaire)
	count++

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        toolListScreeningRules,
		Description: "List the screening rules in evaluation order",
	}, s.handleListScreeningRules)
	count++

	if s.reviews != nil {
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolReviewHistory,
			Description: "List the admin review history of one submission",
		}, s.handleReviewHistory)
		mcp.AddTool(s.mcpServer, &mcp.Tool{
			Name:        toolExportReviews,
			Description: "Export the whole review log as JSON into the export directory",
		}, s.handleExportReviews)
		count += 2
	}

	s.logger.WithField("tool_count", count).Info("Successfully registered all tools")
}

// Start runs the server on stdio until the context ends or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting health screening MCP server...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.reviews != nil {
		if err := s.reviews.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close review store")
			return err
		}
	}
	return nil
}
