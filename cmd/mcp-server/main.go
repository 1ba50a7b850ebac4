// Package main provides the MCP stdio entry point for the health screening engine.
// It needs no external services: evaluations are memoized in memory and the
// review log is read from the local SQLite file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/health-screening-server/internal/config"
	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/logging"
	"github.com/health-screening-server/internal/mcp"
	"github.com/health-screening-server/internal/review"
	"github.com/health-screening-server/internal/service"
)

func main() {
	cfg := config.LoadLiteConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// stdout carries the protocol, so logs go to stderr
	logger, err := logging.New(domain.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stderr",
	})
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	reviews, err := review.NewSQLiteStore(cfg.ReviewDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to open review log")
	}

	server, err := mcp.NewServer(cfg, service.NewRecommendationEngine(logger),
		mcp.WithLogger(logger),
		mcp.WithReviewStore(reviews),
	)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("data_dir", cfg.DataDir).Info("Starting health screening MCP server")
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("Health screening MCP server stopped")
}
