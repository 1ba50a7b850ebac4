package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/api"
	"github.com/health-screening-server/internal/cache"
	"github.com/health-screening-server/internal/config"
	"github.com/health-screening-server/internal/database"
	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/events"
	"github.com/health-screening-server/internal/locking"
	"github.com/health-screening-server/internal/logging"
	"github.com/health-screening-server/internal/repository"
	"github.com/health-screening-server/internal/review"
	"github.com/health-screening-server/internal/service"
)

func main() {
	// A local .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configManager, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// closers run in reverse order on shutdown
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) closeAll(logger *logrus.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			logger.WithError(err).Warn("Failed to release resource")
		}
	}
}

func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	cfg := configManager.GetConfig()
	var cleanup closers
	defer func() { cleanup.closeAll(logger) }()

	var healthChecks []api.Option

	repo, reviews, err := openStorage(ctx, configManager, logger, &cleanup, &healthChecks)
	if err != nil {
		return err
	}

	locker, err := openLocker(cfg, logger, &cleanup, &healthChecks)
	if err != nil {
		return err
	}

	submissionCache, err := openCache(ctx, cfg, logger, &cleanup)
	if err != nil {
		return err
	}

	var publisher domain.EventPublisher = events.NewNoopPublisher(logger)
	if cfg.Messaging.Enabled {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Messaging, logger)
		if err != nil {
			return fmt.Errorf("connecting to message broker: %w", err)
		}
		publisher = amqpPublisher
	}
	cleanup.add(publisher.Close)

	svc := service.NewSubmissionService(
		service.NewRecommendationEngine(logger),
		repo,
		locker,
		submissionCache,
		reviews,
		publisher,
		service.SubmissionServiceConfig{
			LockTTL:     cfg.Locking.TTL,
			WaitTimeout: cfg.Locking.WaitTimeout,
			RetryDelay:  cfg.Locking.RetryDelay,
		},
		logger,
	)

	logger.WithFields(logrus.Fields{
		"host":      cfg.Server.Host,
		"port":      cfg.Server.Port,
		"storage":   cfg.Storage.Driver,
		"locking":   cfg.Locking.Backend,
		"messaging": cfg.Messaging.Enabled,
	}).Info("Starting health screening server")

	server := api.NewServer(configManager, svc, logger, healthChecks...)
	return server.Start(ctx)
}

func openStorage(ctx context.Context, configManager *config.Manager, logger *logrus.Logger, cleanup *closers, checks *[]api.Option) (domain.SubmissionRepository, review.Store, error) {
	cfg := configManager.GetConfig()

	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Storage.AutoMigrate {
			runner, err := database.NewMigrationRunner(configManager.GetDatabaseURL(), cfg.Storage.MigrationsPath, logger)
			if err != nil {
				return nil, nil, err
			}
			err = runner.Up(ctx)
			runner.Close()
			if err != nil {
				return nil, nil, err
			}
		}

		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup.add(func() error { db.Close(); return nil })
		*checks = append(*checks, api.WithHealthCheck("database", db.Health))

		reviews, err := review.NewPostgresStoreFromURL(configManager.GetDatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("opening review log: %w", err)
		}
		cleanup.add(reviews.Close)

		return repository.NewSubmissionRepository(db.Pool, logger), reviews, nil

	default:
		repo, err := repository.NewSQLiteSubmissionRepository(cfg.Storage.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening submission store: %w", err)
		}
		cleanup.add(repo.Close)
		*checks = append(*checks, api.WithHealthCheck("database", repo.Ping))

		reviewPath := filepath.Join(filepath.Dir(cfg.Storage.SQLitePath), "reviews.db")
		reviews, err := review.NewSQLiteStore(reviewPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening review log: %w", err)
		}
		cleanup.add(reviews.Close)

		return repo, reviews, nil
	}
}

func openLocker(cfg *domain.Config, logger *logrus.Logger, cleanup *closers, checks *[]api.Option) (domain.Locker, error) {
	if cfg.Locking.Backend != "redis" {
		return locking.NewLocalLocker(), nil
	}

	locker, err := locking.NewRedisLocker(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	cleanup.add(locker.Close)
	*checks = append(*checks, api.WithHealthCheck("redis", locker.Ping))
	return locker, nil
}

func openCache(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, cleanup *closers) (domain.SubmissionCache, error) {
	cacheConfig := cache.SubmissionCacheConfig{
		MemoryTTL:     cfg.Cache.MemoryTTL,
		MaxMemorySize: cfg.Cache.MemoryMaxItems,
	}

	if cfg.Cache.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		cleanup.add(client.Close)
		cacheConfig.RedisClient = client
	}

	return cache.NewSubmissionCache(cacheConfig, logger)
}
