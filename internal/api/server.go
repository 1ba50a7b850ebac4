package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
	"github.com/health-screening-server/internal/middleware"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	service       SubmissionService
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
	limiter       *middleware.RateLimiter
	checks        map[string]HealthCheck
}

// Option configures optional server dependencies
type Option func(*Server)

// WithHealthCheck registers a named dependency probe for /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, service SubmissionService, logger *logrus.Logger, opts ...Option) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		service:       service,
		logger:        logger,
		router:        router,
		checks:        make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(server)
	}

	if cfg.RateLimit.Enabled {
		server.limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		router.Use(server.limiter.Middleware())
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if s.limiter != nil {
		s.limiter.StartCleanup(ctx, time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	authCfg := middleware.AuthConfig{
		Secret: []byte(s.configManager.GetConfig().Auth.JWTSecret),
		Issuer: s.configManager.GetConfig().Auth.Issuer,
	}

	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.GET("/rules", s.handleListRules)

	authed := v1.Group("", middleware.RequireAuth(authCfg))
	authed.POST("/evaluate", s.handleEvaluate)

	questionnaires := authed.Group("/questionnaires")
	{
		questionnaires.POST("/submit", s.handleSubmit)
		questionnaires.GET("/me", s.handleGetOwn)
		questionnaires.GET("/:id", s.handleGetSubmission)

		admin := questionnaires.Group("", middleware.RequireAdmin())
		admin.GET("", s.handleListAll)
		admin.GET("/pending", s.handleListPending)
		admin.POST("/:id/review", s.handleReview)
		admin.POST("/:id/regenerate", s.handleRegenerate)
		admin.GET("/:id/reviews", s.handleReviewHistory)
	}
}

// handleHealth runs the registered dependency checks
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WithError(err).WithField("component", name).Warn("Health check failed")
			components[name] = err.Error()
			status = "unhealthy"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    Version,
		"components": components,
	})
}
