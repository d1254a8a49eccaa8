// Package http exposes the quote approval services over a JSON API.
// Handlers are a thin translation layer onto the application services.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/service"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkflowActions is the part of the workflow engine the API drives
type WorkflowActions interface {
	Approve(ctx context.Context, stepID string, caller entity.Identity, comments string) (*entity.WorkflowStep, error)
	Reject(ctx context.Context, stepID string, caller entity.Identity, reason, comments string) (*entity.WorkflowStep, error)
	Escalate(ctx context.Context, stepID string, caller entity.Identity, target entity.Persona, comments string) (*entity.WorkflowStep, error)
	Status(ctx context.Context, quoteID string, caller entity.Identity) (*workflow.WorkflowStatus, error)
	PendingFor(ctx context.Context, caller entity.Identity) ([]*entity.WorkflowStep, error)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Services bundles the collaborators the handlers call
type Services struct {
	Quotes    service.QuoteService
	Analytics service.AnalyticsService
	Workflow  WorkflowActions
	Identity  port.IdentityResolver
	Users     port.UserRepository
	// Now is the clock used for overdue reporting; defaults to time.Now
	Now func() time.Time
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if services.Now == nil {
		services.Now = time.Now
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	api.Use(authMiddleware(s.services.Identity, s.services.Users, s.logger))
	{
		api.GET("/me", h.Me)

		quotes := api.Group("/quotes")
		quotes.POST("", h.CreateQuote)
		quotes.POST("/generate", h.GenerateQuote)
		quotes.GET("", h.ListQuotes)
		quotes.GET("/:id", h.GetQuote)
		quotes.PUT("/:id", h.UpdateQuote)
		quotes.DELETE("/:id", h.DeleteQuote)
		quotes.PUT("/:id/workflow", h.ConfigureWorkflow)
		quotes.GET("/:id/workflow", h.WorkflowStatus)
		quotes.POST("/:id/submit", h.SubmitQuote)
		quotes.POST("/:id/terminate", h.TerminateQuote)
		quotes.POST("/:id/reopen", h.ReopenQuote)
		quotes.GET("/:id/actions", h.QuoteActions)

		wf := api.Group("/workflow")
		wf.GET("/pending", h.PendingSteps)
		wf.POST("/steps/:id/approve", h.ApproveStep)
		wf.POST("/steps/:id/reject", h.RejectStep)
		wf.POST("/steps/:id/escalate", h.EscalateStep)

		analytics := api.Group("/analytics")
		analytics.GET("/dashboard", h.Dashboard)
		analytics.GET("/approval-times", h.ApprovalTimes)
		analytics.GET("/overdue", h.OverdueSteps)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
