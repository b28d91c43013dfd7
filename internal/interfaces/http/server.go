// Package http provides the HTTP adapter for the application layer. It is a
// thin translation layer between requests and application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annoworks/annotation-pipeline/internal/application/port"
	"github.com/annoworks/annotation-pipeline/internal/application/service"
	"github.com/annoworks/annotation-pipeline/internal/export"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	annotationService service.AnnotationService,
	qualityService service.QualityService,
	assignmentService service.AssignmentService,
	workflowService service.WorkflowService,
	scoreService service.ScoreService,
	archiveStore port.ArchiveStore,
	exporter *export.ExcelExporter,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		handlers: NewHandlers(
			annotationService,
			qualityService,
			assignmentService,
			workflowService,
			scoreService,
			archiveStore,
			exporter,
			logger,
		),
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	api := s.router.Group("/api")
	api.Use(identityMiddleware())
	{
		api.POST("/annotations", s.handlers.SubmitAnnotation)
		api.POST("/annotations/draft", s.handlers.SaveDraft)
		api.PUT("/annotations/:id/review", s.handlers.ReviewAnnotation)

		api.GET("/quality-checks", s.handlers.ListPendingQualityChecks)
		api.GET("/quality-checks/:id", s.handlers.GetQualityCheck)
		api.POST("/quality-checks/:id/resolve", s.handlers.ResolveQualityCheck)

		api.POST("/tasks/:id/assign", s.handlers.AssignTask)
		api.POST("/tasks/:id/auto-assign", s.handlers.AutoAssignTask)
		api.POST("/tasks/:id/ai-annotate", s.handlers.RunAIAnnotation)
		api.GET("/tasks/:id/workflow", s.handlers.GetWorkflow)

		api.GET("/documents/:id/archive", s.handlers.GetArchive)
		api.GET("/documents/:id/history", s.handlers.GetArchiveHistory)
		api.GET("/documents/:id/conflicts", s.handlers.GetArchiveConflicts)
		api.GET("/documents/:id/archive/export", s.handlers.ExportArchive)

		api.GET("/users/:id/scores", s.handlers.GetScoreHistory)
	}
}

// identityMiddleware resolves the acting user from the X-User-ID header.
// Authentication itself happens upstream; the pipeline trusts the gateway.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			c.Set(actorKey, raw)
		}
		c.Next()
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
