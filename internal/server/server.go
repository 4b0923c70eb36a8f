// Package server exposes tasks and the assistant features over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/marcus/taskpilot/internal/assist"
	"github.com/marcus/taskpilot/internal/config"
	"github.com/marcus/taskpilot/internal/logging"
	"github.com/marcus/taskpilot/internal/recommend"
	"github.com/marcus/taskpilot/internal/search"
	"github.com/marcus/taskpilot/internal/stale"
	"github.com/marcus/taskpilot/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

// Recommender ranks a task snapshot.
type Recommender interface {
	Recommend(ctx context.Context, list []tasks.Task) (*recommend.Set, error)
}

// StaleDetector reports tasks that have gone quiet.
type StaleDetector interface {
	Detect(ctx context.Context, list []tasks.Task, now time.Time) (*stale.Report, error)
}

// Assistant runs the single-task oracle helpers.
type Assistant interface {
	GenerateTasks(ctx context.Context, goal string) ([]assist.GeneratedTask, error)
	ClassifyTask(ctx context.Context, title, description string) (*assist.Classification, error)
	SuggestPriority(ctx context.Context, title, description, deadline string) (*assist.PrioritySuggestion, error)
	ExecutionGuide(ctx context.Context, t tasks.Task) (*assist.Guide, error)
	CompletionMessage(ctx context.Context, title, description string, category tasks.Category) (*assist.Celebration, error)
	SearchQuery(ctx context.Context, title, description string) (string, error)
}

// Searcher looks up web results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, n int) (*search.Response, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Store       tasks.Store
	Recommender Recommender
	Detector    StaleDetector
	Assistant   Assistant
	Search      Searcher
}

// Server is the HTTP API.
type Server struct {
	deps    Deps
	cfg     config.ServerConfig
	log     *logging.Logger
	now     func() time.Time
	version string
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock sets the clock used for stale detection and token checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithVersion sets the version reported by the banner route.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// New builds the router. Routes under /api require a bearer token when
// cfg.JWTSecret is set.
func New(deps Deps, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		cfg:     cfg,
		now:     time.Now,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Component("server")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.GET("/", s.handleIndex)
	router.GET("/health", s.handleHealth)

	api := router.Group("/api")
	if cfg.JWTSecret != "" {
		api.Use(s.requireToken([]byte(cfg.JWTSecret)))
	}

	todos := api.Group("/todos")
	{
		todos.GET("", s.handleListTodos)
		todos.GET("/:id", s.handleGetTodo)
		todos.POST("", s.handleCreateTodo)
		todos.PUT("/:id", s.handleUpdateTodo)
		todos.DELETE("/:id", s.handleDeleteTodo)
		todos.PATCH("/:id/complete", s.handleToggleTodo)
	}

	ai := api.Group("/ai")
	{
		ai.POST("/generate-tasks", s.handleGenerateTasks)
		ai.POST("/classify-task", s.handleClassifyTask)
		ai.POST("/set-priority", s.handleSetPriority)
		ai.POST("/generate-execution-guide", s.handleExecutionGuide)
		ai.POST("/generate-completion-message", s.handleCompletionMessage)
		ai.POST("/detect-stale-tasks", s.handleDetectStale)
		ai.POST("/recommend-tasks", s.handleRecommend)
	}

	api.POST("/search/task-context", s.handleTaskContext)

	s.router = router
	return s
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = config.DefaultServerAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoCtx("api server listening", logging.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.log.Info("api server stopped")
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "taskpilot API",
		"version": s.version,
		"endpoints": gin.H{
			"todos":  "/api/todos",
			"ai":     "/api/ai",
			"search": "/api/search",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// requestLogger logs one line per request at a level matching the status.
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := logging.Fields{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":   c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorCtx("request failed", fields)
		case status >= http.StatusBadRequest:
			log.WarnCtx("request rejected", fields)
		default:
			log.InfoCtx("request", fields)
		}
	}
}
