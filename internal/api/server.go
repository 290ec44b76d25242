// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	handlers "github.com/newthinker/momentum/internal/api/handler/api"
	"github.com/newthinker/momentum/internal/api/job"
	"github.com/newthinker/momentum/internal/api/middleware"
	"github.com/newthinker/momentum/internal/api/response"
	"github.com/newthinker/momentum/internal/app"
	"github.com/newthinker/momentum/internal/metrics"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the backtest and optimization API
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
	app        *app.App
	jobs       *job.Store
	cancel     context.CancelFunc
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string
	MaxJobs     int
	JobTTL      time.Duration
	MetricsPath string // empty disables the metrics endpoint
}

// Dependencies holds the services the API exposes.
type Dependencies struct {
	App *app.App
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 100
	}

	mux := http.NewServeMux()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 6 * time.Minute, // synchronous backtests on long series
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		mux:    mux,
		app:    deps.App,
		jobs:   job.NewStore(cfg.MaxJobs, cfg.JobTTL),
		cancel: cancel,
	}

	s.setupRoutes(ctx, cfg)

	reg := deps.App.Metrics()
	s.handler = middleware.Chain(mux,
		metrics.LoggingMiddleware(logger),
		metrics.HTTPMiddleware(reg),
		middleware.APIKeyAuth(cfg.APIKey, "/api/health", cfg.MetricsPath),
	)
	s.httpServer.Handler = s.handler

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(ctx context.Context, cfg Config) {
	backtests := handlers.NewBacktestHandler(s.jobs, s.app)
	optimizations := handlers.NewOptimizeHandler(ctx, s.jobs, s.app)
	jobs := handlers.NewJobsHandler(s.jobs, s.app)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/backtest", backtests.Run)
	s.mux.HandleFunc("POST /api/optimize", optimizations.Create)
	s.mux.HandleFunc("GET /api/jobs", jobs.List)
	s.mux.HandleFunc("GET /api/jobs/{id}", jobs.Get)
	s.mux.HandleFunc("GET /api/jobs/{id}/files/{name}", jobs.File)

	if cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, s.app.Metrics().Handler())
	}
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"sources": s.app.Sources(),
	})
}
