// Package server exposes the policy analyst over HTTP: upload a PDF policy,
// ask questions, get structured verdicts.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coverscan/policy-analyst/internal/pipeline"
)

// DefaultMaxUploadBytes caps uploaded policies at 10 MB.
const DefaultMaxUploadBytes = 10 << 20

// Config holds server dependencies.
type Config struct {
	Pipeline       *pipeline.Pipeline
	Health         HealthChecker // nil means the index backend needs no probe
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Server wraps the gin engine with the analysis pipeline.
type Server struct {
	engine   *gin.Engine
	pipeline *pipeline.Pipeline
	maxBytes int64
	logger   *slog.Logger
}

// New creates a configured server with all routes registered.
func New(cfg *Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		engine:   gin.New(),
		pipeline: cfg.Pipeline,
		maxBytes: cfg.MaxUploadBytes,
		logger:   cfg.Logger,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", NewHealthHandler(cfg.Health))

	api := s.engine.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/documents", s.handleUpload)
	api.POST("/ask", s.handleAsk)

	return s
}

// Run serves HTTP on addr until ctx is cancelled, then drains in-flight
// requests before returning. A clean shutdown returns nil.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Engine returns the underlying gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
