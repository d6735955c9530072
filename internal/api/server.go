package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/histpos/pkg/config"
)

// Server represents the HTTP API server
// ⭐ SSOT: API 서버 설정은 이 파일에서만
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
	config     *config.Config
}

// New creates a new API server
// 쓰기 타임아웃은 분석 제한 시간보다 길어야 함
func New(cfg *config.Config, router http.Handler, log zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      cfg.Analysis.Timeout + 15*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log:    log.With().Str("component", "api_server").Logger(),
		config: cfg,
	}
}

// Start starts the HTTP server (blocks until shutdown)
func (s *Server) Start() error {
	s.log.Info().
		Str("port", s.config.Port).
		Str("env", s.config.Env).
		Msg("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down API server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
