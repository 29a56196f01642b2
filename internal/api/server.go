package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/chainsocial/scoring-service/internal/config"
	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// Server wraps the HTTP server with graceful shutdown.
type Server struct {
	srv *http.Server
	cfg config.ServerConfig
}

// NewServer builds the HTTP server from configuration.
func NewServer(cfg config.ServerConfig, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		cfg: cfg,
	}
}

// Run serves until the context is canceled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api: listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("api: shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
