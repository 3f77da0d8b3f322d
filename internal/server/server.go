// Package server assembles the HTTP surface and owns its lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/soclens/soclens/internal/config"
	"github.com/soclens/soclens/internal/logging"
)

// Server wraps the http.Server with the backend's lifecycle conventions.
type Server struct {
	srv *http.Server
	log *logging.Logger
}

// New builds a Server from config and the assembled router.
func New(cfg config.ServerConfig, handler http.Handler, log *logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Start listens until the server is shut down. It returns nil on a clean
// shutdown.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
