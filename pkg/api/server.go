package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/shelfd/shelfd/internal/logger"
)

// Server provides the HTTP server for the REST API.
//
// The server is created in a stopped state; Start begins serving. Graceful
// shutdown waits for in-flight requests up to the caller's context deadline.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer creates a new API HTTP server over the given handler.
func NewServer(config Config, handler http.Handler) *Server {
	config.applyDefaults()

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}
}

// Start serves until the listener fails or Shutdown is called. Blocking.
func (s *Server) Start() error {
	logger.Info("REST API listening", "port", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		logger.Info("shutting down REST API")
		err = s.server.Shutdown(ctx)
	})
	return err
}
