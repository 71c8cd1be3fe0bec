// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ZineInsight/production-workspace-sub001/internal/application/container"
	"github.com/ZineInsight/production-workspace-sub001/internal/presentation/http/routes"
)

// Timeouts configures the underlying http.Server
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server wraps the HTTP server with configuration and dependency injection
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New creates a new HTTP server instance with dependency injection
func New(port string, container *container.Container, settings routes.Settings, timeouts Timeouts) *Server {
	router := routes.SetupRoutes(container, settings)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       timeouts.Read,
		ReadHeaderTimeout: timeouts.Read,
		WriteTimeout:      timeouts.Write,
		IdleTimeout:       timeouts.Idle,
	}

	return &Server{
		httpServer: httpServer,
		container:  container,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.container.Logger.System().Info("Starting HTTP server", "address", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.container.Logger.Shutdown().Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
