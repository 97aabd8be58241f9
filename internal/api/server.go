package api

import (
	"context"
	"net/http"
	"time"
)

// Server wraps the HTTP server for the batch submission and status API.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a Server from the configured route handlers.
func NewServer(health *HealthChecker, batches *BatchHandlers) *Server {
	return &Server{handler: SetupRoutes(health, batches)}
}

// Handler returns the HTTP handler, for testing.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe starts the HTTP server. Timeouts are generous to support
// large source file submissions.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
