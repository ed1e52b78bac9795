// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ahrav/go-dossier/internal/domain"
	"github.com/ahrav/go-dossier/internal/logging"
	"github.com/ahrav/go-dossier/internal/ports"
)

// QueryService is what the handlers need from the application layer.
type QueryService interface {
	Ask(ctx context.Context, question string) (domain.QueryResponse, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// Options configures a Server. Limiter and Metrics are optional; a nil
// Limiter admits every request and a nil Metrics handler leaves the metrics
// path unrouted.
type Options struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PublicURL         string
	CORSOrigin        string
	TrustProxyHeaders bool
	MetricsPath       string

	Limiter ports.AdmissionController
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	opts    Options
	queries QueryService
	logger  *slog.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(queries QueryService, opts Options) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	s := &Server{
		router:  http.NewServeMux(),
		opts:    opts,
		queries: queries,
		logger:  logging.OrDiscard(opts.Logger),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.applyMiddleware(s.router),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       2 * opts.WriteTimeout,
	}
	return s
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Last applied runs first.
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware(s.opts.CORSOrigin)(handler)
	return handler
}
