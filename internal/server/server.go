// Package server wires the reference field store: routing, middleware
// chain and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/metrics"
	"github.com/iudanet/fieldsync/internal/server/handlers"
	"github.com/iudanet/fieldsync/internal/server/jwt"
	"github.com/iudanet/fieldsync/internal/server/middleware"
	"github.com/iudanet/fieldsync/internal/validation"
)

const shutdownTimeout = 10 * time.Second

// Store is everything the routes need from persistence
type Store interface {
	handlers.FieldStore
	handlers.BlobStore
	handlers.Pinger
}

// Server is the HTTP front of the field store
type Server struct {
	handler http.Handler
	limiter *middleware.RateLimiter
	logger  *slog.Logger
	addr    string
}

// New builds the router. reg receives the server collectors and is served on /metrics.
func New(cfg config.Server, store Store, tokens middleware.TokenValidator, reg *prometheus.Registry, logger *slog.Logger) *Server {
	gates := validation.NewRegistry()
	if cfg.MaxValueLength > 0 {
		gates.SetFallback(validation.New(validation.MaxLength(cfg.MaxValueLength)))
	}

	m := metrics.NewServer(reg)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, logger)

	fields := handlers.NewFieldsHandler(logger, store, gates, m)
	blobs := handlers.NewBlobsHandler(logger, store)
	health := handlers.NewHealthHandler(logger, store)

	// Защищенные маршруты: auth -> rate limit -> scope
	protected := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(logger, tokens)(
			limiter.Middleware(
				middleware.RequireScope(logger, scope)(h)))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("GET /api/v1/entities/{entity}/fields/{field}", protected(jwt.ScopeRead, fields.Get))
	mux.Handle("PUT /api/v1/entities/{entity}/fields/{field}", protected(jwt.ScopeWrite, fields.Put))
	mux.Handle("POST /api/v1/blobs", protected(jwt.ScopeWrite, blobs.Upload))

	var handler http.Handler = mux
	handler = m.Middleware(handler)
	handler = middleware.LoggingWithSkip(logger, []string{"/metrics", "/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(logger)(handler)

	return &Server{
		handler: handler,
		limiter: limiter,
		logger:  logger,
		addr:    cfg.Addr,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	defer s.limiter.Stop()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Close releases background resources when Run was never called
func (s *Server) Close() {
	s.limiter.Stop()
}
