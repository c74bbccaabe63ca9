// Package ops serves the diagnostics HTTP endpoints for long-running
// commands: health, metrics, and run status.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/paperdex/paperdex/internal/logger"
	"github.com/paperdex/paperdex/internal/metrics"
	"github.com/paperdex/paperdex/internal/usecase/health"
	"github.com/paperdex/paperdex/internal/usecase/pipeline"
)

const shutdownTimeout = 5 * time.Second

// Config holds the diagnostics server settings.
type Config struct {
	Addr    string
	APIKeys []string
}

// Server is the diagnostics HTTP server.
type Server struct {
	http    *http.Server
	health  *health.Service
	tracker *pipeline.Tracker
	log     *zap.Logger
}

// NewServer creates the diagnostics server. tracker can be nil for
// commands that run no pipeline.
func NewServer(cfg Config, healthSvc *health.Service, tracker *pipeline.Tracker, log *zap.Logger) *Server {
	s := &Server{health: healthSvc, tracker: tracker, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(metrics.Middleware())
	r.Use(bearerAuth(cfg.APIKeys))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("ops server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// requestLogger puts the server logger into the request context so
// handlers and nested code share one logging path.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logger.ContextWithLogger(r.Context(), log)))
		})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
		logger.FromContext(r.Context()).Warn("health probe failed", zap.Any("checks", report.Checks))
	}
	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
