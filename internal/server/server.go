// Package server exposes scoring and ROI simulation over HTTP for the
// retention dashboard.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/YuminosukeSato/attrition/dataset"
	"github.com/YuminosukeSato/attrition/internal/config"
	"github.com/YuminosukeSato/attrition/internal/pipeline"
	"github.com/YuminosukeSato/attrition/pkg/errors"
	"github.com/YuminosukeSato/attrition/pkg/log"
	"github.com/YuminosukeSato/attrition/sklearn/drift"
)

// Scorer is what the dashboard needs from a loaded model.
type Scorer interface {
	Score(t *dataset.Table) ([]pipeline.ScoredRecord, error)
	Artifact() *pipeline.Artifact
}

// Server is the dashboard HTTP API. The scorer is read-only, so handlers run concurrently.
type Server struct {
	cfg      *config.Config
	scorer   Scorer
	metrics  *Metrics
	drift    *drift.ADWIN
	limiter  *rate.Limiter // nil when scoring is not rate limited
	registry *prometheus.Registry
	logger   log.Logger
	router   chi.Router
}

// New builds the router. A fresh Prometheus registry is used per server.
func New(cfg *config.Config, scorer Scorer) *Server {
	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg,
		scorer:   scorer,
		metrics:  NewMetrics(registry),
		drift:    drift.NewADWIN(drift.WithDelta(cfg.DriftDelta)),
		registry: registry,
		logger:   log.GetLoggerWithName("server"),
	}
	if cfg.ScoreRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ScoreRPS), cfg.ScoreBurst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Origins(),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.With(s.rateLimit).Post("/score", s.handleScore)
		r.Get("/roi", s.handleROI)
		r.Get("/model", s.handleModel)
		r.Get("/drift", s.handleDrift)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	grace := time.Duration(s.cfg.ShutdownGrace) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	s.logger.Info("dashboard shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
