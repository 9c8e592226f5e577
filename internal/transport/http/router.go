// Package http exposes the pipeline over a small JSON API: trigger
// runs, query their status and list produced reports. Errors are
// RFC 7807 problem documents.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"reportcli/internal/config"
	"reportcli/internal/middleware"
)

// NewRouter assembles the HTTP API. promHandler serves the Prometheus
// scrape endpoint and may be nil when metrics are disabled.
func NewRouter(cfg *config.Config, service RunService, logger *slog.Logger, promHandler http.Handler) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}

	runs := NewRunsHandler(service, logger)
	reports := NewReportsHandler(service, logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", handleHealth)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", runs.Trigger)
			r.Get("/", runs.List)
			r.Get("/{id}", runs.Get)
		})
		r.Get("/jobs", runs.Jobs)
		r.Get("/reports", reports.List)
	})

	if promHandler != nil {
		r.Handle("/metrics", promHandler)
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}
