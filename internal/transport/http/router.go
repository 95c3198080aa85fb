// Package http serves the worker's operational surface: health probes for
// the scheduler and Prometheus metrics for scraping. There is no business
// API; the pipeline is driven by the run loop, not by requests.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// healthTimeout bounds the combined dependency probes so a hung database
// cannot hang the probe endpoint.
const healthTimeout = 5 * time.Second

// NewRouter wires the operational endpoints.
func NewRouter(log *slog.Logger, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", handleHealth(log, checks))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(log *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				log.Warn("health check failed", "dependency", name, "error", err)
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": state,
			"checks": results,
		})
	}
}
