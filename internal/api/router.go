package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds the database ping made by /api/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, msgNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	// Prometheus exposition
	r.Handle("/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Sensor readings
		r.Get("/hydro-parameters", s.handleLatestReading)
		r.Get("/fetch_data_source", s.handleListReadings)

		// Actuator settings
		r.Get("/components-control", s.handleListControls)
		r.Post("/update_controls", s.handleUpdateControls)

		r.Post("/user-login", s.handleLogin)
		r.Get("/notifications", s.handleListNotifications)

		if s.wsCfg.Enabled {
			r.Get("/ws", s.handleWebSocket)
		}
	})

	return r
}

// handleHealth reports liveness and, when a pool is configured, whether the
// database answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	resp := map[string]any{
		"version": s.version,
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
			resp["database"] = "unreachable"
		} else {
			resp["database"] = "ok"
		}
	}

	resp["status"] = status
	writeJSON(w, code, resp) //nolint:errcheck // strings only
}
