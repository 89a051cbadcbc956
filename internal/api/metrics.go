package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/hydrogate/internal/infrastructure/database"
)

const metricsNamespace = "hydrogate"

// Control update outcomes recorded in hydrogate_control_updates_total.
const (
	updateResultApplied = "applied"
	updateResultNoop    = "noop"
	updateResultFailed  = "failed"
)

// metrics holds the server's Prometheus collectors. Each Server owns its own
// registry so tests can build several servers in one process.
type metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	controlUpdates *prometheus.CounterVec
}

func newMetrics(db *database.DB, hub *Hub) (*metrics, error) {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		controlUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "control_updates_total",
			Help:      "Dispense amount updates by result.",
		}, []string{"result"}),
	}

	cs := []prometheus.Collector{
		m.requests,
		m.duration,
		m.controlUpdates,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}, func() float64 { return float64(hub.ClientCount()) }),
	}
	if db != nil && db.DB != nil {
		cs = append(cs, collectors.NewDBStatsCollector(db.DB, db.Driver()))
	}

	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// metricsMiddleware records request counts and latency labelled by the
// matched chi route pattern, keeping label cardinality bounded.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		s.metrics.requests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		s.metrics.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
