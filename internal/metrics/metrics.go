// Package metrics provides Prometheus instrumentation for the market service.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActionsTotal counts executed actions by action name and outcome
	// ("ok", "rejected", "error").
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmx_actions_total",
		Help: "Total number of market actions executed",
	}, []string{"action", "outcome"})

	// ActionLatency tracks action latency including persistence.
	ActionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gmx_action_latency_seconds",
		Help:    "Market action latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// Markets tracks the number of markets.
	Markets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gmx_markets",
		Help: "Number of markets",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gmx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gmx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})

	// PositionLimitRejections counts increases rejected by the exposure limiter.
	PositionLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gmx_position_limit_rejections_total",
		Help: "Position increases rejected by the exposure limiter",
	})

	// SizeDeltaUsd tracks cumulative position size traded per market, in USD.
	SizeDeltaUsd = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gmx_position_size_delta_usd_total",
		Help: "Cumulative position size increased or decreased, in USD",
	}, []string{"market_id", "direction"})

	// PublishFailures counts action events that could not be published.
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gmx_event_publish_failures_total",
		Help: "Action events that failed to publish",
	})
)

// ObserveAction records the outcome and latency of one action.
func ObserveAction(action, outcome string, started time.Time) {
	ActionsTotal.WithLabelValues(action, outcome).Inc()
	ActionLatency.WithLabelValues(action).Observe(time.Since(started).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
