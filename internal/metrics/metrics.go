// Package metrics provides Prometheus instrumentation for the scanner and the
// HTTP API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScanCyclesTotal counts scan cycles by result (ok, skipped, locked, error).
	ScanCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daylight_scan_cycles_total",
		Help: "Total scan cycles by result",
	}, []string{"result"})

	// ScanDuration tracks full cycle latency.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "daylight_scan_duration_seconds",
		Help:    "Scan cycle duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// FeedErrorsTotal counts failed venue fetches.
	FeedErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daylight_feed_errors_total",
		Help: "Venue snapshot fetch failures",
	}, []string{"venue"})

	// FeedInstruments is the size of the latest canonical snapshot per venue.
	FeedInstruments = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daylight_feed_instruments",
		Help: "Instruments in the latest venue snapshot",
	}, []string{"venue"})

	// MatchCandidates is the number of similar pairs found by the last cycle.
	MatchCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daylight_match_candidates",
		Help: "Similar cross-venue pairs in the latest cycle",
	})

	// OpportunitiesOpen is the number of open ledger records.
	OpportunitiesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daylight_opportunities_open",
		Help: "Currently open opportunities",
	})

	// OpportunityTransitions counts ledger transitions by kind (opened, closed, evicted).
	OpportunityTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daylight_opportunity_transitions_total",
		Help: "Opportunity ledger transitions",
	}, []string{"kind"})

	// AlertsTotal counts alerts emitted by source (arb, manual).
	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daylight_alerts_total",
		Help: "Alerts emitted",
	}, []string{"source"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daylight_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daylight_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "daylight_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics. The
// route label is the ServeMux pattern, so path parameters do not explode
// cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
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

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
