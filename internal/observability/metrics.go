// Package observability wires prometheus metrics for the HTTP surface and
// the batch ledger.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	bagsAllocated prometheus.Counter
	bagsRestored  prometheus.Counter
	bolsIssued    prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bagline_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bagline_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	bagsAllocated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bagline_bags_allocated_total",
		Help: "Bags allocated from batches onto BOL line items.",
	})
	bagsRestored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bagline_bags_restored_total",
		Help: "Bags restored to batches from removed or edited BOL lines.",
	})
	bolsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bagline_bols_issued_total",
		Help: "BOL documents issued.",
	})
	registry.MustRegister(requests, duration, bagsAllocated, bagsRestored, bolsIssued)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		bagsAllocated:   bagsAllocated,
		bagsRestored:    bagsRestored,
		bolsIssued:      bolsIssued,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveAllocation counts bags moved by the ledger. Negative deltas count
// as restores.
func (m *Metrics) ObserveAllocation(bags int64) {
	if m == nil {
		return
	}
	if bags >= 0 {
		m.bagsAllocated.Add(float64(bags))
	} else {
		m.bagsRestored.Add(float64(-bags))
	}
}

// ObserveBOLIssued counts an issued BOL.
func (m *Metrics) ObserveBOLIssued() {
	if m == nil {
		return
	}
	m.bolsIssued.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if pattern := ctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
