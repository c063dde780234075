package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockgate"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Domain metrics
	TokenOperations    *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	RateLimitDecisions *prometheus.CounterVec
}

// NewRegistry creates a registry with the Go runtime and process collectors
// and all stockgate metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TokenOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_operations_total",
				Help:      "Token issue, verify and refresh calls by result.",
			},
			[]string{"operation", "result"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Password login attempts by result.",
			},
			[]string{"result"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_decisions_total",
				Help:      "Rate limiter decisions by outcome.",
			},
			[]string{"outcome"},
		),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.TokenOperations,
		r.LoginAttempts,
		r.RateLimitDecisions,
	)
	return r
}

// MustRegister adds further collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, never the raw path, to bound label cardinality.
func (r *Registry) ObserveRequest(method, route string, status int, d time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// TokenOperation implements service.Recorder.
func (r *Registry) TokenOperation(op, result string) {
	r.TokenOperations.WithLabelValues(op, result).Inc()
}

// RateLimitDecision implements service.Recorder.
func (r *Registry) RateLimitDecision(outcome string) {
	r.RateLimitDecisions.WithLabelValues(outcome).Inc()
}

// LoginAttempt implements service.Recorder.
func (r *Registry) LoginAttempt(result string) {
	r.LoginAttempts.WithLabelValues(result).Inc()
}
