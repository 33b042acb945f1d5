// Package metrics exposes the engine's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the services and middleware record into.
type Recorder interface {
	RecordLoginAttempt(flow, result string)
	RecordSessionResolution(outcome string)
	CacheLookup(cache string, hit bool)
	RecordLogoutStepFailure(step string)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordPanic(route string)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	loginAttempts  *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	logoutFailures *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
	httpPanics     *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_login_attempts_total",
			Help: "Login attempts by flow and result.",
		}, []string{"flow", "result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_session_resolutions_total",
			Help: "Session resolutions by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_cache_lookups_total",
			Help: "Data cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		logoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_logout_step_failures_total",
			Help: "Logout cleanup steps that failed.",
		}, []string{"step"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_http_requests_total",
			Help: "Local API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ordering_http_request_duration_seconds",
			Help:    "Local API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		httpPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordering_http_panics_total",
			Help: "Handler panics recovered by route.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.resolutions,
		c.cacheLookups,
		c.logoutFailures,
		c.httpRequests,
		c.httpLatency,
		c.httpPanics,
	)
	return c
}

func (c *Collector) RecordLoginAttempt(flow, result string) {
	c.loginAttempts.WithLabelValues(flow, result).Inc()
}

func (c *Collector) RecordSessionResolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}

func (c *Collector) CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) RecordLogoutStepFailure(step string) {
	c.logoutFailures.WithLabelValues(step).Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(duration.Seconds())
}

func (c *Collector) RecordPanic(route string) {
	c.httpPanics.WithLabelValues(route).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used in tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordLoginAttempt(string, string)                    {}
func (Nop) RecordSessionResolution(string)                       {}
func (Nop) CacheLookup(string, bool)                             {}
func (Nop) RecordLogoutStepFailure(string)                       {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordPanic(string)                                   {}
