// Package monitoring defines the Prometheus metrics exposed on /metrics.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled HTTP requests. The path label uses the
	// chi route pattern ("/api/links/{index}"), not the raw URL, to keep
	// cardinality bounded.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "child_panel_http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// ResponseTime observes request latency per route.
	ResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "child_panel_http_response_time_seconds",
			Help:    "HTTP request latency in seconds, by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// StoreErrors counts failed remote store operations, by the step that
	// failed. A rising partial_write series is the signal to reconcile.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "child_panel_store_errors_total",
			Help: "Total number of failed key-value store operations, by kind.",
		},
		[]string{"kind"},
	)
)
