// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paper_tracker"

var (
	// ArxivFetches counts metadata lookups by outcome:
	// ok, cached, not_found, unavailable, malformed, invalid.
	ArxivFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "arxiv_fetch_total",
		Help:      "arXiv metadata lookups by outcome.",
	}, []string{"outcome"})

	// Reorders counts manual moves by mode: midpoint, renumber, noop, conflict, list.
	Reorders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reorder_total",
		Help:      "Manual reorder operations by mode.",
	}, []string{"mode"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
