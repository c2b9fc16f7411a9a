// Package metrics holds the Prometheus collectors shared by the model layer,
// the report synthesizer and the HTTP server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every collector in this package is registered on.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// ModelCalls counts upstream model calls by operation and outcome.
	ModelCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripreport",
		Name:      "model_calls_total",
		Help:      "Upstream model calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	// ModelLatency observes upstream call latency in seconds.
	ModelLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tripreport",
		Name:      "model_call_duration_seconds",
		Help:      "Latency of upstream model calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"operation"})

	// RateLimitRetries counts backoff retries after rate limited responses.
	RateLimitRetries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripreport",
		Name:      "rate_limit_retries_total",
		Help:      "Retries scheduled after a rate limited model response.",
	}, []string{"operation"})

	// Generations counts report synthesis runs by mode and outcome.
	Generations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tripreport",
		Name:      "report_generations_total",
		Help:      "Report synthesis runs by mode and outcome.",
	}, []string{"mode", "outcome"})

	// Publications counts published reports.
	Publications = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "tripreport",
		Name:      "reports_published_total",
		Help:      "Reports published to the gallery.",
	})
)

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
