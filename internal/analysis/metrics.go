package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "verity"

// Run outcomes recorded by Metrics.Runs.
const (
	OutcomeSuccess     = "success"
	OutcomeUnsupported = "unsupported"
	OutcomeFailure     = "failure"
)

// Metrics holds the Prometheus collectors updated by a Runner.
type Metrics struct {
	// Requests counts resolved requests by source (cache, engine).
	Requests *prometheus.CounterVec

	// Runs counts finished runs by outcome.
	Runs *prometheus.CounterVec

	// ComputeSeconds observes the duration of engine batches.
	ComputeSeconds prometheus.Histogram
}

// NewMetrics creates the runner collectors and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "metric_requests_total",
			Help:      "Metric requests resolved, by source",
		}, []string{"source"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "analysis_runs_total",
			Help:      "Analysis runs, by outcome",
		}, []string{"outcome"}),
		ComputeSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "engine_compute_seconds",
			Help:      "Duration of engine compute batches in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}
}
