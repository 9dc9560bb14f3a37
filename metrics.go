package abtest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "abtest"

// metrics holds the client's Prometheus collectors.
type metrics struct {
	// Labels: outcome (matched|unmatched|error)
	executions *prometheus.CounterVec
	// Labels: experiment, creative
	assignments *prometheus.CounterVec
	// Buckets tuned for in-memory evaluation.
	executeDuration prometheus.Histogram
	// Labels: kind (diagnostic|error)
	evaluationProblems *prometheus.CounterVec
	// Labels: result (applied|unchanged|error)
	snapshotRefreshes *prometheus.CounterVec
	// Labels: result (sent|dropped|failed)
	impressions *prometheus.CounterVec
}

// newMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "executions_total",
				Help:      "Total number of Execute calls by outcome",
			},
			[]string{"outcome"},
		),
		assignments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "assignments_total",
				Help:      "Total number of creatives served by experiment and creative",
			},
			[]string{"experiment", "creative"},
		),
		executeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "execute_duration_seconds",
				Help:      "Duration of Execute calls in seconds",
				Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
		),
		evaluationProblems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "evaluation_problems_total",
				Help:      "Malformed patterns and isolated experiment failures met during evaluation",
			},
			[]string{"kind"},
		),
		snapshotRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "snapshot_refreshes_total",
				Help:      "Total number of snapshot refreshes by result",
			},
			[]string{"result"},
		),
		impressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "impressions_total",
				Help:      "Total number of impressions by delivery result",
			},
			[]string{"result"},
		),
	}
}
