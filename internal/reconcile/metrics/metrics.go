package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation engine.
type Metrics struct {
	// Per-person outcomes by outcome and biography source
	Outcome *prometheus.CounterVec

	// Biography fetch latency by source
	FetchLatency *prometheus.HistogramVec

	// Full roster pass duration
	RunDuration prometheus.Histogram
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		Outcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mortality_reconcile_outcomes_total",
			Help: "Total per-person reconciliation outcomes by outcome and source",
		}, []string{"outcome", "source"}),

		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mortality_biography_fetch_duration_seconds",
			Help:    "Duration of biography fetches by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),

		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mortality_run_duration_seconds",
			Help:    "Duration of a full roster reconciliation pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
}

// IncrementOutcome records one person's reconciliation outcome.
func (m *Metrics) IncrementOutcome(outcome, source string) {
	if m != nil {
		m.Outcome.WithLabelValues(outcome, source).Inc()
	}
}

// ObserveFetchLatency records the duration of one biography fetch.
func (m *Metrics) ObserveFetchLatency(source string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveRunDuration records the duration of a full pass.
func (m *Metrics) ObserveRunDuration(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}
