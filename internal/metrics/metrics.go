// Package metrics exposes Prometheus instrumentation for team searches.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes used as the "outcome" label.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
	OutcomeEmpty     = "empty"
)

// Metrics groups the collectors registered for one process.
type Metrics struct {
	searches     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	activated    *prometheus.HistogramVec
	combinations prometheus.Histogram
	jobs         prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamopt_searches_total",
			Help: "Searches by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamopt_search_duration_seconds",
			Help:    "Wall time per search",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"strategy"}),
		activated: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamopt_search_activated_traits",
			Help:    "Best activated trait count per completed search",
			Buckets: prometheus.LinearBuckets(0, 1, 13),
		}, []string{"strategy"}),
		combinations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamopt_exhaustive_combinations",
			Help:    "Estimated combinations per exhaustive search request",
			Buckets: prometheus.ExponentialBuckets(1, 10, 12),
		}),
		jobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "teamopt_search_jobs_running",
			Help: "Asynchronous search jobs currently running",
		}),
	}
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(strategy, outcome string, elapsed time.Duration, count int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(strategy, outcome).Inc()
	if outcome == OutcomeRejected {
		return
	}
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if outcome == OutcomeCompleted {
		m.activated.WithLabelValues(strategy).Observe(float64(count))
	}
}

// ObserveEstimate records the size of an exhaustive search space.
func (m *Metrics) ObserveEstimate(combinations float64) {
	if m == nil {
		return
	}
	m.combinations.Observe(combinations)
}

// JobStarted and JobFinished track running asynchronous jobs.
func (m *Metrics) JobStarted() {
	if m != nil {
		m.jobs.Inc()
	}
}

func (m *Metrics) JobFinished() {
	if m != nil {
		m.jobs.Dec()
	}
}
