// Package metrics exposes Prometheus collectors for the turn-processing
// engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine collectors.
type Metrics struct {
	TurnsTotal    *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	StepFailures  *prometheus.CounterVec
	PersistRetry  prometheus.Counter
	PersistDegrad prometheus.Counter
}

// New registers the collectors on the given registerer. Passing nil uses
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careerflow",
			Name:      "turns_total",
			Help:      "Processed turns by terminal workflow status.",
		}, []string{"status"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careerflow",
			Name:      "step_duration_seconds",
			Help:      "Workflow step execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careerflow",
			Name:      "step_failures_total",
			Help:      "Soft and critical step failures by step name.",
		}, []string{"step"}),
		PersistRetry: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "careerflow",
			Name:      "persistence_retries_total",
			Help:      "Session append retries after a store failure.",
		}),
		PersistDegrad: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "careerflow",
			Name:      "persistence_degraded_total",
			Help:      "Turns whose session append exhausted all retries.",
		}),
	}
}

// ObserveStep records one step execution.
func (m *Metrics) ObserveStep(step string, duration time.Duration, err error) {
	m.StepDuration.WithLabelValues(step).Observe(duration.Seconds())
	if err != nil {
		m.StepFailures.WithLabelValues(step).Inc()
	}
}

// ObserveTurn records a completed turn.
func (m *Metrics) ObserveTurn(status string) {
	m.TurnsTotal.WithLabelValues(status).Inc()
}
