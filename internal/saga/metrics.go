package saga

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks checkout outcomes and per-step latency.
type Metrics struct {
	Checkouts    *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "sagas_total",
		Help:      "Total number of checkout sagas by outcome.",
	}, []string{"outcome"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "checkout",
		Name:      "saga_step_duration_ms",
		Help:      "Saga step latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 30000},
	}, []string{"step"})

	reg.MustRegister(checkouts, stepDuration)
	return &Metrics{Checkouts: checkouts, StepDuration: stepDuration}
}

func (m *Metrics) observeStep(step string, start time.Time) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(step).Observe(float64(time.Since(start).Milliseconds()))
}

func (m *Metrics) countOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}
