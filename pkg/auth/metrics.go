package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded besides the error kinds.
const (
	OutcomeSuccess = "success"
)

// Metrics records the result of store operations.
type Metrics interface {
	ObserveOperation(operation, outcome string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}

// PrometheusMetrics counts operations by outcome and tracks their latency.
type PrometheusMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var _ Metrics = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "operations_total",
			Help:      "Auth store operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "operation_duration_seconds",
			Help:      "Latency of auth store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOperation implements Metrics.
func (m *PrometheusMetrics) ObserveOperation(operation, outcome string, d time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

func outcomeOf(err *Error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return string(err.Kind)
}
