package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the rental domain collectors.
type Metrics struct {
	ReturnsProcessed       *prometheus.CounterVec
	PersistenceRejections  *prometheus.CounterVec
	LateReturns            prometheus.Counter
	ReconciliationDuration prometheus.Histogram
	StatusRefreshed        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered, which is what tests usually want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReturnsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_processed_total",
			Help:      "Count of processed return events by outcome.",
		}, []string{"result"}),
		PersistenceRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_rejections_total",
			Help:      "Count of writes refused by the storage layer, by operation.",
		}, []string{"operation"}),
		LateReturns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_returns_total",
			Help:      "Number of return events recorded after the rental window.",
		}),
		ReconciliationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconciliation_duration_ms",
			Help:      "Latency of return processing in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
		StatusRefreshed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_refreshed_total",
			Help:      "Orders whose status changed during a scheduled refresh, by new status.",
		}, []string{"status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ReturnsProcessed,
			m.PersistenceRejections,
			m.LateReturns,
			m.ReconciliationDuration,
			m.StatusRefreshed,
		)
	}
	return m
}

// ObserveReconciliation records the elapsed time since start.
func (m *Metrics) ObserveReconciliation(start time.Time) {
	if m == nil {
		return
	}
	m.ReconciliationDuration.Observe(float64(time.Since(start).Milliseconds()))
}

// ReturnProcessed counts one return event with the given result label.
func (m *Metrics) ReturnProcessed(result string, late bool) {
	if m == nil {
		return
	}
	m.ReturnsProcessed.WithLabelValues(result).Inc()
	if late {
		m.LateReturns.Inc()
	}
}

// Rejected counts a storage refusal for operation.
func (m *Metrics) Rejected(operation string) {
	if m == nil {
		return
	}
	m.PersistenceRejections.WithLabelValues(operation).Inc()
}

// Refreshed counts a status transition made by the refresh job.
func (m *Metrics) Refreshed(status string) {
	if m == nil {
		return
	}
	m.StatusRefreshed.WithLabelValues(status).Inc()
}
