// Package metrics holds the prometheus collectors of the supply service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collectors registered on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	Transitions          *prometheus.CounterVec
	StockMovements       *prometheus.CounterVec
	ReconcileMismatches  prometheus.Counter
	NotificationFailures *prometheus.CounterVec
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "supply",
			Name:      "status_transitions_total",
			Help:      "Committed supply request status transitions.",
		}, []string{"from", "to"}),
		StockMovements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "inventory",
			Name:      "stock_movements_total",
			Help:      "Ledger entries appended, by movement type.",
		}, []string{"type"}),
		ReconcileMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "inventory",
			Name:      "reconcile_mismatches_total",
			Help:      "Reconciliation reports where ledger and snapshot disagree.",
		}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Failed status change notifications, by sink.",
		}, []string{"sink"}),
	}
	m.registry.MustRegister(
		m.Transitions,
		m.StockMovements,
		m.ReconcileMismatches,
		m.NotificationFailures,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Movement(movementType string) {
	if m == nil {
		return
	}
	m.StockMovements.WithLabelValues(movementType).Inc()
}

func (m *Metrics) ReconcileMismatch() {
	if m == nil {
		return
	}
	m.ReconcileMismatches.Inc()
}

func (m *Metrics) NotificationFailed(sink string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(sink).Inc()
}
