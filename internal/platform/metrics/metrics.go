// Package metrics owns the Prometheus registry and the instruments the
// workflow engine emits.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bursar"

// Metrics holds the registered instruments. A nil *Metrics is valid and
// records nothing, so wiring stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	ledgerDeductions   *prometheus.CounterVec
	auditPublishes     *prometheus.CounterVec
	notifyDeliveries   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Transition attempts by entity, action, and outcome code.",
		}, []string{"entity", "action", "outcome"}),
		transitionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transition_duration_seconds",
			Help:      "Wall time of transition attempts, commit included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity", "action"}),
		ledgerDeductions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "deductions_total",
			Help:      "Ledger deduction attempts by outcome (ok, denied, not_found).",
		}, []string{"outcome"}),
		auditPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "publishes_total",
			Help:      "Audit events shipped to the broker by outcome.",
		}, []string{"outcome"}),
		notifyDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.transitions,
		m.transitionDuration,
		m.ledgerDeductions,
		m.auditPublishes,
		m.notifyDeliveries,
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTransition(entity, action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, action, outcome).Inc()
	m.transitionDuration.WithLabelValues(entity, action).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDeduction(outcome string) {
	if m == nil {
		return
	}
	m.ledgerDeductions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAuditPublish(outcome string) {
	if m == nil {
		return
	}
	m.auditPublishes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveNotifyDelivery(outcome string) {
	if m == nil {
		return
	}
	m.notifyDeliveries.WithLabelValues(outcome).Inc()
}
