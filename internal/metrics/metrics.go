// Package metrics exposes the orchestrator's Prometheus counters and
// gauges, registered against a private registry and served by cmd/orchestrator
// serve's /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal     *prometheus.CounterVec
	iterationsTotal prometheus.Counter
	verdictsTotal  *prometheus.CounterVec
}

// New constructs and registers the orchestrator's metric collectors against
// a fresh private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.tasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_tasks_total",
		Help: "Count of tasks reaching a terminal status, labeled by status.",
	}, []string{"status"})

	m.iterationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_iterations_total",
		Help: "Total number of iteration-loop cycles executed across all tasks.",
	})

	m.verdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_verify_verdicts_total",
		Help: "Count of Fast Verifier verdicts, labeled by verdict.",
	}, []string{"verdict"})

	m.registry.MustRegister(m.tasksTotal, m.iterationsTotal, m.verdictsTotal)
	return m
}

// RecordTaskStatus increments the terminal-status counter for a task.
func (m *Metrics) RecordTaskStatus(status string) {
	m.tasksTotal.WithLabelValues(status).Inc()
}

// RecordIteration increments the global iteration counter.
func (m *Metrics) RecordIteration() {
	m.iterationsTotal.Inc()
}

// RecordVerdict increments the verdict counter for a Fast Verifier result.
func (m *Metrics) RecordVerdict(verdict string) {
	m.verdictsTotal.WithLabelValues(verdict).Inc()
}

// Handler returns the http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
