// Package metrics instruments the module engine with Prometheus-compatible
// counters and pushes them to a VictoriaMetrics/Prometheus remote write
// endpoint.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's counters on a private registry.
// It satisfies the worker and bar recorder interfaces.
type Metrics struct {
	registry *prometheus.Registry

	updates  *prometheus.CounterVec
	failures *prometheus.CounterVec
	writes   prometheus.Counter
}

// New creates and registers the engine counters.
func New(prefix string) (*Metrics, error) {
	registry := prometheus.NewRegistry()

	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_module_updates_total",
		Help: "Successful module recomputes.",
	}, []string{"module"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "_module_failures_total",
		Help: "Failed module recomputes by kind.",
	}, []string{"module", "kind"})
	writes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_line_writes_total",
		Help: "Physical writes of the composed status line.",
	})

	for _, c := range []prometheus.Collector{updates, failures, writes} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	return &Metrics{
		registry: registry,
		updates:  updates,
		failures: failures,
		writes:   writes,
	}, nil
}

// RecordUpdate counts a successful recompute for the named module.
func (m *Metrics) RecordUpdate(moduleName string) {
	m.updates.WithLabelValues(moduleName).Inc()
}

// RecordFailure counts a failed recompute for the named module.
func (m *Metrics) RecordFailure(moduleName string, terminal bool) {
	kind := "transient"
	if terminal {
		kind = "terminal"
	}
	m.failures.WithLabelValues(moduleName, kind).Inc()
}

// RecordWrite counts one physical write of the composed line.
func (m *Metrics) RecordWrite() {
	m.writes.Inc()
}

// Registry returns the underlying registry, used by the pusher to gather
// current values.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
