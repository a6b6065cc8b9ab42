// Package observability exposes Prometheus metrics for use case runs, the
// cleanup sweep, the event bus and the HTTP API.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geto-app/geto/internal/domain"
	"github.com/geto-app/geto/internal/eventbus"
)

const namespace = "geto"

// Metrics records use case and cleanup activity.
type Metrics struct {
	Runs            *prometheus.CounterVec
	Writes          *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	CleanupRuns     prometheus.Counter
	CleanupPackages prometheus.Counter
	CleanupEntries  prometheus.Counter
}

// NewMetrics creates and registers the use case metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usecase_runs_total",
			Help:      "Use case invocations by use case and outcome.",
		}, []string{"usecase", "outcome"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_writes_total",
			Help:      "Accepted settings writes by use case.",
		}, []string{"usecase"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usecase_duration_seconds",
			Help:      "Use case run duration in seconds.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"usecase"}),
		CleanupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Completed orphan sweeps.",
		}),
		CleanupPackages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "removed_packages_total",
			Help:      "Packages whose entries were removed by the sweep.",
		}),
		CleanupEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "removed_entries_total",
			Help:      "Entries removed by the sweep.",
		}),
	}

	reg.MustRegister(m.Runs, m.Writes, m.RunDuration, m.CleanupRuns, m.CleanupPackages, m.CleanupEntries)
	return m
}

// ObserveRun implements usecase.Recorder.
func (m *Metrics) ObserveRun(useCase string, outcome domain.Outcome, writes int, elapsed time.Duration) {
	m.Runs.WithLabelValues(useCase, string(outcome)).Inc()
	m.Writes.WithLabelValues(useCase).Add(float64(writes))
	m.RunDuration.WithLabelValues(useCase).Observe(elapsed.Seconds())
}

// ObserveCleanup implements usecase.CleanupRecorder.
func (m *Metrics) ObserveCleanup(removedPackages int, removedEntries int64) {
	m.CleanupRuns.Inc()
	m.CleanupPackages.Add(float64(removedPackages))
	m.CleanupEntries.Add(float64(removedEntries))
}

// NewRegistry returns a registry with the Go runtime and process collectors
// plus, when bus is non-nil, the bus counters.
func NewRegistry(bus *eventbus.Bus) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if bus != nil {
		reg.MustRegister(newBusCollector(bus))
	}
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
