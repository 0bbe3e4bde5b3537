// Package metrics exposes purge cycle counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/purgelogs/internal/event"
	"github.com/ppiankov/purgelogs/internal/purge"
)

const namespace = "purgelogs"

// Metrics records per-job-directory outcomes and per-cycle results.
// It implements event.Sink so it can be attached to the engine directly.
type Metrics struct {
	registry *prometheus.Registry

	jobDirs            *prometheus.CounterVec
	cycles             *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	protectedBuildsets prometheus.Gauge
	lastCycle          prometheus.Gauge

	mu            sync.Mutex
	lastCycleAt   time.Time
	lastCycleErr  string
	protectedSeen int
}

// New registers the purge metrics on registry.
// If registry is nil, a fresh one is created.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		jobDirs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_dirs_total",
			Help:      "Job directories visited by the purge walk, by outcome.",
		}, []string{"outcome"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed purge cycles, by result.",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a purge cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
		protectedBuildsets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "protected_buildsets",
			Help:      "Buildsets protected by the most recent cycle.",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the most recent cycle finished.",
		}),
	}

	registry.MustRegister(m.jobDirs, m.cycles, m.cycleDuration, m.protectedBuildsets, m.lastCycle)
	return m
}

// Emit implements event.Sink.
func (m *Metrics) Emit(e event.Event) {
	switch e.Kind {
	case event.KindDeleted, event.KindWouldDelete, event.KindProtected,
		event.KindKept, event.KindVanished, event.KindSkippedRoot, event.KindUnreadable:
		m.jobDirs.WithLabelValues(e.Kind.String()).Inc()
	case event.KindBuildsetProtected:
		m.mu.Lock()
		m.protectedSeen++
		m.mu.Unlock()
	}
}

// ObserveCycle records the end of a cycle.
func (m *Metrics) ObserveCycle(res *purge.Result, err error, finished time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.cycles.WithLabelValues(result).Inc()
	if res != nil {
		m.cycleDuration.Observe(res.Duration.Seconds())
	}
	m.lastCycle.Set(float64(finished.Unix()))

	m.mu.Lock()
	m.protectedBuildsets.Set(float64(m.protectedSeen))
	m.protectedSeen = 0
	m.lastCycleAt = finished
	m.lastCycleErr = ""
	if err != nil {
		m.lastCycleErr = err.Error()
	}
	m.mu.Unlock()
}

// LastCycle returns when the most recent cycle finished and its error text.
func (m *Metrics) LastCycle() (time.Time, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCycleAt, m.lastCycleErr
}

// Handler returns an HTTP handler for the Prometheus scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
