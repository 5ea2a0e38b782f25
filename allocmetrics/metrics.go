// Package allocmetrics exports framealloc allocator statistics to Prometheus.
package allocmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pavanmanishd/framealloc"
)

// Metrics holds the gauges and counters for a set of named allocators.
// Observe is meant to be called from the loop that owns the allocators, at
// the frame boundary, so no allocator is read concurrently.
type Metrics struct {
	capacity    *prometheus.GaugeVec
	inUse       *prometheus.GaugeVec
	peak        *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	allocations *prometheus.CounterVec
	failures    *prometheus.CounterVec

	lastAllocs map[string]uint64
}

// NewMetrics registers the allocator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		capacity: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "framealloc_capacity_bytes",
			Help: "Size of the allocator's backing region.",
		}, []string{"allocator"}),
		inUse: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "framealloc_in_use_bytes",
			Help: "Bytes handed out at the last observation, including alignment padding.",
		}, []string{"allocator"}),
		peak: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "framealloc_peak_bytes",
			Help: "High-water mark of bytes in use.",
		}, []string{"allocator"}),
		utilization: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "framealloc_utilization_ratio",
			Help: "Ratio of bytes in use to capacity.",
		}, []string{"allocator"}),
		allocations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "framealloc_allocations_total",
			Help: "Successful allocations.",
		}, []string{"allocator"}),
		failures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "framealloc_allocation_failures_total",
			Help: "Allocations that returned the null block.",
		}, []string{"allocator"}),
		lastAllocs: make(map[string]uint64),
	}
}

// Observe records a snapshot for the allocator called name.
func (m *Metrics) Observe(name string, s framealloc.Stats) {
	m.capacity.WithLabelValues(name).Set(float64(s.Capacity))
	m.inUse.WithLabelValues(name).Set(float64(s.InUse))
	m.peak.WithLabelValues(name).Set(float64(s.Peak))
	m.utilization.WithLabelValues(name).Set(s.Utilization)

	// Stats carry running totals; the counter only takes the increase.
	// A smaller total means the allocator was replaced.
	last := m.lastAllocs[name]
	if s.Allocations >= last {
		m.allocations.WithLabelValues(name).Add(float64(s.Allocations - last))
	} else {
		m.allocations.WithLabelValues(name).Add(float64(s.Allocations))
	}
	m.lastAllocs[name] = s.Allocations
}

// ObserveReporter records r's current statistics under name.
func (m *Metrics) ObserveReporter(name string, r framealloc.StatsReporter) {
	m.Observe(name, r.Stats())
}

// Failed counts n allocations on name that returned the null block.
func (m *Metrics) Failed(name string, n int) {
	if n <= 0 {
		return
	}
	m.failures.WithLabelValues(name).Add(float64(n))
}
