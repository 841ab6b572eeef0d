package metric

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "snapkeep"

// Save outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDiscarded = "discarded"
	OutcomeError     = "error"
)

// Metrics holds the store metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	saves          *prometheus.CounterVec
	culled         prometheus.Counter
	snapshotBytes  prometheus.Gauge
	historyEntries prometheus.Gauge
	saveDuration   prometheus.Histogram
}

// New creates metrics on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics and registers them on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Save attempts by outcome.",
		}, []string{"outcome"}),
		culled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "culled_total",
			Help:      "Retained snapshots evicted by the retention policy.",
		}),
		snapshotBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes",
			Help:      "Size of the most recently written snapshot file.",
		}),
		historyEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_entries",
			Help:      "Number of retained snapshots after the last save.",
		}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Duration of save calls.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	reg.MustRegister(m.saves, m.culled, m.snapshotBytes, m.historyEntries, m.saveDuration)
	for _, outcome := range []string{OutcomeAccepted, OutcomeDiscarded, OutcomeError} {
		m.saves.WithLabelValues(outcome)
	}
	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSave counts one save attempt and its duration.
func (m *Metrics) ObserveSave(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
	m.saveDuration.Observe(d.Seconds())
}

// ObserveCulled counts evicted snapshots.
func (m *Metrics) ObserveCulled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.culled.Add(float64(n))
}

// SetSnapshotBytes records the size of the last written snapshot.
func (m *Metrics) SetSnapshotBytes(n int64) {
	if m == nil {
		return
	}
	m.snapshotBytes.Set(float64(n))
}

// SetHistoryEntries records the retained history length.
func (m *Metrics) SetHistoryEntries(n int) {
	if m == nil {
		return
	}
	m.historyEntries.Set(float64(n))
}

// WriteText writes every metric of the registry in the Prometheus text
// format.
func (m *Metrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	return WriteRegistry(w, m.registry)
}

// WriteRegistry writes all metric families gathered from g in the
// Prometheus text format.
func WriteRegistry(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("metric: gather: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metric: encode %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		return closer.Close()
	}
	return nil
}
