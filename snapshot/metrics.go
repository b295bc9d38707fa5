package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "icefiredb"
	subsystem = "snapshot"

	modeSync  = "sync"
	modeAsync = "async"
)

type Metrics struct {
	created  prometheus.Counter
	released prometheus.Counter
	live     prometheus.Gauge
	pending  prometheus.Gauge
	reads    *prometheus.CounterVec
}

// NewMetrics builds the snapshot collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "created_total",
			Help:      "Number of snapshots created.",
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "released_total",
			Help:      "Number of engine snapshot handles returned to the engine.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "live",
			Help:      "Number of snapshots that accept new reads.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_reads",
			Help:      "Number of in-flight snapshot reads.",
		}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reads_total",
			Help:      "Number of reads by mode and result.",
		}, []string{"mode", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.released, m.live, m.pending, m.reads)
	}
	return m
}

func (m *Metrics) observeRead(mode string, err error) {
	m.reads.WithLabelValues(mode, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case err == ErrKeyNotFound:
		return "not_found"
	case err == ErrSnapshotClosed:
		return "closed"
	case IsEngineError(err):
		return "engine_error"
	default:
		return "error"
	}
}
