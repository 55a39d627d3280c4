package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hodwatch"

// Metrics holds every collector exported by hodwatch processes. A process
// only moves the collectors its components touch; the rest stay at zero.
type Metrics struct {
	// Scheduler
	TaskDuration *prometheus.HistogramVec // task
	TaskErrors   *prometheus.CounterVec   // task

	// Snapshot ingestor
	SnapshotRows *prometheus.CounterVec // outcome: upserted, failed, invalid, outside_universe

	// Metadata ingestor
	MetadataRows *prometheus.CounterVec // outcome: upserted, failed, missing

	// Trade streamer
	StreamState    prometheus.Gauge
	TradesApplied  prometheus.Counter
	TradesRejected prometheus.Counter
	Reconnects     prometheus.Counter
	StaleWarnings  prometheus.Counter

	// Scanner
	Alerts         prometheus.Counter
	HighWaterMarks prometheus.Gauge
	SeededMarks    prometheus.Gauge

	StoreErrors *prometheus.CounterVec // op
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests and one-off tools want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled task runs",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"task"}),
		TaskErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_errors_total",
			Help:      "Scheduled task runs that returned an error",
		}, []string{"task"}),
		SnapshotRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "rows_total",
			Help:      "Snapshot rows by outcome",
		}, []string{"outcome"}),
		MetadataRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "rows_total",
			Help:      "Reference rows by outcome",
		}, []string{"outcome"}),
		StreamState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Current streamer state (0=disconnected .. 6=shutting_down)",
		}),
		TradesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_applied_total",
			Help:      "Trades written to market_data",
		}),
		TradesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "trades_rejected_total",
			Help:      "Trades received before the subscription was confirmed",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Reconnection attempts scheduled",
		}),
		StaleWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "stale_warnings_total",
			Help:      "Watchdog warnings for a silent stream",
		}),
		Alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "alerts_total",
			Help:      "HOD alerts raised",
		}),
		HighWaterMarks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "high_water_marks",
			Help:      "Tickers with an in-memory last alerted high",
		}),
		SeededMarks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "seeded_marks",
			Help:      "Marks seeded from stored alerts at startup",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Store operations that failed",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TaskDuration,
		m.TaskErrors,
		m.SnapshotRows,
		m.MetadataRows,
		m.StreamState,
		m.TradesApplied,
		m.TradesRejected,
		m.Reconnects,
		m.StaleWarnings,
		m.Alerts,
		m.HighWaterMarks,
		m.SeededMarks,
		m.StoreErrors,
	}
}
