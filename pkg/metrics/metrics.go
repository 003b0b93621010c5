package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every board in the process.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	StrokesCommitted  prometheus.Counter
	HistoryOps        *prometheus.CounterVec
	Resyncs           prometheus.Counter
	Rejected          *prometheus.CounterVec
	Evictions         prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "sketchsync_active_connections",
				Help: "Current number of connected drawing clients",
			}),
			StrokesCommitted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sketchsync_strokes_committed_total",
				Help: "Total number of strokes committed to a board history",
			}),
			HistoryOps: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sketchsync_history_ops_total",
				Help: "Undo and redo requests by outcome",
			}, []string{"op", "result"}),
			Resyncs: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sketchsync_history_resyncs_total",
				Help: "Total number of full history broadcasts",
			}),
			Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "sketchsync_rejected_messages_total",
				Help: "Inbound messages dropped before reaching a board",
			}, []string{"reason"}),
			Evictions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "sketchsync_evictions_total",
				Help: "Connections dropped because their outbound queue was full",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) RecordCommit() {
	if m == nil {
		return
	}
	m.StrokesCommitted.Inc()
}

func (m *Metrics) RecordHistoryOp(op string, applied bool) {
	if m == nil {
		return
	}
	result := "noop"
	if applied {
		result = "applied"
	}
	m.HistoryOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) RecordResync() {
	if m == nil {
		return
	}
	m.Resyncs.Inc()
}

func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordEviction() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}
