// Package metrics exposes Prometheus instrumentation for the history server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Frame kinds used as the "kind" label.
const (
	FrameHeader = "header"
	FramePacket = "packet"
)

// Metrics holds all Prometheus metrics for the history server.
type Metrics struct {
	SamplesArchived    prometheus.Counter
	ArchiveDeferred    prometheus.Counter
	ReadingsRejected   prometheus.Counter
	SamplesAvailable   prometheus.Gauge
	ConnectedCentrals  prometheus.Gauge
	DownloadsStarted   prometheus.Counter
	DownloadsCompleted prometheus.Counter
	DownloadsAborted   prometheus.Counter
	FramesSent         *prometheus.CounterVec
	FrameErrors        prometheus.Counter
	HistoryOverwritten prometheus.CounterFunc
}

// HistoryStats reports the cumulative eviction count of the history buffer.
type HistoryStats func() float64

// NewMetrics creates and registers all server metrics.
// overwritten may be nil when no history is attached yet.
func NewMetrics(reg prometheus.Registerer, overwritten HistoryStats) *Metrics {
	if overwritten == nil {
		overwritten = func() float64 { return 0 }
	}
	m := &Metrics{
		SamplesArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_samples_archived_total",
			Help: "Total samples written into the history",
		}),
		ArchiveDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_archive_deferred_total",
			Help: "Total archive attempts deferred because a download was reading the history",
		}),
		ReadingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_readings_rejected_total",
			Help: "Total sensor readings dropped (NaN or signal not in configuration)",
		}),
		SamplesAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blehist_samples_available",
			Help: "Samples currently held in the history",
		}),
		ConnectedCentrals: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blehist_connected_centrals",
			Help: "Currently connected centrals",
		}),
		DownloadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_downloads_started_total",
			Help: "Total download sessions started",
		}),
		DownloadsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_downloads_completed_total",
			Help: "Total download sessions that delivered every packet",
		}),
		DownloadsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_downloads_aborted_total",
			Help: "Total download sessions reset before completion",
		}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blehist_frames_sent_total",
			Help: "Total download frames handed to the transport by kind",
		}, []string{"kind"}),
		FrameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blehist_frame_errors_total",
			Help: "Total download frames the transport failed to deliver",
		}),
		HistoryOverwritten: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "blehist_history_overwritten_total",
			Help: "Total samples evicted from a full history",
		}, overwritten),
	}
	reg.MustRegister(
		m.SamplesArchived,
		m.ArchiveDeferred,
		m.ReadingsRejected,
		m.SamplesAvailable,
		m.ConnectedCentrals,
		m.DownloadsStarted,
		m.DownloadsCompleted,
		m.DownloadsAborted,
		m.FramesSent,
		m.FrameErrors,
		m.HistoryOverwritten,
	)
	return m
}
