package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

func TestNewMetrics_Registration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)
	m.FramesSent.WithLabelValues(FrameHeader)

	for _, name := range []string{
		"blehist_samples_archived_total",
		"blehist_archive_deferred_total",
		"blehist_readings_rejected_total",
		"blehist_samples_available",
		"blehist_connected_centrals",
		"blehist_downloads_started_total",
		"blehist_downloads_completed_total",
		"blehist_downloads_aborted_total",
		"blehist_frames_sent_total",
		"blehist_frame_errors_total",
		"blehist_history_overwritten_total",
	} {
		assert.NotNil(t, gatherMetric(t, reg, name), "metric %q MUST be registered", name)
	}
}

func TestMetrics_Values(t *testing.T) {
	reg := prometheus.NewRegistry()
	evicted := 0.0
	m := NewMetrics(reg, func() float64 { return evicted })

	m.SamplesArchived.Add(3)
	m.SamplesAvailable.Set(42)
	m.FramesSent.WithLabelValues(FramePacket).Add(5)
	evicted = 7

	assert.Equal(t, 3.0, gatherMetric(t, reg, "blehist_samples_archived_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 42.0, gatherMetric(t, reg, "blehist_samples_available").GetMetric()[0].GetGauge().GetValue())

	frames := gatherMetric(t, reg, "blehist_frames_sent_total").GetMetric()
	require.Len(t, frames, 1)
	assert.Equal(t, FramePacket, frames[0].GetLabel()[0].GetValue())
	assert.Equal(t, 5.0, frames[0].GetCounter().GetValue())

	assert.Equal(t, 7.0, gatherMetric(t, reg, "blehist_history_overwritten_total").GetMetric()[0].GetCounter().GetValue(),
		"overwritten count MUST be read from the history at scrape time")
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, nil)
	assert.Panics(t, func() { NewMetrics(reg, nil) })
}
