package server

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/download"
	"github.com/srg/blehist/internal/feeder"
	"github.com/srg/blehist/internal/history"
	"github.com/srg/blehist/internal/metrics"
	"github.com/srg/blehist/internal/sample"
)

// Download service GATT layout.
const (
	DownloadServiceUUID  = "00008000-b38d-4985-720e-0f993a68ee41"
	HistoryIntervalUUID  = "00008001-b38d-4985-720e-0f993a68ee41" // R/W, u32 LE milliseconds
	NumberOfSamplesUUID  = "00008002-b38d-4985-720e-0f993a68ee41" // R, u32 LE
	RequestedSamplesUUID = "00008003-b38d-4985-720e-0f993a68ee41" // W, u32 LE, 0 = all
	DownloadPacketUUID   = "00008004-b38d-4985-720e-0f993a68ee41" // notify, header then packets
)

// DownloadOptions configures a DownloadService.
type DownloadOptions struct {
	HistoryBytes int
	Interval     time.Duration
	Clock        feeder.Clock
	Metrics      *metrics.Metrics
}

// DownloadService owns the sample history and serves it over the download
// characteristics.
//
// Every entry point takes the same mutex: the stack delivers writes and
// connection events on its own goroutines while the owner drives Commit and
// HandleDownload from its loop.
type DownloadService struct {
	mu sync.Mutex

	lib     ServiceLibrary
	history *history.RingBuffer
	feeder  *feeder.Feeder
	machine *download.Machine
	metrics *metrics.Metrics
	logger  *logrus.Logger

	packetKey string
}

// NewDownloadService creates a download service for cfg.
func NewDownloadService(cfg sample.Config, opts *DownloadOptions, logger *logrus.Logger) *DownloadService {
	if opts == nil {
		opts = &DownloadOptions{}
	}
	if logger == nil {
		logger = logrus.New()
	}

	s := &DownloadService{
		history:   history.NewRingBuffer(opts.HistoryBytes),
		metrics:   opts.Metrics,
		logger:    logger,
		packetKey: NormalizeUUID(DownloadPacketUUID),
	}

	feederOpts := feeder.DefaultOptions()
	if opts.Interval > 0 {
		feederOpts.Interval = opts.Interval
	}
	if opts.Clock != nil {
		feederOpts.Clock = opts.Clock
	}
	s.feeder = feeder.New(s.history, cfg, feederOpts, logger)
	s.machine = download.NewMachine(s.history, s.feeder, download.FrameSinkFunc(s.deliverFrame), cfg, logger)
	return s
}

// History exposes the ring buffer for instrumentation.
func (s *DownloadService) History() *history.RingBuffer {
	return s.history
}

// Begin creates the download service and registers write handlers.
func (s *DownloadService) Begin(lib ServiceLibrary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := lib.CreateService(DownloadServiceUUID); err != nil {
		return fmt.Errorf("failed to create download service: %w", err)
	}

	chars := []struct {
		uuid  string
		perm  Permission
		value []byte
	}{
		{NumberOfSamplesUUID, PermRead, encodeUint32(s.history.Count())},
		{RequestedSamplesUUID, PermWrite, nil},
		{HistoryIntervalUUID, PermReadWrite, encodeUint32(durationMs(s.feeder.HistoryInterval()))},
		{DownloadPacketUUID, PermNotify, nil},
	}
	for _, c := range chars {
		if err := lib.CreateCharacteristic(DownloadServiceUUID, c.uuid, c.perm); err != nil {
			return fmt.Errorf("failed to create characteristic %s: %w", c.uuid, err)
		}
		if c.value != nil {
			if err := lib.SetValue(c.uuid, c.value); err != nil {
				return fmt.Errorf("failed to set characteristic %s: %w", c.uuid, err)
			}
		}
	}

	if err := lib.OnWrite(HistoryIntervalUUID, func(value []byte) {
		ms, err := decodeUint32(value)
		if err != nil {
			s.logger.WithError(err).Warn("Ignoring history interval write")
			return
		}
		s.OnHistoryIntervalChanged(ms)
	}); err != nil {
		return err
	}
	if err := lib.OnWrite(RequestedSamplesUUID, func(value []byte) {
		n, err := decodeUint32(value)
		if err != nil {
			s.logger.WithError(err).Warn("Ignoring requested samples write")
			return
		}
		s.OnSamplesRequested(n)
	}); err != nil {
		return err
	}

	if err := lib.StartService(DownloadServiceUUID); err != nil {
		return fmt.Errorf("failed to start download service: %w", err)
	}

	s.lib = lib
	return nil
}

// OnConnect resets any session left over from a previous central.
func (s *DownloadService) OnConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked("connect")
	if s.metrics != nil {
		s.metrics.ConnectedCentrals.Inc()
	}
}

// OnDisconnect aborts the running session; downloads never resume.
func (s *DownloadService) OnDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked("disconnect")
	if s.metrics != nil {
		s.metrics.ConnectedCentrals.Dec()
	}
}

// OnSubscribe starts a download when the central enables notifications on
// the packet characteristic. Disabling them aborts a running download and
// closes the history read-out; a later subscribe starts over from the header.
// Transports must report both transitions (1 on subscribe, 0 on unsubscribe).
func (s *DownloadService) OnSubscribe(uuid string, value uint16) {
	if NormalizeUUID(uuid) != s.packetKey {
		return
	}

	switch value {
	case 1:
		s.OnDownloadStart(nil)
	case 0:
		s.mu.Lock()
		s.abortLocked("unsubscribe")
		s.mu.Unlock()
	}
}

// OnDownloadStart arms a new download session. A non-nil requested count
// overrides the last value written to the requested samples characteristic.
func (s *DownloadService) OnDownloadStart(requested *uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if requested != nil {
		s.machine.Request(*requested)
	}
	if s.machine.IsDownloading() && s.metrics != nil {
		s.metrics.DownloadsAborted.Inc()
	}
	s.machine.Start()

	if s.metrics != nil {
		s.metrics.DownloadsStarted.Inc()
	}
	s.logger.WithField("requested", s.machine.Progress().SamplesRequested).Debug("Download requested")
}

// OnSamplesRequested records how many recent samples the next download sends.
func (s *DownloadService) OnSamplesRequested(n uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.machine.Request(n)
	s.logger.WithField("requested", n).Debug("Requested sample count updated")
}

// OnHistoryIntervalChanged applies a new history interval. The history is
// cleared and any running download is aborted.
func (s *DownloadService) OnHistoryIntervalChanged(ms uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked("history interval changed")
	s.feeder.SetInterval(time.Duration(ms) * time.Millisecond)

	if s.lib != nil {
		if err := s.lib.SetValue(HistoryIntervalUUID, encodeUint32(ms)); err != nil {
			s.logger.WithError(err).Warn("Failed to update history interval characteristic")
		}
	}
	s.publishCountLocked()
}

// WriteValue stores a reading in the in-progress sample.
func (s *DownloadService) WriteValue(value float32, sig sample.SignalType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.feeder.WriteValue(value, sig)
	if !ok && s.metrics != nil {
		s.metrics.ReadingsRejected.Inc()
	}
	return ok
}

// CurrentSample returns a copy of the in-progress sample.
func (s *DownloadService) CurrentSample() sample.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeder.CurrentSample()
}

// Commit archives the in-progress sample when the history interval has
// elapsed. While a download is reading the history the sample is deferred.
func (s *DownloadService) Commit() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived, err := s.feeder.Commit(s.feeder.Now())
	if err != nil {
		if s.metrics != nil {
			s.metrics.ArchiveDeferred.Inc()
		}
		return false, err
	}
	if !archived {
		return false, nil
	}

	if s.metrics != nil {
		s.metrics.SamplesArchived.Inc()
	}
	if !s.machine.IsDownloading() {
		s.publishCountLocked()
	}
	return true, nil
}

// HandleDownload drives the download session by one step.
func (s *DownloadService) HandleDownload() (download.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.machine.Drive()
	if s.metrics != nil {
		switch status {
		case download.StatusHeader:
			s.metrics.FramesSent.WithLabelValues(metrics.FrameHeader).Inc()
		case download.StatusPacket:
			s.metrics.FramesSent.WithLabelValues(metrics.FramePacket).Inc()
		case download.StatusCompleted:
			s.metrics.DownloadsCompleted.Inc()
		}
		if err != nil {
			s.metrics.FrameErrors.Inc()
		}
	}
	if status == download.StatusCompleted {
		s.publishCountLocked()
	}
	return status, err
}

// IsDownloading reports whether a session is in progress.
func (s *DownloadService) IsDownloading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.IsDownloading()
}

// Progress returns a snapshot of the session counters.
func (s *DownloadService) Progress() download.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Progress()
}

// SamplesAvailable returns the number of archived samples.
func (s *DownloadService) SamplesAvailable() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Count()
}

// HistoryInterval returns the current history interval.
func (s *DownloadService) HistoryInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeder.HistoryInterval()
}

// SetSampleConfig switches the sample layout. History and any running
// download are discarded.
func (s *DownloadService) SetSampleConfig(cfg sample.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.abortLocked("sample config changed")
	s.machine.SetConfig(cfg)
	s.feeder.SetConfig(cfg)
	s.publishCountLocked()

	s.logger.WithFields(logrus.Fields{
		"data_type":   cfg.DataType,
		"sample_size": cfg.SampleSizeBytes,
		"per_packet":  cfg.SampleCountPerPacket,
		"slots":       s.history.Slots(),
	}).Info("Sample configuration applied")
}

func (s *DownloadService) deliverFrame(frame []byte) error {
	if s.lib == nil {
		return fmt.Errorf("download service not started")
	}
	if err := s.lib.SetValue(DownloadPacketUUID, frame); err != nil {
		return err
	}
	return s.lib.Notify(DownloadPacketUUID)
}

func (s *DownloadService) abortLocked(reason string) {
	if s.machine.IsDownloading() {
		s.logger.WithFields(logrus.Fields{
			"reason":   reason,
			"sequence": s.machine.Progress().Sequence,
		}).Info("Download aborted")
		if s.metrics != nil {
			s.metrics.DownloadsAborted.Inc()
		}
	}
	s.machine.Reset()
}

func (s *DownloadService) publishCountLocked() {
	count := s.history.Count()
	if s.metrics != nil {
		s.metrics.SamplesAvailable.Set(float64(count))
	}
	if s.lib == nil {
		return
	}
	if err := s.lib.SetValue(NumberOfSamplesUUID, encodeUint32(count)); err != nil {
		s.logger.WithError(err).Warn("Failed to update number of samples characteristic")
	}
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, got %d", ErrInvalidValueSize, len(b))
	}
	return binary.LittleEndian.Uint32(b), nil
}

func durationMs(d time.Duration) uint32 {
	return uint32(d.Milliseconds())
}
