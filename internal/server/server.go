// Package server assembles the sample history, the download session and the
// GATT providers into a BLE peripheral driven over a pluggable Library.
package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/download"
	"github.com/srg/blehist/internal/feeder"
	"github.com/srg/blehist/internal/history"
	"github.com/srg/blehist/internal/metrics"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
)

// Options configures a Server.
type Options struct {
	DataType     sample.DataType
	HistoryBytes int
	Interval     time.Duration
	Clock        feeder.Clock
	Metrics      *metrics.Metrics
}

// Server is the BLE peripheral: it owns the live sample, the history and
// its download service, the advertisement, and any extra providers.
type Server struct {
	mu        sync.Mutex
	lib       Library
	config    sample.Config
	download  *DownloadService
	advert    *Advertiser
	providers []ServiceProvider
	begun     bool
	logger    *logrus.Logger
}

// New creates a server for the configured data type.
func New(lib Library, opts *Options, logger *logrus.Logger) (*Server, error) {
	if opts == nil {
		opts = &Options{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	dataType := opts.DataType
	if dataType == "" {
		dataType = sample.DefaultDataType
	}
	cfg, err := sample.Lookup(dataType)
	if err != nil {
		return nil, err
	}

	return &Server{
		lib:    lib,
		config: cfg,
		download: NewDownloadService(cfg, &DownloadOptions{
			HistoryBytes: opts.HistoryBytes,
			Interval:     opts.Interval,
			Clock:        opts.Clock,
			Metrics:      opts.Metrics,
		}, logger),
		advert: NewAdvertiser(lib, cfg, logger),
		logger: logger,
	}, nil
}

// RegisterProvider adds a service provider. Providers must be registered
// before Begin.
func (s *Server) RegisterProvider(p ServiceProvider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.begun {
		return ErrAlreadyBegun
	}
	s.providers = append(s.providers, p)
	return nil
}

// Begin creates all services and starts advertising.
func (s *Server) Begin() error {
	s.mu.Lock()
	if s.begun {
		s.mu.Unlock()
		return ErrAlreadyBegun
	}
	s.begun = true
	providers := append([]ServiceProvider{}, s.providers...)
	s.mu.Unlock()

	s.lib.SetProviderCallbacks(s)

	if err := s.download.Begin(s.lib); err != nil {
		return err
	}
	for _, p := range providers {
		if err := p.Begin(s.lib); err != nil {
			return fmt.Errorf("failed to start provider %T: %w", p, err)
		}
	}
	if err := s.advert.Begin(); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"device_id": s.DeviceID(),
		"data_type": s.Config().DataType,
		"providers": len(providers),
	}).Info("BLE server started")
	return nil
}

// Config returns the active sample configuration.
func (s *Server) Config() sample.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetSampleConfig switches to another data type. History is discarded.
func (s *Server) SetSampleConfig(dataType sample.DataType) error {
	cfg, err := sample.Lookup(dataType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.advert.SetSampleConfig(cfg)
	s.download.SetSampleConfig(cfg)
	return nil
}

// WriteValue stores a reading in the current sample. NaN values and
// signals outside the configuration are dropped.
func (s *Server) WriteValue(value float32, sig sample.SignalType) bool {
	return s.download.WriteValue(value, sig)
}

// CommitSample advertises the current sample and archives it when the
// history interval has elapsed.
func (s *Server) CommitSample() (bool, error) {
	current := s.download.CurrentSample()
	if err := s.advert.Commit(current); err != nil {
		s.logger.WithError(err).Warn("Failed to update advertisement")
	}

	archived, err := s.download.Commit()
	if err != nil && !errors.Is(err, history.ErrReadOutActive) {
		return false, fmt.Errorf("failed to archive sample: %w", err)
	}
	return archived, err
}

// HandleDownload drives the download by one step.
func (s *Server) HandleDownload() (download.Status, error) {
	return s.download.HandleDownload()
}

// IsDownloading reports whether a download session is in progress.
func (s *Server) IsDownloading() bool {
	return s.download.IsDownloading()
}

// SamplesAvailable returns the number of archived samples.
func (s *Server) SamplesAvailable() uint32 {
	return s.download.SamplesAvailable()
}

// Download returns the built-in download service.
func (s *Server) Download() *DownloadService {
	return s.download
}

// DeviceID returns the short device id shown to users, e.g. "EE:FF".
func (s *Server) DeviceID() string {
	return protocol.DeviceIDString(s.advert.DeviceID())
}

// HasConnectedCentrals reports whether any central is connected.
func (s *Server) HasConnectedCentrals() bool {
	return s.lib.HasConnectedCentrals()
}

// OnConnect fans the event out to the download service and providers.
func (s *Server) OnConnect() {
	s.logger.Debug("Central connected")
	s.download.OnConnect()
	for _, p := range s.snapshotProviders() {
		p.OnConnect()
	}
}

// OnDisconnect fans the event out to the download service and providers.
func (s *Server) OnDisconnect() {
	s.logger.Debug("Central disconnected")
	s.download.OnDisconnect()
	for _, p := range s.snapshotProviders() {
		p.OnDisconnect()
	}
}

// OnSubscribe fans the event out to the download service and providers.
func (s *Server) OnSubscribe(uuid string, value uint16) {
	s.logger.WithFields(logrus.Fields{
		"uuid":  uuid,
		"value": value,
	}).Debug("Subscription changed")
	s.download.OnSubscribe(uuid, value)
	for _, p := range s.snapshotProviders() {
		p.OnSubscribe(uuid, value)
	}
}

func (s *Server) snapshotProviders() []ServiceProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ServiceProvider{}, s.providers...)
}
