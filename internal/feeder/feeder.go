// Package feeder decides which live readings are archived into the sample
// history, following the configured history interval.
package feeder

import (
	"errors"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/history"
	"github.com/srg/blehist/internal/sample"
)

// DefaultInterval is the history interval used until a central changes it.
const DefaultInterval = 10 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

// Options configures a Feeder.
type Options struct {
	Interval time.Duration
	Clock    Clock
}

// DefaultOptions returns default feeder options
func DefaultOptions() *Options {
	return &Options{
		Interval: DefaultInterval,
		Clock:    time.Now,
	}
}

// Feeder owns the in-progress sample and archives it into the history at
// most once per interval.
//
// Feeder is not safe for concurrent use; the owner serializes access
// together with the download session reading the same history.
type Feeder struct {
	history *history.RingBuffer
	config  sample.Config
	current sample.Sample

	interval     time.Duration
	clock        Clock
	lastArchived time.Time
	hasArchived  bool

	logger *logrus.Logger
}

// New creates a feeder writing into h and sizes h for cfg.
func New(h *history.RingBuffer, cfg sample.Config, opts *Options, logger *logrus.Logger) *Feeder {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	f := &Feeder{
		history:  h,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   logger,
	}
	if f.interval <= 0 {
		f.interval = DefaultInterval
	}
	if f.clock == nil {
		f.clock = time.Now
	}
	f.SetConfig(cfg)
	return f
}

// WriteValue encodes value into the current sample.
// NaN values and signals outside the active configuration are dropped.
func (f *Feeder) WriteValue(value float32, sig sample.SignalType) bool {
	if math.IsNaN(float64(value)) {
		f.logger.WithField("signal", sig).Debug("Dropping NaN reading")
		return false
	}
	raw, offset, ok := f.config.Encode(sig, value)
	if !ok {
		f.logger.WithFields(logrus.Fields{
			"signal":    sig,
			"data_type": f.config.DataType,
		}).Debug("Dropping reading for signal not in configuration")
		return false
	}
	f.current.WriteValue(raw, offset)
	return true
}

// Commit archives the current sample when at least one interval has elapsed
// since the previous archived sample. The first commit always archives.
//
// A write rejected because a download is reading the history leaves the
// timestamp untouched, so the next commit retries.
func (f *Feeder) Commit(now time.Time) (bool, error) {
	if f.hasArchived && now.Sub(f.lastArchived) < f.interval {
		return false, nil
	}

	if err := f.history.Put(f.current.Clone()); err != nil {
		if errors.Is(err, history.ErrReadOutActive) {
			f.logger.Debug("History busy with download, deferring archive")
		} else {
			f.logger.WithError(err).Warn("Failed to archive sample")
		}
		return false, err
	}

	f.lastArchived = now
	f.hasArchived = true

	f.logger.WithFields(logrus.Fields{
		"count": f.history.Count(),
	}).Debug("Sample archived")
	return true, nil
}

// SetInterval changes the history interval. Archived samples were taken at
// the old interval, so the history is cleared. The archive timestamp is
// cleared too: the next Commit archives immediately instead of waiting a
// full new interval, as does the first Commit after New.
func (f *Feeder) SetInterval(d time.Duration) {
	f.interval = d
	f.history.Reset()
	f.hasArchived = false
	f.lastArchived = time.Time{}

	f.logger.WithField("interval", d).Info("History interval changed, history cleared")
}

// SetConfig switches the sample layout. The current sample and the history
// are discarded.
func (f *Feeder) SetConfig(cfg sample.Config) {
	f.config = cfg
	f.current = sample.New(cfg.SampleSizeBytes)
	f.history.SetSampleSize(cfg.SampleSizeBytes)
	f.hasArchived = false
	f.lastArchived = time.Time{}
}

// Config returns the active sample configuration.
func (f *Feeder) Config() sample.Config {
	return f.config
}

// HistoryInterval returns the current history interval.
func (f *Feeder) HistoryInterval() time.Duration {
	return f.interval
}

// LatestSampleAge returns the time since the last archived sample, or zero
// when nothing has been archived yet.
func (f *Feeder) LatestSampleAge() time.Duration {
	if !f.hasArchived {
		return 0
	}
	age := f.clock().Sub(f.lastArchived)
	if age < 0 {
		return 0
	}
	return age
}

// CurrentSample returns a copy of the in-progress sample.
func (f *Feeder) CurrentSample() sample.Sample {
	return f.current.Clone()
}

// Now reads the feeder clock.
func (f *Feeder) Now() time.Time {
	return f.clock()
}
