package server

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/download"
	"github.com/srg/blehist/internal/history"
)

// Default loop timing.
const (
	DefaultCommitInterval = time.Second
	DefaultDriveInterval  = 20 * time.Millisecond
)

// MeasureFunc writes fresh readings into the server before each commit.
type MeasureFunc func(s *Server)

// RunOptions configures the cooperative loop.
type RunOptions struct {
	Measure        MeasureFunc
	CommitInterval time.Duration
	DriveInterval  time.Duration
}

// Run drives measurement commits and download ticks until ctx is done.
// While a download is in progress it is stepped on every drive tick;
// the returned error is ctx.Err().
func (s *Server) Run(ctx context.Context, opts RunOptions) error {
	if opts.CommitInterval <= 0 {
		opts.CommitInterval = DefaultCommitInterval
	}
	if opts.DriveInterval <= 0 {
		opts.DriveInterval = DefaultDriveInterval
	}

	commitTicker := time.NewTicker(opts.CommitInterval)
	defer commitTicker.Stop()
	driveTicker := time.NewTicker(opts.DriveInterval)
	defer driveTicker.Stop()

	s.logger.WithFields(logrus.Fields{
		"commit_interval": opts.CommitInterval,
		"drive_interval":  opts.DriveInterval,
	}).Debug("Server loop started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Server loop stopped")
			return ctx.Err()

		case <-commitTicker.C:
			s.tickCommit(opts.Measure)

		case <-driveTicker.C:
			s.tickDrive()
		}
	}
}

func (s *Server) tickCommit(measure MeasureFunc) {
	if measure != nil {
		measure(s)
	}
	if _, err := s.CommitSample(); err != nil && !errors.Is(err, history.ErrReadOutActive) {
		s.logger.WithError(err).Warn("Commit failed")
	}
}

func (s *Server) tickDrive() {
	status, err := s.HandleDownload()
	if err != nil {
		s.logger.WithError(err).Debug("Download frame not delivered")
	}
	if status == download.StatusCompleted {
		s.logger.WithField("samples", s.SamplesAvailable()).Info("Download completed")
	}
}
