// Package download implements the pull-driven state machine that turns a
// download request into a header frame followed by sample packets.
package download

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
)

// State is the lifecycle state of a download session.
type State int

const (
	Inactive State = iota
	Start
	Downloading
	Completed
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Start:
		return "start"
	case Downloading:
		return "downloading"
	case Completed:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status reports what a single Drive call did.
type Status int

const (
	// StatusIdle means no download is active and nothing was emitted.
	StatusIdle Status = iota
	// StatusHeader means the header frame was emitted.
	StatusHeader
	// StatusPacket means a data packet was emitted.
	StatusPacket
	// StatusCompleted means the finished session was cleared; nothing was emitted.
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusHeader:
		return "header"
	case StatusPacket:
		return "packet"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MaxSamplesPerDownload is the largest count the 16-bit header field can
// announce. Larger histories send their most recent samples only.
const MaxSamplesPerDownload = math.MaxUint16

// History is the read side of the sample ring buffer used by a download.
type History interface {
	Count() uint32
	StartReadOut(n uint32) uint32
	ReadNext() (sample.Sample, bool)
	EndReadOut()
}

// HeaderSource provides the timing metadata placed in the download header.
type HeaderSource interface {
	HistoryInterval() time.Duration
	LatestSampleAge() time.Duration
}

// FrameSink delivers an encoded frame to the transport.
type FrameSink interface {
	DeliverFrame(frame []byte) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(frame []byte) error

func (f FrameSinkFunc) DeliverFrame(frame []byte) error {
	return f(frame)
}

// Progress is a snapshot of the session counters.
type Progress struct {
	State             State
	Sequence          uint16
	SamplesRequested  uint32
	SamplesToDownload uint32
	PacketsToDownload uint32
}

// Machine drives a single in-flight download.
//
// It never blocks or spawns goroutines: the owner calls Drive once per
// transport readiness tick. Machine is not safe for concurrent use.
type Machine struct {
	history History
	source  HeaderSource
	sink    FrameSink
	config  sample.Config
	logger  *logrus.Logger

	state             State
	sequence          uint16 // header is sequence 0
	samplesRequested  uint32
	samplesToDownload uint32
	packetsToDownload uint32
}

// NewMachine creates an idle machine.
func NewMachine(history History, source HeaderSource, sink FrameSink, cfg sample.Config, logger *logrus.Logger) *Machine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Machine{
		history: history,
		source:  source,
		sink:    sink,
		config:  cfg,
		logger:  logger,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// IsDownloading reports whether a session is in progress.
func (m *Machine) IsDownloading() bool {
	return m.state != Inactive
}

// Progress returns the current session counters.
func (m *Machine) Progress() Progress {
	return Progress{
		State:             m.state,
		Sequence:          m.sequence,
		SamplesRequested:  m.samplesRequested,
		SamplesToDownload: m.samplesToDownload,
		PacketsToDownload: m.packetsToDownload,
	}
}

// Request records how many of the most recent samples the central wants.
// Zero means everything available.
func (m *Machine) Request(n uint32) {
	m.samplesRequested = n
}

// Start arms a new session; the header goes out on the next Drive.
// A session already in flight is abandoned and restarted from the header.
func (m *Machine) Start() {
	if m.state != Inactive {
		m.logger.WithFields(logrus.Fields{
			"state":    m.state,
			"sequence": m.sequence,
		}).Debug("Restarting download session")
		m.history.EndReadOut()
	}
	m.sequence = 0
	m.samplesToDownload = 0
	m.packetsToDownload = 0
	m.state = Start
}

// Reset forces the machine back to Inactive. Used on connect and disconnect:
// a download never survives a connection boundary.
func (m *Machine) Reset() {
	if m.state != Inactive {
		m.logger.WithFields(logrus.Fields{
			"state":    m.state,
			"sequence": m.sequence,
		}).Debug("Download session aborted")
	}
	m.history.EndReadOut()
	m.clear()
}

// SetConfig swaps the sample configuration and aborts any session.
func (m *Machine) SetConfig(cfg sample.Config) {
	m.Reset()
	m.config = cfg
}

// Drive advances the session by one step.
//
// Sink errors are returned wrapped, but the session still advances: frame
// delivery is the transport's responsibility.
func (m *Machine) Drive() (Status, error) {
	switch m.state {
	case Inactive:
		return StatusIdle, nil

	case Completed:
		m.history.EndReadOut()
		m.clear()
		m.logger.Debug("Download session completed")
		return StatusCompleted, nil

	case Start:
		available := m.history.Count()
		if m.samplesRequested > 0 && m.samplesRequested < available {
			m.samplesToDownload = m.samplesRequested
		} else {
			m.samplesToDownload = available
		}
		if m.samplesToDownload > MaxSamplesPerDownload {
			m.samplesToDownload = MaxSamplesPerDownload
		}
		m.packetsToDownload = protocol.PacketsRequired(m.samplesToDownload, uint32(m.config.SampleCountPerPacket))

		frame := protocol.EncodeHeader(m.buildHeader())
		err := m.emit(frame)

		m.state = Downloading
		m.history.StartReadOut(m.samplesToDownload)

		m.logger.WithFields(logrus.Fields{
			"requested": m.samplesRequested,
			"available": available,
			"samples":   m.samplesToDownload,
			"packets":   m.packetsToDownload,
		}).Info("Download started")

		m.advance()
		return StatusHeader, err

	case Downloading:
		frame := m.buildPacket()
		err := m.emit(frame)
		m.advance()
		return StatusPacket, err

	default:
		return StatusIdle, fmt.Errorf("invalid download state %v", m.state)
	}
}

func (m *Machine) advance() {
	m.sequence++
	if uint32(m.sequence) >= m.packetsToDownload+1 {
		m.state = Completed
	}
}

func (m *Machine) emit(frame []byte) error {
	if m.sink == nil {
		return nil
	}
	if err := m.sink.DeliverFrame(frame); err != nil {
		m.logger.WithFields(logrus.Fields{
			"sequence": m.sequence,
			"error":    err,
		}).Warn("Failed to deliver download frame")
		return fmt.Errorf("deliver frame %d: %w", m.sequence, err)
	}
	return nil
}

func (m *Machine) buildHeader() protocol.Header {
	h := protocol.Header{
		SampleType:  m.config.DownloadType,
		SampleCount: uint16(m.samplesToDownload),
	}
	if m.source != nil {
		h.IntervalMs = uint32(m.source.HistoryInterval().Milliseconds())
		h.AgeLatestMs = uint32(m.source.LatestSampleAge().Milliseconds())
	}
	return h
}

func (m *Machine) buildPacket() []byte {
	samples := make([]sample.Sample, 0, m.config.SampleCountPerPacket)
	allRead := false
	for i := 0; i < m.config.SampleCountPerPacket && !allRead; i++ {
		var s sample.Sample
		s, allRead = m.history.ReadNext()
		samples = append(samples, s)
	}
	return protocol.EncodePacket(m.sequence, samples, m.config.SampleSizeBytes)
}

func (m *Machine) clear() {
	m.state = Inactive
	m.sequence = 0
	m.samplesRequested = 0
	m.samplesToDownload = 0
	m.packetsToDownload = 0
}
