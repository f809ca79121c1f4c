package history

import (
	"errors"
	"fmt"

	"github.com/srg/blehist/internal/sample"
)

// DefaultCapacityBytes is the storage reserved for the sample history.
const DefaultCapacityBytes = 30000

var (
	// ErrReadOutActive is returned by Put while a read-out session is open.
	ErrReadOutActive = errors.New("history read-out in progress")
	// ErrNotConfigured is returned by Put before a sample size is set.
	ErrNotConfigured = errors.New("history sample size not configured")
	// ErrSampleSize is returned by Put when the sample does not match the configured size.
	ErrSampleSize = errors.New("sample size mismatch")
)

// RingBuffer is a fixed-capacity circular store of samples.
//
// The byte region is split into N = capacity / sampleSize slots. One slot is
// always kept free so that head == tail means empty and next(head) == tail
// means full; the buffer therefore holds at most N-1 samples. When full, Put
// evicts the oldest sample.
//
// A separate read-out cursor streams a window of the most recent samples
// without moving head or tail. While a read-out is open Put is rejected, so
// an in-flight download can never observe a slot being overwritten.
//
// RingBuffer has no internal locking. It is owned by a single goroutine or
// guarded by its owner.
type RingBuffer struct {
	data       []byte
	sampleSize int
	slots      uint32

	head uint32
	tail uint32

	readCursor uint32
	readLeft   uint32
	readOpen   bool

	metrics Metrics
}

// NewRingBuffer allocates a ring buffer of capacityBytes bytes.
// A non-positive capacity falls back to DefaultCapacityBytes.
func NewRingBuffer(capacityBytes int) *RingBuffer {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	return &RingBuffer{data: make([]byte, capacityBytes)}
}

// CapacityBytes returns the size of the storage region.
func (r *RingBuffer) CapacityBytes() int {
	return len(r.data)
}

// SetSampleSize repartitions the storage into slots of sampleSize bytes.
// Any existing history is discarded.
func (r *RingBuffer) SetSampleSize(sampleSize int) {
	if sampleSize <= 0 {
		r.sampleSize = 0
		r.slots = 0
	} else {
		r.sampleSize = sampleSize
		r.slots = uint32(len(r.data) / sampleSize)
	}
	r.Reset()
}

// SampleSize returns the configured sample size in bytes.
func (r *RingBuffer) SampleSize() int {
	return r.sampleSize
}

// Slots returns N, the number of slots. At most N-1 samples are held.
func (r *RingBuffer) Slots() uint32 {
	return r.slots
}

func (r *RingBuffer) next(index uint32) uint32 {
	if r.slots == 0 {
		return 0
	}
	return (index + 1) % r.slots
}

// IsFull reports whether the next Put evicts the oldest sample.
func (r *RingBuffer) IsFull() bool {
	return r.slots > 0 && r.next(r.head) == r.tail
}

// Count returns the number of stored samples.
func (r *RingBuffer) Count() uint32 {
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return r.slots - (r.tail - r.head)
}

// Put appends s, evicting the oldest sample when full.
func (r *RingBuffer) Put(s sample.Sample) error {
	if r.slots == 0 {
		r.metrics.addRejected()
		return ErrNotConfigured
	}
	if r.readOpen {
		r.metrics.addRejected()
		return ErrReadOutActive
	}
	if s.Len() != r.sampleSize {
		r.metrics.addRejected()
		return fmt.Errorf("%w: got %d bytes, want %d", ErrSampleSize, s.Len(), r.sampleSize)
	}

	if r.IsFull() {
		r.tail = r.next(r.tail)
		r.metrics.addOverwritten()
	}
	copy(r.data[r.offset(r.head):], s)
	r.head = r.next(r.head)
	r.metrics.addWritten()
	return nil
}

// StartReadOut opens a read-out over the most recent min(n, Count())
// samples, oldest first, and returns the window size.
func (r *RingBuffer) StartReadOut(n uint32) uint32 {
	count := r.Count()
	if n >= count {
		r.readCursor = r.tail
		n = count
	} else if r.head >= n {
		r.readCursor = r.head - n
	} else {
		r.readCursor = r.head + r.slots - n
	}
	r.readLeft = n
	r.readOpen = true
	return n
}

// ReadNext returns the sample under the read-out cursor and advances it.
// allRead is true once the cursor has reached head. Reading past the end
// yields a zero sample and allRead == true.
func (r *RingBuffer) ReadNext() (s sample.Sample, allRead bool) {
	if r.readLeft == 0 {
		return sample.New(r.sampleSize), true
	}
	s = r.readSample(r.readCursor)
	r.readCursor = r.next(r.readCursor)
	r.readLeft--
	r.metrics.addRead()
	return s, r.readCursor == r.head
}

// ReadOutActive reports whether a read-out session is open.
func (r *RingBuffer) ReadOutActive() bool {
	return r.readOpen
}

// EndReadOut closes the read-out session and re-enables Put.
func (r *RingBuffer) EndReadOut() {
	r.readOpen = false
	r.readLeft = 0
}

// Reset empties the buffer without reallocating storage.
func (r *RingBuffer) Reset() {
	r.head = 0
	r.tail = 0
	r.readCursor = 0
	r.EndReadOut()
}

// Samples returns copies of all stored samples, oldest first.
func (r *RingBuffer) Samples() []sample.Sample {
	out := make([]sample.Sample, 0, r.Count())
	for i := r.tail; i != r.head; i = r.next(i) {
		out = append(out, r.readSample(i))
	}
	return out
}

// Metrics returns a snapshot of the buffer counters.
func (r *RingBuffer) Metrics() Metrics {
	return r.metrics.snapshot()
}

func (r *RingBuffer) offset(slot uint32) int {
	return int(slot) * r.sampleSize
}

func (r *RingBuffer) readSample(slot uint32) sample.Sample {
	s := sample.New(r.sampleSize)
	start := r.offset(slot)
	copy(s, r.data[start:start+r.sampleSize])
	return s
}
