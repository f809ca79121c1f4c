package history

import "sync/atomic"

// Metrics provides lock-free counters for a RingBuffer.
//
// The counters are atomic so they can be sampled from a metrics goroutine
// while the owner keeps writing.
type Metrics struct {
	Written     int64 // samples stored
	Overwritten int64 // samples evicted because the buffer was full
	Rejected    int64 // Put calls refused
	Read        int64 // samples returned by ReadNext
}

func (m *Metrics) addWritten() {
	atomic.AddInt64(&m.Written, 1)
}

func (m *Metrics) addOverwritten() {
	atomic.AddInt64(&m.Overwritten, 1)
}

func (m *Metrics) addRejected() {
	atomic.AddInt64(&m.Rejected, 1)
}

func (m *Metrics) addRead() {
	atomic.AddInt64(&m.Read, 1)
}

func (m *Metrics) snapshot() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&m.Written),
		Overwritten: atomic.LoadInt64(&m.Overwritten),
		Rejected:    atomic.LoadInt64(&m.Rejected),
		Read:        atomic.LoadInt64(&m.Read),
	}
}
