package main

import (
	"fmt"
	"time"

	"github.com/srg/blehist/internal/protocol"
	"github.com/srg/blehist/internal/sample"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// transcript is a download reassembled from its frames, as a central sees it.
type transcript struct {
	DataType    string          `json:"data_type"`
	DeviceID    string          `json:"device_id,omitempty"`
	IntervalMs  uint32          `json:"interval_ms"`
	AgeLatestMs uint32          `json:"age_latest_ms"`
	SampleCount int             `json:"sample_count"`
	Packets     int             `json:"packets"`
	Samples     []decodedSample `json:"samples"`
}

type decodedSample struct {
	Index  int                                      `json:"index"`
	AgeMs  uint64                                   `json:"age_ms"`
	Values *orderedmap.OrderedMap[string, float32] `json:"values"`
}

// decodeSample converts every configured signal of s, in byte order.
func decodeSample(cfg sample.Config, s sample.Sample) *orderedmap.OrderedMap[string, float32] {
	values := orderedmap.New[string, float32]()
	for _, sig := range cfg.Signals() {
		if v, ok := cfg.Decode(sig, s); ok {
			values.Set(sig.String(), v)
		}
	}
	return values
}

// reassemble decodes a header frame followed by its packets. Packets must
// arrive in sequence and carry exactly the announced number of samples.
func reassemble(frames [][]byte, cfg sample.Config) (*transcript, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no header received", ErrDownloadIncomplete)
	}
	header, err := protocol.DecodeHeader(frames[0])
	if err != nil {
		return nil, err
	}
	if header.SampleType != cfg.DownloadType {
		return nil, fmt.Errorf("%w: header sample type %d, expected %d for %s",
			protocol.ErrBadLayout, header.SampleType, cfg.DownloadType, cfg.DataType)
	}

	t := &transcript{
		DataType:    cfg.DataType.String(),
		IntervalMs:  header.IntervalMs,
		AgeLatestMs: header.AgeLatestMs,
		SampleCount: int(header.SampleCount),
		Packets:     len(frames) - 1,
		Samples:     make([]decodedSample, 0, header.SampleCount),
	}

	for i, frame := range frames[1:] {
		p, err := protocol.DecodePacket(frame, cfg.SampleSizeBytes)
		if err != nil {
			return nil, err
		}
		if want := uint16(i + 1); p.Sequence != want {
			return nil, fmt.Errorf("%w: packet sequence %d, expected %d", ErrDownloadIncomplete, p.Sequence, want)
		}
		for _, s := range p.Samples {
			t.Samples = append(t.Samples, decodedSample{Index: len(t.Samples), Values: decodeSample(cfg, s)})
		}
	}
	if len(t.Samples) != t.SampleCount {
		return nil, fmt.Errorf("%w: received %d of %d samples", ErrDownloadIncomplete, len(t.Samples), t.SampleCount)
	}

	// samples are oldest first; the last one is AgeLatestMs old
	for i := range t.Samples {
		older := uint64(t.SampleCount-1-i) * uint64(header.IntervalMs)
		t.Samples[i].AgeMs = uint64(header.AgeLatestMs) + older
	}
	return t, nil
}

func (t *transcript) summary() string {
	return fmt.Sprintf("Downloaded %d samples of %s in %d packets (interval %v, latest %v ago)",
		t.SampleCount, t.DataType, t.Packets,
		time.Duration(t.IntervalMs)*time.Millisecond,
		time.Duration(t.AgeLatestMs)*time.Millisecond)
}
