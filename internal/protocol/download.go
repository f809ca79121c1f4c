// Package protocol implements the bit-exact binary layout of the download
// header, download packets and the manufacturer advertisement payload.
//
// All multi-byte integers are little endian.
package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/srg/blehist/internal/sample"
)

// Download header layout.
const (
	HeaderSize = 20

	headerSampleTypeOffset = 4
	headerIntervalOffset   = 6
	headerAgeOffset        = 10
	headerCountOffset      = 14
)

// Download packet layout.
const (
	SequenceSize        = 2
	PacketPayloadOffset = SequenceSize
)

// Header is the metadata frame sent as sequence 0 of every download.
type Header struct {
	SampleType  uint16 `json:"sample_type"`
	IntervalMs  uint32 `json:"interval_ms"`
	AgeLatestMs uint32 `json:"age_latest_ms"`
	SampleCount uint16 `json:"sample_count"`
}

// EncodeHeader serializes h into a HeaderSize byte frame.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(b[headerSampleTypeOffset:], h.SampleType)
	binary.LittleEndian.PutUint32(b[headerIntervalOffset:], h.IntervalMs)
	binary.LittleEndian.PutUint32(b[headerAgeOffset:], h.AgeLatestMs)
	binary.LittleEndian.PutUint16(b[headerCountOffset:], h.SampleCount)
	return b
}

// DecodeHeader parses a header frame.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, &FrameError{Kind: FrameErrorShort, Msg: fmt.Sprintf("header needs %d bytes, got %d", HeaderSize, len(b))}
	}
	return Header{
		SampleType:  binary.LittleEndian.Uint16(b[headerSampleTypeOffset:]),
		IntervalMs:  binary.LittleEndian.Uint32(b[headerIntervalOffset:]),
		AgeLatestMs: binary.LittleEndian.Uint32(b[headerAgeOffset:]),
		SampleCount: binary.LittleEndian.Uint16(b[headerCountOffset:]),
	}, nil
}

// Packet is one data frame of a download.
type Packet struct {
	Sequence uint16
	Samples  []sample.Sample
}

// EncodePacket serializes the sequence number followed by the samples packed
// back to back. Each sample contributes exactly sampleSize bytes.
func EncodePacket(sequence uint16, samples []sample.Sample, sampleSize int) []byte {
	b := make([]byte, PacketPayloadOffset+len(samples)*sampleSize)
	binary.LittleEndian.PutUint16(b, sequence)
	for i, s := range samples {
		start := PacketPayloadOffset + i*sampleSize
		copy(b[start:start+sampleSize], s)
	}
	return b
}

// DecodePacket splits a packet frame into its sequence and samples.
func DecodePacket(b []byte, sampleSize int) (Packet, error) {
	if len(b) < SequenceSize {
		return Packet{}, &FrameError{Kind: FrameErrorShort, Msg: fmt.Sprintf("packet needs at least %d bytes, got %d", SequenceSize, len(b))}
	}
	if sampleSize <= 0 {
		return Packet{}, &FrameError{Kind: FrameErrorLayout, Msg: fmt.Sprintf("invalid sample size %d", sampleSize)}
	}
	payload := b[PacketPayloadOffset:]
	if len(payload)%sampleSize != 0 {
		return Packet{}, &FrameError{Kind: FrameErrorLayout, Msg: fmt.Sprintf("payload of %d bytes is not a multiple of sample size %d", len(payload), sampleSize)}
	}

	p := Packet{
		Sequence: binary.LittleEndian.Uint16(b),
		Samples:  make([]sample.Sample, 0, len(payload)/sampleSize),
	}
	for start := 0; start < len(payload); start += sampleSize {
		s := sample.New(sampleSize)
		copy(s, payload[start:start+sampleSize])
		p.Samples = append(p.Samples, s)
	}
	return p, nil
}

// PacketsRequired returns ceil(samples / perPacket), the number of data
// packets following the header. Zero samples need zero packets.
func PacketsRequired(samples, perPacket uint32) uint32 {
	if perPacket == 0 {
		return 0
	}
	packets := samples / perPacket
	if samples%perPacket != 0 {
		packets++
	}
	return packets
}
