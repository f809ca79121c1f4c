package sample

import "encoding/binary"

// MaxSampleSizeBytes bounds the size of a single encoded reading.
// Every known configuration fits into one 20 byte notification payload.
const MaxSampleSizeBytes = 18

// Sample is one fixed-size encoded sensor reading.
//
// The length is chosen once per configuration and never changes afterwards;
// writes outside the sample are ignored rather than growing it.
type Sample []byte

// New creates a zeroed sample of the given size.
func New(size int) Sample {
	if size < 0 {
		size = 0
	}
	return make(Sample, size)
}

// Len returns the sample size in bytes.
func (s Sample) Len() int {
	return len(s)
}

// WriteValue stores v as 16-bit little endian at offset.
func (s Sample) WriteValue(v uint16, offset int) {
	if offset < 0 || offset+2 > len(s) {
		return
	}
	binary.LittleEndian.PutUint16(s[offset:], v)
}

// Value reads the 16-bit little endian value at offset, 0 if out of range.
func (s Sample) Value(offset int) uint16 {
	if offset < 0 || offset+2 > len(s) {
		return 0
	}
	return binary.LittleEndian.Uint16(s[offset:])
}

// Byte returns the raw byte at position, 0 if out of range.
func (s Sample) Byte(position int) byte {
	if position < 0 || position >= len(s) {
		return 0
	}
	return s[position]
}

// SetByte sets the raw byte at position.
func (s Sample) SetByte(b byte, position int) {
	if position < 0 || position >= len(s) {
		return
	}
	s[position] = b
}

// Bytes exposes the underlying bytes.
func (s Sample) Bytes() []byte {
	return s
}

// Clone returns an independent copy.
func (s Sample) Clone() Sample {
	out := make(Sample, len(s))
	copy(out, s)
	return out
}

// Clear zeroes every byte in place.
func (s Sample) Clear() {
	for i := range s {
		s[i] = 0
	}
}
