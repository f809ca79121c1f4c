package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/srg/blehist/internal/sample"
)

// Manufacturer advertisement layout.
const CompanyID uint16 = 0x06D5

const (
	AdvertisementHeaderSize = 6

	advTypeOffset     = 2
	advSampleOffset   = 3
	advDeviceIDHigh   = 4
	advDeviceIDLow    = 5
	defaultAdvertType = 0x00
)

// Advertisement carries the live reading broadcast in manufacturer data.
type Advertisement struct {
	AdvertisementType uint8
	SampleType        uint8
	DeviceID          [2]byte
	Sample            sample.Sample
}

// NewAdvertisement builds an advertisement of the default type.
func NewAdvertisement(sampleType uint8, deviceID [2]byte, s sample.Sample) Advertisement {
	return Advertisement{
		AdvertisementType: defaultAdvertType,
		SampleType:        sampleType,
		DeviceID:          deviceID,
		Sample:            s,
	}
}

// EncodeAdvertisement serializes the complete manufacturer data block,
// company identifier included.
func EncodeAdvertisement(a Advertisement) []byte {
	b := make([]byte, AdvertisementHeaderSize+a.Sample.Len())
	binary.LittleEndian.PutUint16(b, CompanyID)
	b[advTypeOffset] = a.AdvertisementType
	b[advSampleOffset] = a.SampleType
	b[advDeviceIDHigh] = a.DeviceID[0]
	b[advDeviceIDLow] = a.DeviceID[1]
	copy(b[AdvertisementHeaderSize:], a.Sample)
	return b
}

// ManufacturerPayload returns the manufacturer data without the company
// identifier, as expected by stacks that take the id separately.
func ManufacturerPayload(a Advertisement) []byte {
	return EncodeAdvertisement(a)[2:]
}

// DecodeAdvertisement parses a manufacturer data block.
func DecodeAdvertisement(b []byte) (Advertisement, error) {
	if len(b) < AdvertisementHeaderSize {
		return Advertisement{}, &FrameError{Kind: FrameErrorShort, Msg: fmt.Sprintf("advertisement needs %d bytes, got %d", AdvertisementHeaderSize, len(b))}
	}
	if id := binary.LittleEndian.Uint16(b); id != CompanyID {
		return Advertisement{}, &FrameError{Kind: FrameErrorLayout, Msg: fmt.Sprintf("unexpected company id 0x%04X", id)}
	}
	s := sample.New(len(b) - AdvertisementHeaderSize)
	copy(s, b[AdvertisementHeaderSize:])
	return Advertisement{
		AdvertisementType: b[advTypeOffset],
		SampleType:        b[advSampleOffset],
		DeviceID:          [2]byte{b[advDeviceIDHigh], b[advDeviceIDLow]},
		Sample:            s,
	}, nil
}

// DeviceIDFromAddress derives the two device id bytes from the last two
// octets of a MAC address such as "AA:BB:CC:DD:EE:FF".
func DeviceIDFromAddress(addr string) ([2]byte, error) {
	parts := strings.FieldsFunc(addr, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) < 2 {
		return [2]byte{}, fmt.Errorf("invalid device address %q", addr)
	}
	var id [2]byte
	for i, part := range parts[len(parts)-2:] {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return [2]byte{}, fmt.Errorf("invalid device address %q: %w", addr, err)
		}
		id[i] = byte(v)
	}
	return id, nil
}

// DeviceIDString formats a device id the way it is shown to users ("EE:FF").
func DeviceIDString(id [2]byte) string {
	return fmt.Sprintf("%02X:%02X", id[0], id[1])
}
