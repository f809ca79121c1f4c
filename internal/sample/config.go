package sample

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrUnknownDataType is returned when no configuration exists for a data type.
var ErrUnknownDataType = errors.New("unknown data type")

// DataType names one sample layout variant.
type DataType string

const (
	TRHV3         DataType = "T_RH_V3"
	TRHV4         DataType = "T_RH_V4"
	TRHCO2        DataType = "T_RH_CO2"
	TRHVOC        DataType = "T_RH_VOC"
	TRHVOCNOX     DataType = "T_RH_VOC_NOX"
	TRHHCHO       DataType = "T_RH_HCHO"
	TRHCO2PM25    DataType = "T_RH_CO2_PM25"
	TRHVOCNOXPM25 DataType = "T_RH_VOC_NOX_PM25"
	TRHRawVOCNOX  DataType = "T_RH_RAW_VOC_NOX"
	PMFull        DataType = "PM_FULL"
)

// DefaultDataType is the configuration used when none is chosen.
const DefaultDataType = TRHV3

func (d DataType) String() string {
	return string(d)
}

// ParseDataType resolves a data type name (case-insensitive, '-' allowed for '_').
func ParseDataType(name string) (DataType, error) {
	normalized := DataType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_")))
	if _, ok := registry.Get(normalized); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDataType, name)
	}
	return normalized, nil
}

// Slot locates a signal inside a sample.
type Slot struct {
	Offset int
	Encode EncodeFunc
}

// Config describes one data type variant. It is shared read-only by the
// producer, the ring buffer sizing and the frame codec.
type Config struct {
	DataType             DataType
	SampleType           uint8  // advertisement tag
	DownloadType         uint16 // download header tag
	SampleSizeBytes      int
	SampleCountPerPacket int
	Slots                map[SignalType]Slot
}

// HasSignal reports whether the signal is part of this configuration.
func (c Config) HasSignal(sig SignalType) bool {
	_, ok := c.Slots[sig]
	return ok
}

// Signals returns the configured signals ordered by their byte offset.
func (c Config) Signals() []SignalType {
	out := make([]SignalType, 0, len(c.Slots))
	for sig := range c.Slots {
		out = append(out, sig)
	}
	sort.Slice(out, func(i, j int) bool {
		return c.Slots[out[i]].Offset < c.Slots[out[j]].Offset
	})
	return out
}

// Encode converts value for sig using the configured slot.
// ok is false when sig is not part of the configuration.
func (c Config) Encode(sig SignalType, value float32) (raw uint16, offset int, ok bool) {
	slot, found := c.Slots[sig]
	if !found {
		return 0, 0, false
	}
	return slot.Encode(value), slot.Offset, true
}

var registry = orderedmap.New[DataType, Config]()

func register(cfg Config) {
	registry.Set(cfg.DataType, cfg)
}

// Lookup returns the configuration registered for dataType.
func Lookup(dataType DataType) (Config, error) {
	cfg, ok := registry.Get(dataType)
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownDataType, string(dataType))
	}
	return cfg, nil
}

// MustLookup is Lookup for configurations known at compile time.
func MustLookup(dataType DataType) Config {
	cfg, err := Lookup(dataType)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Configs returns all registered configurations in registration order.
func Configs() []Config {
	out := make([]Config, 0, registry.Len())
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func init() {
	register(Config{
		DataType: TRHV3, SampleType: 4, DownloadType: 5,
		SampleSizeBytes: 4, SampleCountPerPacket: 4,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
		},
	})
	register(Config{
		DataType: TRHV4, SampleType: 6, DownloadType: 7,
		SampleSizeBytes: 4, SampleCountPerPacket: 4,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
		},
	})
	register(Config{
		DataType: TRHCO2, SampleType: 8, DownloadType: 9,
		SampleSizeBytes: 6, SampleCountPerPacket: 3,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			CO2:         {Offset: 4, Encode: EncodeSimple},
		},
	})
	register(Config{
		DataType: TRHVOC, SampleType: 10, DownloadType: 11,
		SampleSizeBytes: 6, SampleCountPerPacket: 3,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			VOCIndex:    {Offset: 4, Encode: EncodeSimple},
		},
	})
	register(Config{
		DataType: TRHVOCNOX, SampleType: 22, DownloadType: 23,
		SampleSizeBytes: 8, SampleCountPerPacket: 2,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			VOCIndex:    {Offset: 4, Encode: EncodeSimple},
			NOxIndex:    {Offset: 6, Encode: EncodeSimple},
		},
	})
	register(Config{
		DataType: TRHHCHO, SampleType: 14, DownloadType: 15,
		SampleSizeBytes: 6, SampleCountPerPacket: 3,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			HCHO:        {Offset: 4, Encode: EncodeHCHO},
		},
	})
	register(Config{
		DataType: TRHCO2PM25, SampleType: 12, DownloadType: 13,
		SampleSizeBytes: 8, SampleCountPerPacket: 2,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			CO2:         {Offset: 4, Encode: EncodeSimple},
			PM2p5:       {Offset: 6, Encode: EncodePM},
		},
	})
	register(Config{
		DataType: TRHVOCNOXPM25, SampleType: 20, DownloadType: 21,
		SampleSizeBytes: 10, SampleCountPerPacket: 1,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			VOCIndex:    {Offset: 4, Encode: EncodeSimple},
			NOxIndex:    {Offset: 6, Encode: EncodeSimple},
			PM2p5:       {Offset: 8, Encode: EncodePM},
		},
	})
	register(Config{
		DataType: TRHRawVOCNOX, SampleType: 24, DownloadType: 25,
		SampleSizeBytes: 8, SampleCountPerPacket: 2,
		Slots: map[SignalType]Slot{
			Temperature: {Offset: 0, Encode: EncodeTemperature},
			Humidity:    {Offset: 2, Encode: EncodeHumidity},
			RawVOC:      {Offset: 4, Encode: EncodeSimple},
			RawNOx:      {Offset: 6, Encode: EncodeSimple},
		},
	})
	register(Config{
		DataType: PMFull, SampleType: 26, DownloadType: 27,
		SampleSizeBytes: 8, SampleCountPerPacket: 2,
		Slots: map[SignalType]Slot{
			PM1p0: {Offset: 0, Encode: EncodePM},
			PM2p5: {Offset: 2, Encode: EncodePM},
			PM4p0: {Offset: 4, Encode: EncodePM},
			PM10:  {Offset: 6, Encode: EncodePM},
		},
	})
}

// Decode reads sig from s and converts it back to a physical value.
func (c Config) Decode(sig SignalType, s Sample) (float32, bool) {
	slot, found := c.Slots[sig]
	if !found || slot.Offset+2 > len(s) {
		return 0, false
	}
	return DecoderFor(sig)(s.Value(slot.Offset)), true
}
