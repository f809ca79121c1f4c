package sample

import (
	"fmt"
	"strings"
)

// SignalType identifies a logical sensor signal inside a sample.
type SignalType int

const (
	Temperature SignalType = iota
	Humidity
	CO2
	VOCIndex
	NOxIndex
	RawVOC
	RawNOx
	PM1p0
	PM2p5
	PM4p0
	PM10
	HCHO
)

var signalNames = map[SignalType]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	CO2:         "co2",
	VOCIndex:    "voc_index",
	NOxIndex:    "nox_index",
	RawVOC:      "raw_voc",
	RawNOx:      "raw_nox",
	PM1p0:       "pm1p0",
	PM2p5:       "pm2p5",
	PM4p0:       "pm4p0",
	PM10:        "pm10",
	HCHO:        "hcho",
}

func (s SignalType) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// ParseSignalType converts a signal name (case-insensitive) to a SignalType.
func ParseSignalType(name string) (SignalType, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for sig, n := range signalNames {
		if n == lower {
			return sig, nil
		}
	}
	return 0, fmt.Errorf("unknown signal type %q", name)
}
