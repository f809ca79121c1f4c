package main

import (
	"math"
	"time"

	"github.com/srg/blehist/internal/feeder"
	"github.com/srg/blehist/internal/sample"
	"github.com/srg/blehist/internal/server"
)

// sensorPeriod is the period of the synthetic daily-like cycle.
const sensorPeriod = time.Hour

// syntheticSensor produces smooth, plausible readings for every signal of
// the active configuration.
type syntheticSensor struct {
	clock feeder.Clock
	start time.Time
}

func newSyntheticSensor(clock feeder.Clock) *syntheticSensor {
	return &syntheticSensor{clock: clock, start: clock()}
}

// Measure writes one reading per configured signal.
func (s *syntheticSensor) Measure(srv *server.Server) {
	phase := 2 * math.Pi * s.clock().Sub(s.start).Seconds() / sensorPeriod.Seconds()
	for _, sig := range srv.Config().Signals() {
		srv.WriteValue(syntheticValue(sig, phase), sig)
	}
}

func syntheticValue(sig sample.SignalType, phase float64) float32 {
	wave := math.Sin(phase)
	switch sig {
	case sample.Temperature:
		return float32(21 + 2*wave)
	case sample.Humidity:
		return float32(45 + 10*wave)
	case sample.CO2:
		return float32(650 + 150*wave)
	case sample.VOCIndex, sample.NOxIndex:
		return float32(100 + 20*wave)
	case sample.RawVOC, sample.RawNOx:
		return float32(30000 + 500*wave)
	case sample.PM1p0, sample.PM2p5, sample.PM4p0, sample.PM10:
		return float32(8 + 4*wave)
	case sample.HCHO:
		return float32(20 + 5*wave)
	default:
		return 0
	}
}
