package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_WriteValue(t *testing.T) {
	s := New(4)

	s.WriteValue(0xBEEF, 0)
	s.WriteValue(0x1234, 2)

	assert.Equal(t, []byte{0xEF, 0xBE, 0x34, 0x12}, s.Bytes(), "values MUST be stored little endian")
	assert.Equal(t, uint16(0xBEEF), s.Value(0))
	assert.Equal(t, uint16(0x1234), s.Value(2))
}

func TestSample_OutOfRangeIsIgnored(t *testing.T) {
	s := New(4)

	s.WriteValue(0xFFFF, 3)
	s.WriteValue(0xFFFF, -1)
	s.SetByte(0xAA, 4)

	assert.Equal(t, []byte{0, 0, 0, 0}, s.Bytes(), "out of range writes MUST NOT modify the sample")
	assert.Equal(t, byte(0), s.Byte(10))
	assert.Equal(t, uint16(0), s.Value(3))
}

func TestSample_CloneIsIndependent(t *testing.T) {
	s := New(2)
	s.SetByte(1, 0)

	c := s.Clone()
	c.SetByte(9, 0)

	assert.Equal(t, byte(1), s.Byte(0))
	assert.Equal(t, byte(9), c.Byte(0))

	s.Clear()
	assert.Equal(t, []byte{0, 0}, s.Bytes())
}

func TestEncoders(t *testing.T) {
	tests := []struct {
		name   string
		encode EncodeFunc
		value  float32
		want   uint16
	}{
		{name: "temperature lower bound", encode: EncodeTemperature, value: -45, want: 0},
		{name: "temperature upper bound", encode: EncodeTemperature, value: 130, want: math.MaxUint16},
		{name: "temperature below range saturates", encode: EncodeTemperature, value: -100, want: 0},
		{name: "humidity half", encode: EncodeHumidity, value: 50, want: 32768},
		{name: "humidity above range saturates", encode: EncodeHumidity, value: 150, want: math.MaxUint16},
		{name: "simple rounds", encode: EncodeSimple, value: 415.6, want: 416},
		{name: "pm tenth steps", encode: EncodePM, value: 12.3, want: 123},
		{name: "hcho fifth steps", encode: EncodeHCHO, value: 10, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.encode(tt.value))
		})
	}
}

func TestTemperatureRoundTrip(t *testing.T) {
	raw := EncodeTemperature(23.5)
	assert.InDelta(t, 23.5, DecodeTemperature(raw), 0.01)

	raw = EncodeHumidity(41.2)
	assert.InDelta(t, 41.2, DecodeHumidity(raw), 0.01)
}

func TestLookup(t *testing.T) {
	cfg, err := Lookup(TRHCO2)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.SampleSizeBytes)
	assert.Equal(t, 3, cfg.SampleCountPerPacket)
	assert.True(t, cfg.HasSignal(CO2))
	assert.False(t, cfg.HasSignal(VOCIndex))
	assert.Equal(t, []SignalType{Temperature, Humidity, CO2}, cfg.Signals())

	_, err = Lookup("NOPE")
	assert.ErrorIs(t, err, ErrUnknownDataType)
}

func TestConfigs_FitSingleNotification(t *testing.T) {
	// Every packet (2 byte sequence + samples) MUST fit into a default 20 byte ATT payload
	for _, cfg := range Configs() {
		t.Run(cfg.DataType.String(), func(t *testing.T) {
			assert.LessOrEqual(t, cfg.SampleSizeBytes, MaxSampleSizeBytes)
			assert.Greater(t, cfg.SampleCountPerPacket, 0)
			assert.LessOrEqual(t, 2+cfg.SampleSizeBytes*cfg.SampleCountPerPacket, 20)
			for sig, slot := range cfg.Slots {
				assert.LessOrEqual(t, slot.Offset+2, cfg.SampleSizeBytes, "slot %s MUST fit into sample", sig)
			}
		})
	}
}

func TestConfigs_RegistrationOrder(t *testing.T) {
	configs := Configs()
	require.NotEmpty(t, configs)
	assert.Equal(t, TRHV3, configs[0].DataType, "registry MUST keep registration order")
}

func TestParseDataType(t *testing.T) {
	dt, err := ParseDataType("t-rh-co2")
	require.NoError(t, err)
	assert.Equal(t, TRHCO2, dt)

	_, err = ParseDataType("bogus")
	assert.ErrorIs(t, err, ErrUnknownDataType)
}

func TestParseSignalType(t *testing.T) {
	sig, err := ParseSignalType("CO2")
	require.NoError(t, err)
	assert.Equal(t, CO2, sig)
	assert.Equal(t, "co2", sig.String())

	_, err = ParseSignalType("radon")
	assert.Error(t, err)
	assert.Equal(t, "signal(99)", SignalType(99).String())
}

func TestConfig_Encode(t *testing.T) {
	cfg := MustLookup(TRHV3)

	raw, offset, ok := cfg.Encode(Humidity, 100)
	assert.True(t, ok)
	assert.Equal(t, 2, offset)
	assert.Equal(t, uint16(math.MaxUint16), raw)

	_, _, ok = cfg.Encode(CO2, 400)
	assert.False(t, ok, "signal outside configuration MUST be rejected")
}

func TestConfig_Decode(t *testing.T) {
	cfg := MustLookup(TRHCO2PM25)
	s := New(cfg.SampleSizeBytes)
	for sig, v := range map[SignalType]float32{Temperature: 21.5, Humidity: 40, CO2: 612, PM2p5: 12.3} {
		raw, offset, ok := cfg.Encode(sig, v)
		require.True(t, ok)
		s.WriteValue(raw, offset)
	}

	tests := []struct {
		sig   SignalType
		want  float32
		delta float64
	}{
		{Temperature, 21.5, 0.01},
		{Humidity, 40, 0.01},
		{CO2, 612, 0},
		{PM2p5, 12.3, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.sig.String(), func(t *testing.T) {
			got, ok := cfg.Decode(tt.sig, s)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}

	_, ok := cfg.Decode(HCHO, s)
	assert.False(t, ok, "signals outside the configuration MUST NOT decode")
	_, ok = cfg.Decode(PM2p5, New(2))
	assert.False(t, ok, "short samples MUST NOT decode")
	assert.InDelta(t, 10.0, DecodeHCHO(EncodeHCHO(10)), 0.2)
}
