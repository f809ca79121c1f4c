package sample

import "math"

// EncodeFunc converts a physical value into its 16-bit wire representation.
type EncodeFunc func(value float32) uint16

func saturate(v float64) uint16 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(math.Round(v))
	}
}

// EncodeTemperature maps -45..130 °C onto the full 16-bit range.
func EncodeTemperature(value float32) uint16 {
	return saturate((float64(value) + 45) / 175 * math.MaxUint16)
}

// EncodeHumidity maps 0..100 %RH onto the full 16-bit range.
func EncodeHumidity(value float32) uint16 {
	return saturate(float64(value) / 100 * math.MaxUint16)
}

// EncodeSimple stores the rounded value (ppm, index points, raw ticks).
func EncodeSimple(value float32) uint16 {
	return saturate(float64(value))
}

// EncodePM stores particulate matter in 0.1 µg/m³ steps.
func EncodePM(value float32) uint16 {
	return saturate(float64(value) * 10)
}

// EncodeHCHO stores formaldehyde in 0.2 ppb steps.
func EncodeHCHO(value float32) uint16 {
	return saturate(float64(value) * 5)
}

// DecodeTemperature is the inverse of EncodeTemperature.
func DecodeTemperature(raw uint16) float32 {
	return float32(float64(raw)/math.MaxUint16*175 - 45)
}

// DecodeHumidity is the inverse of EncodeHumidity.
func DecodeHumidity(raw uint16) float32 {
	return float32(float64(raw) / math.MaxUint16 * 100)
}

// DecodeSimple is the inverse of EncodeSimple.
func DecodeSimple(raw uint16) float32 {
	return float32(raw)
}

// DecodePM is the inverse of EncodePM.
func DecodePM(raw uint16) float32 {
	return float32(raw) / 10
}

// DecodeHCHO is the inverse of EncodeHCHO.
func DecodeHCHO(raw uint16) float32 {
	return float32(raw) / 5
}

// DecodeFunc converts a 16-bit wire value back to its physical value.
type DecodeFunc func(raw uint16) float32

// DecoderFor returns the decoder matching the encoding used for sig.
func DecoderFor(sig SignalType) DecodeFunc {
	switch sig {
	case Temperature:
		return DecodeTemperature
	case Humidity:
		return DecodeHumidity
	case PM1p0, PM2p5, PM4p0, PM10:
		return DecodePM
	case HCHO:
		return DecodeHCHO
	default:
		return DecodeSimple
	}
}
