// Package fixed converts between IEEE-754 floats and the fixed-point
// encodings used by the particle archive format.
//
// The format stores most scalar fields as signed 32-bit values with 12
// fractional bits and compact vector components as signed 16-bit values with
// the same fractional width. Conversions truncate toward zero; downstream
// hardware parity depends on reproducing that truncation exactly, so no
// rounding is ever applied here.
package fixed

import "math"

const (
	// Shift is the number of fractional bits in both fixed-point widths.
	Shift = 12

	// One is the fixed-point representation of 1.0.
	One = 1 << Shift
)

// Fx32 is a signed 32-bit fixed-point value with 12 fractional bits (Q19.12).
type Fx32 int32

// Fx16 is a signed 16-bit fixed-point value with 12 fractional bits (Q3.12).
type Fx16 int16

// FromFloat converts a float to Fx32, truncating toward zero.
func FromFloat(v float64) Fx32 {
	return Fx32(v * One)
}

// ToFloat converts an Fx32 to a float. Exact for all Fx32 values.
func ToFloat(v Fx32) float64 {
	return float64(v) / One
}

// FromFloat16 converts a float to Fx16, truncating toward zero.
func FromFloat16(v float64) Fx16 {
	return Fx16(v * One)
}

// ToFloat16 converts an Fx16 to a float. Exact for all Fx16 values.
func ToFloat16(v Fx16) float64 {
	return float64(v) / One
}

// AngleToRadians maps a 16-bit angle index linearly onto [0, 2π).
func AngleToRadians(index uint16) float64 {
	return float64(index) / 65535.0 * (2 * math.Pi)
}

// RadiansToAngle is the inverse of AngleToRadians. The angle is wrapped into
// [0, 2π) before mapping so out-of-range inputs stay representable.
func RadiansToAngle(angle float64) uint16 {
	const twoPi = 2 * math.Pi
	angle = math.Mod(angle, twoPi)
	if angle < 0 {
		angle += twoPi
	}
	return uint16(math.Round(angle / twoPi * 65535.0))
}

// SignedAngleToRadians maps a signed 16-bit rotation-rate field onto
// [-π, π). The file format stores per-frame rotation deltas this way.
func SignedAngleToRadians(index int16) float64 {
	return float64(index) / 65536.0 * (2 * math.Pi)
}
