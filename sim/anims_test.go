package sim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/spl"
)

func TestEvaluateScaleBoundaries(t *testing.T) {
	a := &spl.ScaleAnim{
		Start: 0.5,
		Mid:   1.0,
		End:   0.25,
		Curve: spl.CurveInOut{In: 0.2, Out: 0.8},
	}

	tests := []struct {
		name string
		t    float64
		want float64
	}{
		{"start", 0, 0.5},
		{"end", 1, 0.25},
		{"clamped below", -0.5, 0.5},
		{"clamped above", 2.0, 0.25},
		{"mid of ramp in", 0.1, 0.75},
		{"hold phase", 0.5, 1.0},
		{"mid of ramp out", 0.9, 0.625},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateScale(a, tt.t)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("EvaluateScale(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

func TestEvaluateScaleLoopWraps(t *testing.T) {
	a := &spl.ScaleAnim{
		Start: 0.0,
		Mid:   1.0,
		End:   0.0,
		Curve: spl.CurveInOut{In: 0.5, Out: 0.5},
		Loop:  true,
	}

	const eps = 0.125
	at := EvaluateScale(a, 1.0+eps)
	ref := EvaluateScale(a, eps)
	if at != ref {
		t.Errorf("looped eval at 1+ε = %v, at ε = %v", at, ref)
	}
}

func TestEvaluateColorInterpolated(t *testing.T) {
	red := r3.Vec{X: 1}
	blue := r3.Vec{Z: 1}
	a := &spl.ColorAnim{
		Start:       red,
		End:         blue,
		Curve:       spl.CurveInPeakOut{In: 0.25, Peak: 0.75},
		Interpolate: true,
	}

	if got := EvaluateColor(a, red, 0); got != red {
		t.Errorf("color at t=0 = %+v", got)
	}
	if got := EvaluateColor(a, red, 0.1); got != red {
		t.Errorf("color before in = %+v", got)
	}
	if got := EvaluateColor(a, red, 1); got != blue {
		t.Errorf("color at t=1 = %+v", got)
	}

	mid := EvaluateColor(a, red, 0.5)
	if math.Abs(mid.X-0.5) > 1e-12 || math.Abs(mid.Z-0.5) > 1e-12 {
		t.Errorf("color halfway through blend = %+v", mid)
	}
}

func TestEvaluateColorStepped(t *testing.T) {
	red := r3.Vec{X: 1}
	blue := r3.Vec{Z: 1}
	a := &spl.ColorAnim{
		Start: red,
		End:   blue,
		Curve: spl.CurveInPeakOut{In: 0.25, Peak: 0.5},
	}

	if got := EvaluateColor(a, red, 0.49); got != red {
		t.Errorf("stepped color before peak = %+v", got)
	}
	if got := EvaluateColor(a, red, 0.5); got != blue {
		t.Errorf("stepped color at peak = %+v", got)
	}
}

func TestEvaluateColorUsesSpawnColor(t *testing.T) {
	white := r3.Vec{X: 1, Y: 1, Z: 1}
	a := &spl.ColorAnim{
		Start:       r3.Vec{X: 1},
		End:         r3.Vec{},
		Curve:       spl.CurveInPeakOut{In: 0, Peak: 1},
		Interpolate: true,
	}

	got := EvaluateColor(a, white, 0.5)
	want := r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}
	if math.Abs(got.X-want.X) > 1e-12 || math.Abs(got.Y-want.Y) > 1e-12 {
		t.Errorf("spawn color blend = %+v, want %+v", got, want)
	}
}

func TestEvaluateAlphaBoundaries(t *testing.T) {
	a := &spl.AlphaAnim{
		Start: 0,
		Mid:   1,
		End:   0,
		Curve: spl.CurveInOut{In: 0.25, Out: 0.75},
	}

	if got := EvaluateAlpha(a, 0); got != 0 {
		t.Errorf("alpha at 0 = %v", got)
	}
	if got := EvaluateAlpha(a, 1); got != 0 {
		t.Errorf("alpha at 1 = %v", got)
	}
	if got := EvaluateAlpha(a, 0.5); got != 1 {
		t.Errorf("alpha at hold = %v", got)
	}
	if got := EvaluateAlpha(a, 0.125); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("alpha mid fade-in = %v", got)
	}
}

func TestEvaluateAlphaLoop(t *testing.T) {
	a := &spl.AlphaAnim{
		Start: 0,
		Mid:   1,
		End:   0,
		Curve: spl.CurveInOut{In: 0.5, Out: 0.5},
		Loop:  true,
	}
	const eps = 0.25
	if at, ref := EvaluateAlpha(a, 1+eps), EvaluateAlpha(a, eps); at != ref {
		t.Errorf("looped alpha at 1+ε = %v, at ε = %v", at, ref)
	}
}

func TestEvaluateTexFrame(t *testing.T) {
	a := &spl.TexAnim{
		Textures: [8]uint8{10, 11, 12, 13},
		Count:    4,
		Step:     0.25,
	}

	tests := []struct {
		name   string
		t      float64
		offset uint8
		want   uint8
	}{
		{"first frame", 0, 0, 10},
		{"second frame", 0.25, 0, 11},
		{"last frame", 0.75, 0, 13},
		{"clamped at end", 1.0, 0, 13},
		{"offset rotates", 0, 2, 12},
		{"offset wraps", 0.75, 2, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateTexFrame(a, tt.t, tt.offset); got != tt.want {
				t.Errorf("EvaluateTexFrame(%v, offset=%d) = %d, want %d",
					tt.t, tt.offset, got, tt.want)
			}
		})
	}
}

func TestEvaluateTexFrameLoop(t *testing.T) {
	a := &spl.TexAnim{
		Textures: [8]uint8{10, 11},
		Count:    2,
		Step:     0.25,
		Loop:     true,
	}

	// Frames cycle 10,11,10,11 across the life.
	if got := EvaluateTexFrame(a, 0.5, 0); got != 10 {
		t.Errorf("looped frame at 0.5 = %d", got)
	}
	if got := EvaluateTexFrame(a, 0.26, 0); got != 11 {
		t.Errorf("looped frame at 0.26 = %d", got)
	}
}

func TestEvaluateTexFrameEmpty(t *testing.T) {
	a := &spl.TexAnim{}
	if got := EvaluateTexFrame(a, 0.5, 3); got != 0 {
		t.Errorf("empty tex anim frame = %d", got)
	}
}
