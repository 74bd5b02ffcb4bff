package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/spl"
)

// Animation curve evaluation. Each function maps a life fraction t through
// the curve's breakpoints to an interpolated output. Looping curves wrap t
// instead of clamping, so t = 1+ε evaluates like ε.

// EvaluateScale returns the scale multiplier at life fraction t.
func EvaluateScale(a *spl.ScaleAnim, t float64) float64 {
	t = curveTime(t, a.Loop)
	switch {
	case t <= 0:
		return a.Start
	case t >= 1:
		return a.End
	case t < a.Curve.In:
		return lerp(a.Start, a.Mid, t/a.Curve.In)
	case t <= a.Curve.Out:
		return a.Mid
	default:
		return lerp(a.Mid, a.End, (t-a.Curve.Out)/(1-a.Curve.Out))
	}
}

// EvaluateColor returns the color at life fraction t. start is the
// particle's spawn color, which replaces the curve's own start value when
// the random-start-color flag chose one.
func EvaluateColor(a *spl.ColorAnim, start r3.Vec, t float64) r3.Vec {
	t = curveTime(t, a.Loop)
	if !a.Interpolate {
		// Stepped: the color switches at the peak breakpoint.
		if t < a.Curve.Peak {
			return start
		}
		return a.End
	}
	switch {
	case t <= a.Curve.In:
		return start
	case t >= a.Curve.Peak:
		return a.End
	default:
		f := (t - a.Curve.In) / (a.Curve.Peak - a.Curve.In)
		return r3.Add(r3.Scale(1-f, start), r3.Scale(f, a.End))
	}
}

// EvaluateAlpha returns the animated alpha at life fraction t, before the
// particle's base alpha and spawn jitter are applied.
func EvaluateAlpha(a *spl.AlphaAnim, t float64) float64 {
	t = curveTime(t, a.Loop)
	switch {
	case t <= 0:
		return a.Start
	case t >= 1:
		return a.End
	case t < a.Curve.In:
		return lerp(a.Start, a.Mid, t/a.Curve.In)
	case t <= a.Curve.Out:
		return a.Mid
	default:
		return lerp(a.Mid, a.End, (t-a.Curve.Out)/(1-a.Curve.Out))
	}
}

// EvaluateTexFrame returns the texture index at life fraction t. offset is
// the particle's random initial frame.
func EvaluateTexFrame(a *spl.TexAnim, t float64, offset uint8) uint8 {
	if a.Count == 0 {
		return 0
	}
	frame := 0
	if a.Step > 0 {
		frame = int(curveTime(t, a.Loop) / a.Step)
	}
	if a.Loop {
		frame %= int(a.Count)
	} else if frame >= int(a.Count) {
		frame = int(a.Count) - 1
	}
	frame = (frame + int(offset)) % int(a.Count)
	return a.Textures[frame]
}

// curveTime wraps or clamps a life fraction depending on the loop flag.
func curveTime(t float64, loop bool) float64 {
	if loop {
		t -= math.Floor(t)
		return t
	}
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

func lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
