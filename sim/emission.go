package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/fixed"
	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

// samplePosition draws an initial particle position from the resource's
// emission geometry, relative to the emitter center.
func samplePosition(r *rng.Context, h *spl.ResourceHeader) r3.Vec {
	switch h.Flags.EmissionType {
	case spl.EmissionPoint:
		return r3.Vec{}

	case spl.EmissionSphereSurface:
		return r3.Scale(h.Radius, r.UnitVector())

	case spl.EmissionSphere:
		return r3.Scale(h.Radius*r.Float(), r.UnitVector())

	case spl.EmissionCircleBorder:
		return r3.Scale(h.Radius, unitInPlane(r, h))

	case spl.EmissionCircleBorderUniform:
		// A full-precision angle draw; the plain border variant biases
		// toward the square's diagonals.
		angle := fixed.AngleToRadians(uint16(r.UintBits(16)))
		u, v, _ := emissionBasis(h)
		dir := r3.Add(r3.Scale(math.Cos(angle), u), r3.Scale(math.Sin(angle), v))
		return r3.Scale(h.Radius, dir)

	case spl.EmissionCircle:
		return r3.Scale(h.Radius*r.Float(), unitInPlane(r, h))

	case spl.EmissionCylinderSurface:
		return r3.Add(
			r3.Scale(h.Radius, unitInPlane(r, h)),
			axialOffset(r, h),
		)

	case spl.EmissionCylinder:
		return r3.Add(
			r3.Scale(h.Radius*r.Float(), unitInPlane(r, h)),
			axialOffset(r, h),
		)

	case spl.EmissionHemisphereSurface:
		return r3.Scale(h.Radius, hemisphereDir(r, h))

	case spl.EmissionHemisphere:
		return r3.Scale(h.Radius*r.Float(), hemisphereDir(r, h))
	}
	return r3.Vec{}
}

// initialVelocity derives the behavior-free baseline velocity from the
// sampled position and the emitter axis amplifiers. A degenerate zero-length
// position contributes no positional component rather than failing.
func initialVelocity(pos r3.Vec, h *spl.ResourceHeader) r3.Vec {
	vel := r3.Scale(h.InitVelAxisAmplifier, h.Axis)
	if n := r3.Norm(pos); n > 1e-9 {
		vel = r3.Add(vel, r3.Scale(h.InitVelPosAmplifier/n, pos))
	}
	return vel
}

// emissionBasis returns an orthonormal basis (u, v, n) for the emission
// plane selected by the resource's circle axis. n is the plane normal.
func emissionBasis(h *spl.ResourceHeader) (u, v, n r3.Vec) {
	switch h.Flags.CircleAxis {
	case spl.CircleAxisZ:
		return r3.Vec{X: 1}, r3.Vec{Y: 1}, r3.Vec{Z: 1}
	case spl.CircleAxisY:
		return r3.Vec{X: 1}, r3.Vec{Z: 1}, r3.Vec{Y: 1}
	case spl.CircleAxisX:
		return r3.Vec{Y: 1}, r3.Vec{Z: 1}, r3.Vec{X: 1}
	}

	// Emitter axis: build a basis around the configured axis.
	n = h.Axis
	if r3.Norm(n) < 1e-9 {
		n = r3.Vec{Y: 1}
	} else {
		n = r3.Unit(n)
	}
	ref := r3.Vec{X: 1}
	if math.Abs(n.X) > 0.9 {
		ref = r3.Vec{Z: 1}
	}
	u = r3.Unit(r3.Cross(n, ref))
	v = r3.Cross(n, u)
	return u, v, n
}

// unitInPlane returns a random unit direction in the emission plane.
func unitInPlane(r *rng.Context, h *spl.ResourceHeader) r3.Vec {
	d := r.UnitXY()
	u, v, _ := emissionBasis(h)
	return r3.Add(r3.Scale(d.X, u), r3.Scale(d.Y, v))
}

// axialOffset returns a random offset along the cylinder axis, spanning the
// resource length centered on the emitter.
func axialOffset(r *rng.Context, h *spl.ResourceHeader) r3.Vec {
	_, _, n := emissionBasis(h)
	return r3.Scale((r.Float()-0.5)*h.Length, n)
}

// hemisphereDir returns a random unit direction in the half space on the
// emission axis side.
func hemisphereDir(r *rng.Context, h *spl.ResourceHeader) r3.Vec {
	_, _, n := emissionBasis(h)
	d := r.UnitVector()
	if r3.Dot(d, n) < 0 {
		d = r3.Scale(-1, d)
	}
	return d
}
