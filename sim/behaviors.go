package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

// applyBehaviors runs each behavior on the resource against one particle,
// in decode order. Per-frame quantities scale by dt*FramesPerSecond so a
// half-rate tick applies half the impulse.
func applyBehaviors(res *spl.Resource, p *Particle, emitterPos r3.Vec, dt float64, r *rng.Context) {
	k := dt * spl.FramesPerSecond
	for i := range res.Behaviors {
		b := &res.Behaviors[i]
		switch b.Kind {
		case spl.BehaviorGravity:
			p.Velocity = r3.Add(p.Velocity, r3.Scale(k, b.Acceleration))

		case spl.BehaviorRandom:
			applyRandomImpulse(b, p, dt, r)

		case spl.BehaviorMagnet, spl.BehaviorConvergence:
			// Both steer toward a world-space target; convergence keeps
			// its own force scale but shares the update rule.
			toTarget := r3.Sub(b.Target, p.WorldPosition(emitterPos))
			p.Velocity = r3.Add(p.Velocity, r3.Scale(b.Force*k, toTarget))

		case spl.BehaviorSpin:
			// Particles carry a single scalar in-plane angle, so the
			// decoded spin axis cannot change this update; it is kept for
			// re-encoding.
			p.Rotation += b.Angle * k

		case spl.BehaviorCollisionPlane:
			if collidePlane(b, p, emitterPos) {
				return
			}
		}
	}
}

// applyRandomImpulse adds a random velocity kick on every elapsed apply
// interval. A zero interval kicks every tick.
func applyRandomImpulse(b *spl.Behavior, p *Particle, dt float64, r *rng.Context) {
	kick := func() {
		p.Velocity = r3.Add(p.Velocity, r3.Vec{
			X: r.AroundZero(b.Magnitude.X),
			Y: r.AroundZero(b.Magnitude.Y),
			Z: r.AroundZero(b.Magnitude.Z),
		})
	}
	if b.ApplyInterval <= 0 {
		kick()
		return
	}
	p.BehaviorTimer += dt
	for p.BehaviorTimer >= b.ApplyInterval {
		p.BehaviorTimer -= b.ApplyInterval
		kick()
	}
}

// collidePlane handles a particle falling through the collision plane.
// Reports true when the particle was killed and no further behaviors should
// run on it this tick.
func collidePlane(b *spl.Behavior, p *Particle, emitterPos r3.Vec) bool {
	worldY := p.Position.Y + emitterPos.Y
	if worldY >= b.PlaneY || p.Velocity.Y >= 0 {
		return false
	}
	if b.Collision == spl.CollisionKill {
		p.Killed = true
		return true
	}
	// Bounce: clamp onto the plane and reflect the vertical velocity,
	// scaled by the elasticity.
	p.Position.Y = b.PlaneY - emitterPos.Y
	p.Velocity.Y = -p.Velocity.Y * b.Elasticity
	return false
}
