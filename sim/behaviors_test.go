package sim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

const tick = 1.0 / spl.FramesPerSecond

func TestGravityBehavior(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:         spl.BehaviorGravity,
			Acceleration: r3.Vec{Y: -0.1},
		}},
	}
	p := &Particle{}
	r := rng.New(1)

	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if math.Abs(p.Velocity.Y+0.1) > 1e-12 {
		t.Errorf("velocity after one frame = %v", p.Velocity.Y)
	}

	// Half-size ticks apply half the impulse each.
	q := &Particle{}
	applyBehaviors(res, q, r3.Vec{}, tick/2, r)
	applyBehaviors(res, q, r3.Vec{}, tick/2, r)
	if math.Abs(q.Velocity.Y-p.Velocity.Y) > 1e-12 {
		t.Errorf("split ticks diverged: %v vs %v", q.Velocity.Y, p.Velocity.Y)
	}
}

func TestRandomBehaviorInterval(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:          spl.BehaviorRandom,
			Magnitude:     r3.Vec{X: 1, Y: 1, Z: 1},
			ApplyInterval: 3 * tick,
		}},
	}
	p := &Particle{}
	r := rng.New(2)

	// Two ticks accumulate without reaching the interval.
	applyBehaviors(res, p, r3.Vec{}, tick, r)
	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if p.Velocity != (r3.Vec{}) {
		t.Fatalf("impulse before interval elapsed: %+v", p.Velocity)
	}

	// Third tick crosses it.
	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if p.Velocity == (r3.Vec{}) {
		t.Error("no impulse after interval elapsed")
	}
}

func TestRandomBehaviorBounds(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:      spl.BehaviorRandom,
			Magnitude: r3.Vec{X: 0.5, Y: 0.25, Z: 1},
		}},
	}
	r := rng.New(3)
	for i := 0; i < 500; i++ {
		p := &Particle{}
		applyBehaviors(res, p, r3.Vec{}, tick, r)
		if math.Abs(p.Velocity.X) > 0.5 || math.Abs(p.Velocity.Y) > 0.25 || math.Abs(p.Velocity.Z) > 1 {
			t.Fatalf("impulse out of bounds: %+v", p.Velocity)
		}
	}
}

func TestMagnetBehaviorSteersTowardTarget(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:   spl.BehaviorMagnet,
			Target: r3.Vec{X: 10},
			Force:  0.5,
		}},
	}
	p := &Particle{Position: r3.Vec{X: 4}}
	emitterPos := r3.Vec{X: 2}
	r := rng.New(4)

	applyBehaviors(res, p, emitterPos, tick, r)
	// World position 6, target 10: pull along +X.
	want := (10.0 - 6.0) * 0.5
	if math.Abs(p.Velocity.X-want) > 1e-12 {
		t.Errorf("magnet impulse = %v, want %v", p.Velocity.X, want)
	}
	if p.Velocity.Y != 0 || p.Velocity.Z != 0 {
		t.Errorf("magnet leaked off-axis velocity: %+v", p.Velocity)
	}
}

func TestSpinBehavior(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:  spl.BehaviorSpin,
			Angle: math.Pi / 16,
			Axis:  spl.SpinAxisZ,
		}},
	}
	p := &Particle{}
	r := rng.New(5)

	for i := 0; i < 8; i++ {
		applyBehaviors(res, p, r3.Vec{}, tick, r)
	}
	if math.Abs(p.Rotation-math.Pi/2) > 1e-12 {
		t.Errorf("rotation after 8 frames = %v, want π/2", p.Rotation)
	}
}

func TestCollisionPlaneKill(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{
			{
				Kind:      spl.BehaviorCollisionPlane,
				PlaneY:    0,
				Collision: spl.CollisionKill,
			},
			// A later behavior must not run on a killed particle.
			{Kind: spl.BehaviorConvergence, Target: r3.Vec{X: 100}, Force: 10},
		},
	}
	res.Header.Flags.HasCollisionPlaneBehavior = true
	res.Header.Flags.HasConvergenceBehavior = true

	p := &Particle{Position: r3.Vec{Y: -0.5}, Velocity: r3.Vec{Y: -1}}
	r := rng.New(6)

	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if !p.Killed {
		t.Fatal("particle below plane not killed")
	}
	if p.Velocity.X != 0 {
		t.Error("behaviors kept running after the kill")
	}
}

func TestCollisionPlaneBounce(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:       spl.BehaviorCollisionPlane,
			PlaneY:     0,
			Elasticity: 0.5,
			Collision:  spl.CollisionBounce,
		}},
	}
	p := &Particle{Position: r3.Vec{Y: -0.25}, Velocity: r3.Vec{Y: -2}}
	r := rng.New(7)

	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if p.Killed {
		t.Fatal("bounce killed the particle")
	}
	if p.Position.Y != 0 {
		t.Errorf("particle not clamped to plane: %v", p.Position.Y)
	}
	if math.Abs(p.Velocity.Y-1) > 1e-12 {
		t.Errorf("reflected velocity = %v, want 1", p.Velocity.Y)
	}
}

func TestCollisionPlaneIgnoresRising(t *testing.T) {
	res := &spl.Resource{
		Behaviors: []spl.Behavior{{
			Kind:      spl.BehaviorCollisionPlane,
			PlaneY:    0,
			Collision: spl.CollisionKill,
		}},
	}
	p := &Particle{Position: r3.Vec{Y: -0.5}, Velocity: r3.Vec{Y: 1}}
	r := rng.New(8)

	applyBehaviors(res, p, r3.Vec{}, tick, r)
	if p.Killed {
		t.Error("rising particle below plane was killed")
	}
}
