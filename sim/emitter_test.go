package sim

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

// step is a power-of-two tick so accumulated time is exact and spawn and
// retire ticks can be asserted precisely.
const step = 1.0 / 32

// steadyResource is a point emitter spawning one particle per step with a one
// second particle lifetime and no randomization, so runs draw nothing from
// the random stream.
func steadyResource() spl.Resource {
	var res spl.Resource
	h := &res.Header
	h.Flags.EmissionType = spl.EmissionPoint
	h.EmissionCount = 1
	h.BaseScale = 1
	h.AspectRatio = 1
	h.ParticleLifeTime = 1
	h.Misc.EmissionInterval = step
	h.Misc.BaseAlpha = 1
	h.Misc.AirResistance = 1
	return res
}

func archiveWith(resources ...spl.Resource) *spl.Archive {
	return &spl.Archive{Resources: resources}
}

func run(e *Emitter, r *rng.Context, ticks int) {
	for i := 0; i < ticks; i++ {
		e.Update(step, r)
	}
}

func TestSteadyEmission(t *testing.T) {
	a := archiveWith(steadyResource())
	e := newEmitter(a, 0, r3.Vec{}, false, 64)
	r := rng.New(1)

	run(e, r, 32)
	if e.Counters.EmissionEvents != 32 {
		t.Errorf("emission events after 32 ticks = %d, want 32", e.Counters.EmissionEvents)
	}
	if got := len(e.Particles()); got != 32 {
		t.Errorf("live particles after 32 ticks = %d, want 32", got)
	}
	if e.Counters.Retired != 0 {
		t.Errorf("retired before any lifetime elapsed: %d", e.Counters.Retired)
	}

	// The first particle reaches its full lifetime on the next tick; one
	// retires, one spawns, the live count holds.
	run(e, r, 1)
	if e.Counters.Retired != 1 {
		t.Errorf("retired after 33 ticks = %d, want 1", e.Counters.Retired)
	}
	if got := len(e.Particles()); got != 32 {
		t.Errorf("live particles after 33 ticks = %d, want 32", got)
	}
}

func TestSteadyEmissionConsumesNoRandomDraws(t *testing.T) {
	a := archiveWith(steadyResource())
	e := newEmitter(a, 0, r3.Vec{}, false, 64)
	used := rng.New(99)
	fresh := rng.New(99)

	run(e, used, 40)
	for i := 0; i < 4; i++ {
		if got, want := used.UintBits(16), fresh.UintBits(16); got != want {
			t.Fatalf("draw %d: stream advanced during unrandomized run: %d != %d", i, got, want)
		}
	}
}

func TestStartDelay(t *testing.T) {
	res := steadyResource()
	res.Header.StartDelay = 0.5
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 64)
	r := rng.New(1)

	run(e, r, 15)
	if e.Counters.EmissionEvents != 0 {
		t.Errorf("emitted %d events before the start delay", e.Counters.EmissionEvents)
	}
	run(e, r, 1)
	if e.Counters.EmissionEvents != 1 {
		t.Errorf("emission events once the delay elapsed = %d, want 1", e.Counters.EmissionEvents)
	}
}

func TestLifetimePartitionInvariance(t *testing.T) {
	// A particle's retirement depends only on total elapsed time, not on how
	// the ticks slice it.
	res := steadyResource()
	res.Header.ParticleLifeTime = 0.5
	res.Header.EmitterLifeTime = 2 * step // one emission window

	counts := func(dt float64, ticks int) (spawned, retired uint64) {
		e := newEmitter(archiveWith(res), 0, r3.Vec{}, false, 8)
		r := rng.New(1)
		for i := 0; i < ticks; i++ {
			e.Update(dt, r)
		}
		return e.Counters.Spawned, e.Counters.Retired
	}

	// One simulated second in coarse and fine ticks.
	coarseSpawned, coarseRetired := counts(step, 32)
	fineSpawned, fineRetired := counts(step/4, 128)
	if coarseSpawned != fineSpawned || coarseRetired != fineRetired {
		t.Errorf("partitioned runs diverged: coarse %d/%d, fine %d/%d",
			coarseSpawned, coarseRetired, fineSpawned, fineRetired)
	}
	if coarseRetired != coarseSpawned || coarseSpawned == 0 {
		t.Errorf("expected all spawns retired after one second: %d spawned, %d retired",
			coarseSpawned, coarseRetired)
	}
}

func TestSelfMaintainingTermination(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.SelfMaintaining = true
	res.Header.EmitterLifeTime = 0.25
	res.Header.ParticleLifeTime = 0.25
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	// Emission window closes at tick 8; the last particle spawns on tick 7
	// and retires 8 ticks later.
	run(e, r, 14)
	if e.Terminated() {
		t.Fatal("terminated while particles were still live")
	}
	run(e, r, 1)
	if !e.Terminated() {
		t.Fatal("not terminated after the emission window closed and the pool drained")
	}
	if e.Counters.Spawned != 7 || e.Counters.Retired != 7 {
		t.Errorf("spawned %d retired %d, want 7 and 7", e.Counters.Spawned, e.Counters.Retired)
	}
}

func TestLoopedEmitterWrapsInsteadOfStopping(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.SelfMaintaining = true
	res.Header.EmitterLifeTime = 0.25
	res.Header.ParticleLifeTime = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, true, 16)
	r := rng.New(1)

	run(e, r, 40)
	if e.Terminated() {
		t.Fatal("looped emitter terminated")
	}
	if e.Counters.EmissionEvents != 40 {
		t.Errorf("emission events after 40 ticks = %d, want 40", e.Counters.EmissionEvents)
	}
	if e.Age >= res.Header.EmitterLifeTime {
		t.Errorf("age %v did not wrap below the emitter lifetime", e.Age)
	}
}

func TestKillDropsEverything(t *testing.T) {
	a := archiveWith(steadyResource())
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 5)
	if e.ParticleCount() == 0 {
		t.Fatal("no particles before the kill")
	}
	e.Kill()
	if e.ParticleCount() != 0 {
		t.Error("particles survived Kill")
	}
	if !e.Terminated() {
		t.Error("Kill did not mark the emitter terminated")
	}

	// A terminated emitter ignores further updates.
	run(e, r, 3)
	if e.Counters.EmissionEvents != 5 {
		t.Errorf("terminated emitter kept emitting: %d events", e.Counters.EmissionEvents)
	}
}

func TestEmissionPause(t *testing.T) {
	a := archiveWith(steadyResource())
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 4)
	e.SetEmissionPaused(true)
	run(e, r, 4)
	if e.Counters.Spawned != 4 {
		t.Errorf("spawned while emission paused: %d", e.Counters.Spawned)
	}

	oldest := e.Particles()[0]
	if oldest.Life == 0 {
		t.Error("existing particles stopped aging during the emission pause")
	}

	e.SetEmissionPaused(false)
	run(e, r, 1)
	if e.Counters.Spawned != 5 {
		t.Errorf("emission did not resume: %d spawned", e.Counters.Spawned)
	}
}

func TestPauseFreezesEmitter(t *testing.T) {
	a := archiveWith(steadyResource())
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 4)
	e.SetPaused(true)
	run(e, r, 4)
	if e.Counters.Spawned != 4 {
		t.Errorf("spawned while paused: %d", e.Counters.Spawned)
	}
	if e.Particles()[0].Life != 3*step {
		t.Errorf("particles aged while paused: life %v", e.Particles()[0].Life)
	}
}

func TestMovingEmitterLeavesParticlesBehind(t *testing.T) {
	res := steadyResource()
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	e.Velocity = r3.Vec{X: 1}
	r := rng.New(1)

	run(e, r, 1)
	first := e.Particles()[0].WorldPosition(e.Position)

	run(e, r, 6)
	after := e.Particles()[0].WorldPosition(e.Position)
	if math.Abs(after.X-first.X) > 1e-12 {
		t.Errorf("stationary particle drifted with the emitter: %v -> %v", first.X, after.X)
	}
}

func TestFollowEmitterParticlesTrackEmitter(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.FollowEmitter = true
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	e.Velocity = r3.Vec{X: 1}
	r := rng.New(1)

	run(e, r, 1)
	first := e.Particles()[0].WorldPosition(e.Position)

	run(e, r, 6)
	after := e.Particles()[0].WorldPosition(e.Position)
	want := first.X + 6*step
	if math.Abs(after.X-want) > 1e-12 {
		t.Errorf("following particle at %v, want %v", after.X, want)
	}
}

func TestChildEmission(t *testing.T) {
	res := steadyResource()
	// A two-tick emission window with a zero interval yields exactly one
	// parent particle.
	res.Header.EmitterLifeTime = 2 * step
	res.Header.Misc.EmissionInterval = 0
	res.Header.Flags.HasChildResource = true
	res.Child = &spl.ChildResource{
		LifeTime:      0.25,
		VelocityRatio: 1,
		ScaleRatio:    0.5,
		Color:         r3.Vec{X: 1},
	}
	res.Child.Misc.EmissionCount = 1
	res.Child.Misc.EmissionDelay = 0.5
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	if run(e, r, 1); e.Counters.Spawned != 1 {
		t.Fatalf("parent spawns = %d, want 1", e.Counters.Spawned)
	}
	run(e, r, 1)
	if e.Counters.Spawned != 1 {
		t.Fatalf("emission window stayed open: %d parents", e.Counters.Spawned)
	}

	// The emission delay is half of the parent's one second lifetime; the
	// parent reaches it on tick 17 and spawns one child per tick after.
	run(e, r, 14)
	if e.Counters.ChildSpawned != 0 {
		t.Fatalf("children before the emission delay: %d", e.Counters.ChildSpawned)
	}
	run(e, r, 1)
	if e.Counters.ChildSpawned != 1 {
		t.Fatalf("children once the delay elapsed = %d, want 1", e.Counters.ChildSpawned)
	}

	c := e.ChildParticles()[0]
	if c.BaseScale != 0.5 {
		t.Errorf("child scale = %v, want parent scale halved", c.BaseScale)
	}
	if c.LifeTime != 0.25 {
		t.Errorf("child lifetime = %v, want 0.25", c.LifeTime)
	}
	if c.Color != (res.Header.Color) {
		t.Errorf("child color = %+v, want inherited parent color", c.Color)
	}
}

func TestChildUsesOwnColorWhenFlagged(t *testing.T) {
	res := steadyResource()
	res.Header.EmitterLifeTime = 2 * step
	res.Header.Misc.EmissionInterval = 0
	res.Header.Flags.HasChildResource = true
	res.Child = &spl.ChildResource{
		LifeTime:   0.25,
		ScaleRatio: 1,
		Color:      r3.Vec{X: 0.5, Y: 0.25},
	}
	res.Child.Flags.UseChildColor = true
	res.Child.Misc.EmissionCount = 2
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 2)
	if got := len(e.ChildParticles()); got != 2 {
		t.Fatalf("children after delay zero = %d, want 2", got)
	}
	if c := e.ChildParticles()[0]; c.Color != res.Child.Color {
		t.Errorf("child color = %+v, want the child resource color", c.Color)
	}
}

func TestChildBehaviorsApplyWhenFlagged(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.HasGravityBehavior = true
	res.Header.Flags.HasChildResource = true
	res.Behaviors = []spl.Behavior{{Kind: spl.BehaviorGravity, Acceleration: r3.Vec{Y: -1}}}
	res.Child = &spl.ChildResource{LifeTime: 1, ScaleRatio: 1}
	res.Child.Flags.UsesBehaviors = true
	res.Child.Misc.EmissionCount = 1
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 6)
	if len(e.ChildParticles()) == 0 {
		t.Fatal("no children spawned")
	}
	if vy := e.ChildParticles()[0].Velocity.Y; vy >= 0 {
		t.Errorf("gravity left the oldest child velocity at %v, want negative", vy)
	}
	if vy := e.Particles()[0].Velocity.Y; vy >= 0 {
		t.Errorf("gravity left the oldest parent velocity at %v, want negative", vy)
	}
}

func TestChildSkipsBehaviorsWithoutFlag(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.HasGravityBehavior = true
	res.Header.Flags.HasChildResource = true
	res.Behaviors = []spl.Behavior{{Kind: spl.BehaviorGravity, Acceleration: r3.Vec{Y: -1}}}
	res.Child = &spl.ChildResource{LifeTime: 1, ScaleRatio: 1}
	res.Child.Misc.EmissionCount = 1
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 6)
	if len(e.ChildParticles()) == 0 {
		t.Fatal("no children spawned")
	}
	if vy := e.ChildParticles()[0].Velocity.Y; vy != 0 {
		t.Errorf("behaviors reached an opted-out child: velocity %v", vy)
	}
}

func TestChildPlaneKillCountsAndRetires(t *testing.T) {
	// Parents launch upward and stay above the plane while their children
	// spawn with zero velocity and fall through it.
	res := steadyResource()
	res.Header.Axis = r3.Vec{Y: 1}
	res.Header.InitVelAxisAmplifier = 10
	res.Header.Flags.HasGravityBehavior = true
	res.Header.Flags.HasCollisionPlaneBehavior = true
	res.Header.Flags.HasChildResource = true
	res.Behaviors = []spl.Behavior{
		{Kind: spl.BehaviorGravity, Acceleration: r3.Vec{Y: -1}},
		{Kind: spl.BehaviorCollisionPlane, PlaneY: 0, Collision: spl.CollisionKill},
	}
	res.Child = &spl.ChildResource{LifeTime: 1, ScaleRatio: 1}
	res.Child.Flags.UsesBehaviors = true
	res.Child.Misc.EmissionCount = 1
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 7)
	if e.Counters.PlaneKilled != 0 {
		t.Fatalf("plane kills before any child fell through: %d", e.Counters.PlaneKilled)
	}
	run(e, r, 1)
	if e.Counters.PlaneKilled != 1 {
		t.Errorf("plane kills after the oldest child crossed = %d, want 1", e.Counters.PlaneKilled)
	}
	for i, c := range e.ChildParticles() {
		if c.Killed {
			t.Errorf("killed child %d survived retirement", i)
		}
	}
}

func TestChildFollowsOwnFollowFlag(t *testing.T) {
	// The parent pool tracks the moving emitter while the child resource
	// opts out and its particles hold their world position.
	res := steadyResource()
	res.Header.Flags.FollowEmitter = true
	res.Header.EmitterLifeTime = 2 * step
	res.Header.Misc.EmissionInterval = 0
	res.Header.Flags.HasChildResource = true
	res.Child = &spl.ChildResource{LifeTime: 1, ScaleRatio: 1}
	res.Child.Misc.EmissionCount = 1
	res.Child.Misc.EmissionInterval = step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	e.Velocity = r3.Vec{X: 1}
	r := rng.New(1)

	run(e, r, 2)
	if len(e.ChildParticles()) != 1 {
		t.Fatalf("children after two ticks = %d, want 1", len(e.ChildParticles()))
	}
	childWorld := e.ChildParticles()[0].WorldPosition(e.Position)

	run(e, r, 6)
	parentWorld := e.Particles()[0].WorldPosition(e.Position)
	if want := 8 * step; math.Abs(parentWorld.X-want) > 1e-12 {
		t.Errorf("following parent at %v, want %v", parentWorld.X, want)
	}
	after := e.ChildParticles()[0].WorldPosition(e.Position)
	if math.Abs(after.X-childWorld.X) > 1e-12 {
		t.Errorf("non-following child drifted with the emitter: %v -> %v",
			childWorld.X, after.X)
	}
}

func TestRetirePreservesOrder(t *testing.T) {
	res := steadyResource()
	res.Header.ParticleLifeTime = 4 * step
	a := archiveWith(res)
	e := newEmitter(a, 0, r3.Vec{}, false, 16)
	r := rng.New(1)

	run(e, r, 10)
	pool := e.Particles()
	for i := 1; i < len(pool); i++ {
		if pool[i].Life > pool[i-1].Life {
			t.Fatalf("pool out of insertion order at %d: %v then %v",
				i, pool[i-1].Life, pool[i].Life)
		}
	}
}
