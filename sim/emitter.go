package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/fixed"
	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

// EmitterState is a bit set of runtime emitter conditions.
type EmitterState uint8

const (
	// StateTerminate marks the emitter finished; the scene removes it on
	// the next update pass.
	StateTerminate EmitterState = 1 << iota
	// StateEmissionPaused stops new particles while existing ones keep
	// simulating.
	StateEmissionPaused
	// StatePaused freezes the emitter entirely.
	StatePaused
	// StateRenderingDisabled hides the emitter without touching the
	// simulation.
	StateRenderingDisabled
	// StateStarted is set once the start delay has elapsed and the first
	// emission window opened.
	StateStarted
)

// EmitterCounters accumulates lifetime statistics for telemetry.
type EmitterCounters struct {
	EmissionEvents uint64
	Spawned        uint64
	ChildSpawned   uint64
	Retired        uint64
	PlaneKilled    uint64
}

// Emitter is one live instance of an archive resource. Particles are kept
// in insertion order; updates and retirement preserve that order so two
// runs with the same seed produce identical pools.
type Emitter struct {
	archive  *spl.Archive
	resource *spl.Resource
	index    int

	State  EmitterState
	Looped bool

	Position r3.Vec
	Velocity r3.Vec

	Age           float64
	emissionTimer float64

	particles []Particle
	children  []Particle

	Counters EmitterCounters
}

// newEmitter builds an emitter over resource index of the archive. The pool
// capacity only pre-sizes the slices; pools grow past it when needed.
func newEmitter(a *spl.Archive, index int, pos r3.Vec, looped bool, poolCapacity int) *Emitter {
	return &Emitter{
		archive:   a,
		resource:  a.Resource(index),
		index:     index,
		Looped:    looped,
		Position:  pos,
		particles: make([]Particle, 0, poolCapacity),
		children:  make([]Particle, 0, poolCapacity),
	}
}

// Resource returns the recipe this emitter plays.
func (e *Emitter) Resource() *spl.Resource { return e.resource }

// ResourceIndex returns the archive index of the emitter's recipe.
func (e *Emitter) ResourceIndex() int { return e.index }

// Particles returns the live primary particle pool, oldest first. The slice
// is owned by the emitter and valid until the next Update.
func (e *Emitter) Particles() []Particle { return e.particles }

// ChildParticles returns the live child pool, oldest first.
func (e *Emitter) ChildParticles() []Particle { return e.children }

// ParticleCount returns the number of live particles, children included.
func (e *Emitter) ParticleCount() int { return len(e.particles) + len(e.children) }

// Terminated reports whether the emitter finished and can be removed.
func (e *Emitter) Terminated() bool { return e.State&StateTerminate != 0 }

// Kill drops all live particles and marks the emitter for removal.
func (e *Emitter) Kill() {
	e.particles = e.particles[:0]
	e.children = e.children[:0]
	e.State |= StateTerminate
}

// SetEmissionPaused toggles new emission without touching live particles.
func (e *Emitter) SetEmissionPaused(paused bool) {
	if paused {
		e.State |= StateEmissionPaused
	} else {
		e.State &^= StateEmissionPaused
	}
}

// SetPaused freezes or resumes the whole emitter.
func (e *Emitter) SetPaused(paused bool) {
	if paused {
		e.State |= StatePaused
	} else {
		e.State &^= StatePaused
	}
}

// Update advances the emitter by dt seconds: particle integration,
// animation, behaviors, child emission, new emission and retirement, in
// that order.
func (e *Emitter) Update(dt float64, r *rng.Context) {
	if e.State&(StatePaused|StateTerminate) != 0 {
		return
	}
	h := &e.resource.Header

	e.Age += dt
	if delta := r3.Scale(dt, e.Velocity); delta != (r3.Vec{}) {
		e.Position = r3.Add(e.Position, delta)
		if !h.Flags.FollowEmitter {
			// Particle positions are emitter-relative; non-following
			// particles stay put in world space when the emitter moves.
			for i := range e.particles {
				e.particles[i].Position = r3.Sub(e.particles[i].Position, delta)
			}
		}
		// The child pool follows the child resource's own flag.
		if c := e.resource.Child; c != nil && !c.Flags.FollowEmitter {
			for i := range e.children {
				e.children[i].Position = r3.Sub(e.children[i].Position, delta)
			}
		}
	}

	if e.Looped && h.EmitterLifeTime > 0 {
		end := h.StartDelay + h.EmitterLifeTime
		for e.Age >= end {
			e.Age -= h.EmitterLifeTime
		}
	}

	// Existing particles age before this tick's spawns join the pool, so
	// a particle never ages on its spawn tick.
	e.updateParticles(dt, r)
	e.emit(dt, r)
	e.retire()

	if e.doneEmitting() && h.Flags.SelfMaintaining &&
		len(e.particles) == 0 && len(e.children) == 0 {
		e.State |= StateTerminate
	}
}

// doneEmitting reports whether the emission window has closed for good.
func (e *Emitter) doneEmitting() bool {
	h := &e.resource.Header
	if e.Looped || h.EmitterLifeTime <= 0 {
		return false
	}
	return e.Age >= h.StartDelay+h.EmitterLifeTime
}

// emit spawns new particles for every emission interval elapsed this tick.
func (e *Emitter) emit(dt float64, r *rng.Context) {
	h := &e.resource.Header
	if e.State&StateEmissionPaused != 0 {
		return
	}
	if e.Age < h.StartDelay || e.doneEmitting() {
		return
	}
	e.State |= StateStarted

	interval := h.Misc.EmissionInterval
	if interval <= 0 {
		// Zero interval emits once per tick.
		e.emitOnce(r)
		return
	}
	e.emissionTimer += dt
	for e.emissionTimer >= interval {
		e.emissionTimer -= interval
		e.emitOnce(r)
	}
}

// emitOnce runs a single emission event.
func (e *Emitter) emitOnce(r *rng.Context) {
	h := &e.resource.Header
	count := int(h.EmissionCount)
	if count <= 0 {
		return
	}
	e.Counters.EmissionEvents++
	for i := 0; i < count; i++ {
		e.particles = append(e.particles, e.spawn(r))
		e.Counters.Spawned++
	}
}

// spawn initializes one particle from the resource parameters.
func (e *Emitter) spawn(r *rng.Context) Particle {
	h := &e.resource.Header
	res := e.resource

	pos := r3.Add(h.EmitterBasePos, samplePosition(r, h))
	vel := initialVelocity(pos, h)

	// Attenuations only draw from the stream when configured, so recipes
	// without randomness stay draw-for-draw deterministic.
	if att := h.RandomAttenuation.InitVel; att > 0 {
		vel = r3.Scale(r.ScaledRange(1, att), vel)
	}
	scale := h.BaseScale
	if att := h.RandomAttenuation.BaseScale; att > 0 {
		scale = r.ScaledRange(scale, att)
	}
	life := h.ParticleLifeTime
	if att := h.RandomAttenuation.LifeTime; att > 0 {
		life = r.ScaledRange(life, att)
	}

	p := Particle{
		Position:  pos,
		Velocity:  vel,
		BaseScale: scale,
		AnimScale: 1,
		LifeTime:  life,

		Color:       h.Color,
		StartColor:  h.Color,
		BaseAlpha:   h.Misc.BaseAlpha,
		AnimAlpha:   1,
		AlphaJitter: 1,
		TexIndex:    h.Misc.TextureIndex,
	}

	if h.Flags.HasRotation {
		if h.Flags.RandomInitAngle {
			p.Rotation = fixed.AngleToRadians(uint16(r.UintBits(16)))
		} else {
			p.Rotation = fixed.AngleToRadians(h.InitAngle)
		}
		p.AngularVelocity = r.Range(h.MinRotation, h.MaxRotation)
	}

	if a := res.ColorAnim; a != nil {
		if a.RandomStartColor {
			f := r.Float()
			p.StartColor = r3.Add(r3.Scale(1-f, a.Start), r3.Scale(f, a.End))
		} else {
			p.StartColor = a.Start
		}
		p.Color = p.StartColor
	}
	if a := res.AlphaAnim; a != nil && a.RandomRange > 0 {
		p.AlphaJitter = 1 - a.RandomRange*r.Float()
	}
	if a := res.TexAnim; a != nil && a.RandomizeInit && a.Count > 0 {
		p.TexFrameOffset = uint8(r.UintBits(8)) % a.Count
	}
	if h.Flags.RandomizeLoopedAnim && h.Misc.LoopTime > 0 {
		p.LoopOffset = r.Float() * h.Misc.LoopTime
	}
	return p
}

// updateParticles advances both pools one tick.
func (e *Emitter) updateParticles(dt float64, r *rng.Context) {
	h := &e.resource.Header
	drag := math.Pow(h.Misc.AirResistance, dt*spl.FramesPerSecond)

	for i := range e.particles {
		p := &e.particles[i]
		p.Life += dt
		if p.Life >= p.LifeTime {
			continue
		}

		p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
		p.Velocity = r3.Scale(drag, p.Velocity)
		p.Rotation += p.AngularVelocity * dt * spl.FramesPerSecond

		e.animate(p)
		applyBehaviors(e.resource, p, e.Position, dt, r)
		if p.Killed {
			e.Counters.PlaneKilled++
			continue
		}
		e.emitChildren(p, dt, r)
	}

	e.updateChildren(dt, r)
}

// animate applies animation curves at the particle's life fraction.
func (e *Emitter) animate(p *Particle) {
	res := e.resource
	t := p.LifeRate()
	if p.LoopOffset > 0 && p.LifeTime > 0 {
		t += p.LoopOffset / p.LifeTime
	}
	if a := res.ScaleAnim; a != nil {
		p.AnimScale = EvaluateScale(a, t)
	}
	if a := res.ColorAnim; a != nil {
		p.Color = EvaluateColor(a, p.StartColor, t)
	}
	if a := res.AlphaAnim; a != nil {
		p.AnimAlpha = EvaluateAlpha(a, t)
	}
	if a := res.TexAnim; a != nil {
		p.TexIndex = EvaluateTexFrame(a, t, p.TexFrameOffset)
	}
}

// emitChildren spawns child particles from a live parent once the emission
// delay has passed, on the child emission interval.
func (e *Emitter) emitChildren(p *Particle, dt float64, r *rng.Context) {
	child := e.resource.Child
	if child == nil {
		return
	}
	delay := child.Misc.EmissionDelay * p.LifeTime
	if p.Life < delay {
		return
	}

	spawnSet := func() {
		for i := 0; i < int(child.Misc.EmissionCount); i++ {
			e.children = append(e.children, e.spawnChild(p, r))
			e.Counters.ChildSpawned++
		}
	}
	interval := child.Misc.EmissionInterval
	if interval <= 0 {
		spawnSet()
		return
	}
	p.EmissionTimer += dt
	for p.EmissionTimer >= interval {
		p.EmissionTimer -= interval
		spawnSet()
	}
}

// spawnChild initializes one child particle from its parent's state.
func (e *Emitter) spawnChild(parent *Particle, r *rng.Context) Particle {
	child := e.resource.Child

	vel := r3.Scale(child.VelocityRatio, parent.Velocity)
	if child.RandomInitVelMag > 0 {
		vel = r3.Add(vel, r3.Scale(r.AroundZero(child.RandomInitVelMag), r.UnitVector()))
	}

	color := parent.Color
	if child.Flags.UseChildColor {
		color = child.Color
	}

	c := Particle{
		Position:   parent.Position,
		Velocity:   vel,
		Rotation:   parent.Rotation,
		BaseScale:  child.ScaleRatio * parent.Scale(),
		AnimScale:  1,
		LifeTime:   child.LifeTime,
		Color:      color,
		StartColor: color,
		BaseAlpha:  parent.Alpha(),
		AnimAlpha:  1,

		AlphaJitter: 1,
		TexIndex:    child.Misc.Texture,
	}
	switch child.Flags.RotationType {
	case spl.ChildRotInheritAngle:
		c.AngularVelocity = 0
	case spl.ChildRotInheritAngleAndVelocity:
		c.AngularVelocity = parent.AngularVelocity
	default:
		c.Rotation = 0
	}
	return c
}

// updateChildren integrates the child pool. Children run the lightweight
// child animations instead of the parent curves; the resource behaviors
// apply only when the child flags opt in.
func (e *Emitter) updateChildren(dt float64, r *rng.Context) {
	child := e.resource.Child
	if child == nil || len(e.children) == 0 {
		return
	}
	h := &e.resource.Header
	drag := math.Pow(h.Misc.AirResistance, dt*spl.FramesPerSecond)

	for i := range e.children {
		p := &e.children[i]
		p.Life += dt
		if p.Life >= p.LifeTime {
			continue
		}
		p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
		p.Velocity = r3.Scale(drag, p.Velocity)
		p.Rotation += p.AngularVelocity * dt * spl.FramesPerSecond

		t := p.LifeRate()
		if child.Flags.HasScaleAnim {
			p.AnimScale = lerp(1, child.EndScale, t)
		}
		if child.Flags.HasAlphaAnim {
			p.AnimAlpha = 1 - t
		}
		if child.Flags.UsesBehaviors {
			applyBehaviors(e.resource, p, e.Position, dt, r)
			if p.Killed {
				e.Counters.PlaneKilled++
			}
		}
	}
}

// retire drops expired and killed particles from both pools, preserving the
// relative order of the survivors.
func (e *Emitter) retire() {
	e.particles = e.retirePool(e.particles)
	e.children = e.retirePool(e.children)
}

func (e *Emitter) retirePool(pool []Particle) []Particle {
	live := pool[:0]
	for i := range pool {
		p := &pool[i]
		if p.Killed || (p.LifeTime > 0 && p.Life >= p.LifeTime) {
			e.Counters.Retired++
			continue
		}
		live = append(live, *p)
	}
	return live
}
