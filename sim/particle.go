// Package sim spawns and advances live particle emitters from decoded
// archive resources. The simulation is single-threaded and cooperative: the
// host drives one Update per frame and may take read-only render snapshots
// between ticks.
package sim

import "gonum.org/v1/gonum/spatial/r3"

// Particle is one simulated point. Particles live in their owning emitter's
// pool and are mutated every tick by animation curves and behaviors.
type Particle struct {
	// Position is relative to the owning emitter.
	Position        r3.Vec
	Velocity        r3.Vec
	Rotation        float64
	AngularVelocity float64

	BaseScale float64
	AnimScale float64

	Color      r3.Vec
	StartColor r3.Vec
	BaseAlpha  float64
	AnimAlpha  float64
	// AlphaJitter is the per-spawn random alpha factor from the alpha
	// animation's random range.
	AlphaJitter float64

	TexIndex       uint8
	TexFrameOffset uint8
	LoopOffset     float64

	Life     float64 // elapsed, seconds
	LifeTime float64 // configured, seconds

	// EmissionTimer accumulates time for child emission once the child
	// emission delay has passed.
	EmissionTimer float64
	// BehaviorTimer accumulates time for the random behavior's apply
	// interval.
	BehaviorTimer float64

	// Killed marks a particle removed by a collision plane before its
	// natural lifetime ended.
	Killed bool
}

// LifeRate returns the particle's life fraction, clamped to [0, 1].
func (p *Particle) LifeRate() float64 {
	if p.LifeTime <= 0 {
		return 1
	}
	t := p.Life / p.LifeTime
	if t > 1 {
		return 1
	}
	return t
}

// Scale returns the rendered scale, base times animated.
func (p *Particle) Scale() float64 {
	return p.BaseScale * p.AnimScale
}

// Alpha returns the rendered alpha, base times animated times jitter.
func (p *Particle) Alpha() float64 {
	return p.BaseAlpha * p.AnimAlpha * p.AlphaJitter
}

// WorldPosition returns the particle position in world space.
func (p *Particle) WorldPosition(emitterPos r3.Vec) r3.Vec {
	return r3.Add(emitterPos, p.Position)
}
