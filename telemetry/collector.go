package telemetry

import "github.com/kettleworks/ember/sim"

// Collector accumulates per-tick simulation statistics within time windows
// and produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	windowStartTick int32

	// Event counters for current window
	emissionEvents uint64
	spawned        uint64
	childSpawned   uint64
	retired        uint64
	planeKilled    uint64

	// One live-particle count sample per tick
	particleSamples []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		windowStartTick:     0,
	}
}

// RecordTick folds one scene tick into the current window.
func (c *Collector) RecordTick(ts sim.TickStats) {
	c.emissionEvents += ts.EmissionEvents
	c.spawned += ts.Spawned
	c.childSpawned += ts.ChildSpawned
	c.retired += ts.Retired
	c.planeKilled += ts.PlaneKilled
	c.particleSamples = append(c.particleSamples, float64(ts.Particles+ts.ChildParticles))
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// last carries the live counts at window end; lifeRates holds the life
// fraction of every live particle for the distribution columns.
func (c *Collector) Flush(currentTick int32, last sim.TickStats, lifeRates []float64) WindowStats {
	elapsed := float64(currentTick-c.windowStartTick) * c.dt

	var spawnRate, retireRate float64
	if elapsed > 0 {
		spawnRate = float64(c.spawned+c.childSpawned) / elapsed
		retireRate = float64(c.retired) / elapsed
	}

	poolMean, poolP10, poolP50, poolP90 := ComputeDistribution(c.particleSamples)
	lifeMean, lifeStd, lifeP10, lifeP50, lifeP90 := ComputeSpread(lifeRates)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Emitters:       last.Emitters,
		Particles:      last.Particles,
		ChildParticles: last.ChildParticles,

		EmissionEvents: c.emissionEvents,
		Spawned:        c.spawned,
		ChildSpawned:   c.childSpawned,
		Retired:        c.retired,
		PlaneKilled:    c.planeKilled,

		SpawnRate:  spawnRate,
		RetireRate: retireRate,

		ParticlesMean: poolMean,
		ParticlesP10:  poolP10,
		ParticlesP50:  poolP50,
		ParticlesP90:  poolP90,

		LifeRateMean: lifeMean,
		LifeRateStd:  lifeStd,
		LifeRateP10:  lifeP10,
		LifeRateP50:  lifeP50,
		LifeRateP90:  lifeP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.emissionEvents = 0
	c.spawned = 0
	c.childSpawned = 0
	c.retired = 0
	c.planeKilled = 0
	c.particleSamples = c.particleSamples[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
