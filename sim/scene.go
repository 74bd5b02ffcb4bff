package sim

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

// Options tunes a Scene.
type Options struct {
	// PoolCapacity pre-sizes each emitter's particle pools.
	PoolCapacity int
}

// DefaultPoolCapacity is the particle pool pre-size used when Options does
// not override it.
const DefaultPoolCapacity = 256

// TickStats summarizes the most recent Update for telemetry.
type TickStats struct {
	Emitters       int
	Particles      int
	ChildParticles int
	EmissionEvents uint64
	Spawned        uint64
	ChildSpawned   uint64
	Retired        uint64
	PlaneKilled    uint64
}

// Scene owns every live emitter spawned from one archive. Emitters are
// entities in an ECS world; the per-emitter particle pools stay ordered
// slices so updates within an emitter are deterministic for a fixed seed.
type Scene struct {
	archive *spl.Archive
	rng     *rng.Context

	world   *ecs.World
	mapper  *ecs.Map1[Emitter]
	filter  *ecs.Filter1[Emitter]
	options Options

	time     float64
	lastTick TickStats

	// scratch for the collect-then-remove pass
	dead []ecs.Entity
}

// NewScene builds a scene over the archive with default options.
func NewScene(a *spl.Archive, r *rng.Context) *Scene {
	return NewSceneWithOptions(a, r, Options{})
}

// NewSceneWithOptions builds a scene with explicit tuning.
func NewSceneWithOptions(a *spl.Archive, r *rng.Context, opts Options) *Scene {
	if opts.PoolCapacity <= 0 {
		opts.PoolCapacity = DefaultPoolCapacity
	}
	world := ecs.NewWorld()
	return &Scene{
		archive: a,
		rng:     r,
		world:   world,
		mapper:  ecs.NewMap1[Emitter](world),
		filter:  ecs.NewFilter1[Emitter](world),
		options: opts,
	}
}

// Spawn creates an emitter playing the resource at index, positioned at pos.
// Looped emitters restart instead of terminating at the end of their life.
func (s *Scene) Spawn(index int, pos r3.Vec, looped bool) (ecs.Entity, error) {
	if index < 0 || index >= s.archive.ResourceCount() {
		return ecs.Entity{}, fmt.Errorf("spawn: resource index %d out of range [0,%d)",
			index, s.archive.ResourceCount())
	}
	em := newEmitter(s.archive, index, pos, looped, s.options.PoolCapacity)
	return s.mapper.NewEntity(em), nil
}

// Get returns the emitter component of a live entity, or nil.
func (s *Scene) Get(entity ecs.Entity) *Emitter {
	if !s.world.Alive(entity) {
		return nil
	}
	return s.mapper.Get(entity)
}

// Kill drops the emitter's particles and removes it immediately.
func (s *Scene) Kill(entity ecs.Entity) {
	if em := s.Get(entity); em != nil {
		em.Kill()
		s.world.RemoveEntity(entity)
	}
}

// Update advances every live emitter by dt seconds, then removes the ones
// that terminated. Removal happens after the query pass completes.
func (s *Scene) Update(dt float64) {
	s.time += dt
	stats := TickStats{}
	s.dead = s.dead[:0]

	query := s.filter.Query()
	for query.Next() {
		em := query.Get()
		before := em.Counters
		em.Update(dt, s.rng)

		stats.Emitters++
		stats.Particles += len(em.particles)
		stats.ChildParticles += len(em.children)
		stats.EmissionEvents += em.Counters.EmissionEvents - before.EmissionEvents
		stats.Spawned += em.Counters.Spawned - before.Spawned
		stats.ChildSpawned += em.Counters.ChildSpawned - before.ChildSpawned
		stats.Retired += em.Counters.Retired - before.Retired
		stats.PlaneKilled += em.Counters.PlaneKilled - before.PlaneKilled

		if em.Terminated() {
			s.dead = append(s.dead, query.Entity())
		}
	}
	for _, entity := range s.dead {
		s.world.RemoveEntity(entity)
	}
	stats.Emitters -= len(s.dead)

	s.lastTick = stats
}

// Time returns the accumulated simulated seconds.
func (s *Scene) Time() float64 { return s.time }

// LastTick returns statistics from the most recent Update.
func (s *Scene) LastTick() TickStats { return s.lastTick }

// ForEach visits every live emitter. The callback must not spawn or remove
// emitters.
func (s *Scene) ForEach(fn func(entity ecs.Entity, em *Emitter)) {
	query := s.filter.Query()
	for query.Next() {
		fn(query.Entity(), query.Get())
	}
}

// LifeRates appends the life fraction of every live particle to dst and
// returns it. Used by telemetry distribution columns.
func (s *Scene) LifeRates(dst []float64) []float64 {
	query := s.filter.Query()
	for query.Next() {
		em := query.Get()
		for i := range em.particles {
			dst = append(dst, em.particles[i].LifeRate())
		}
		for i := range em.children {
			dst = append(dst, em.children[i].LifeRate())
		}
	}
	return dst
}

// EmitterCount returns the number of live emitters.
func (s *Scene) EmitterCount() int {
	count := 0
	query := s.filter.Query()
	for query.Next() {
		count++
	}
	return count
}

// ParticleCount returns the number of live particles across all emitters,
// children included.
func (s *Scene) ParticleCount() int {
	count := 0
	query := s.filter.Query()
	for query.Next() {
		count += query.Get().ParticleCount()
	}
	return count
}
