package sim

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/spl"
)

func TestSceneSpawnBounds(t *testing.T) {
	s := NewScene(archiveWith(steadyResource()), rng.New(1))
	if _, err := s.Spawn(1, r3.Vec{}, false); err == nil {
		t.Error("spawn past the resource count succeeded")
	}
	if _, err := s.Spawn(-1, r3.Vec{}, false); err == nil {
		t.Error("spawn with a negative index succeeded")
	}
	if _, err := s.Spawn(0, r3.Vec{}, false); err != nil {
		t.Errorf("spawn of a valid index failed: %v", err)
	}
}

func TestSceneUpdateAggregates(t *testing.T) {
	s := NewScene(archiveWith(steadyResource()), rng.New(1))
	for i := 0; i < 3; i++ {
		if _, err := s.Spawn(0, r3.Vec{}, false); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 4; i++ {
		s.Update(step)
	}
	last := s.LastTick()
	if last.Emitters != 3 {
		t.Errorf("emitters = %d, want 3", last.Emitters)
	}
	if last.Spawned != 3 {
		t.Errorf("spawned on last tick = %d, want one per emitter", last.Spawned)
	}
	if got := s.ParticleCount(); got != 12 {
		t.Errorf("particle count after 4 ticks = %d, want 12", got)
	}
	if got := s.Time(); got != 4*step {
		t.Errorf("scene time = %v, want %v", got, 4*step)
	}
}

func TestSceneRemovesTerminatedEmitters(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.SelfMaintaining = true
	res.Header.EmitterLifeTime = 0.25
	res.Header.ParticleLifeTime = 0.25
	s := NewScene(archiveWith(res), rng.New(1))

	entity, err := s.Spawn(0, r3.Vec{}, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 15; i++ {
		s.Update(step)
	}
	if got := s.EmitterCount(); got != 0 {
		t.Errorf("emitter count after termination = %d, want 0", got)
	}
	if s.Get(entity) != nil {
		t.Error("terminated emitter still reachable")
	}
	if s.LastTick().Emitters != 0 {
		t.Errorf("last tick emitters = %d, want 0", s.LastTick().Emitters)
	}
}

func TestSceneKill(t *testing.T) {
	s := NewScene(archiveWith(steadyResource()), rng.New(1))
	entity, err := s.Spawn(0, r3.Vec{}, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		s.Update(step)
	}
	s.Kill(entity)
	if s.Get(entity) != nil {
		t.Error("killed emitter still reachable")
	}
	if got := s.EmitterCount(); got != 0 {
		t.Errorf("emitter count after kill = %d, want 0", got)
	}
	// Killing twice is a no-op.
	s.Kill(entity)
}

func TestSceneLifeRates(t *testing.T) {
	res := steadyResource()
	res.Header.ParticleLifeTime = 4 * step
	s := NewScene(archiveWith(res), rng.New(1))
	if _, err := s.Spawn(0, r3.Vec{}, false); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		s.Update(step)
	}

	rates := s.LifeRates(nil)
	if len(rates) != 4 {
		t.Fatalf("life rates for %d particles, want 4", len(rates))
	}
	for _, f := range rates {
		if f < 0 || f > 1 {
			t.Errorf("life rate %v out of [0,1]", f)
		}
	}
}

func TestSceneForEachVisitsLiveEmitters(t *testing.T) {
	s := NewScene(archiveWith(steadyResource(), steadyResource()), rng.New(1))
	if _, err := s.Spawn(0, r3.Vec{}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Spawn(1, r3.Vec{X: 2}, true); err != nil {
		t.Fatal(err)
	}

	visited := map[int]int{}
	s.ForEach(func(_ ecs.Entity, em *Emitter) {
		visited[em.ResourceIndex()]++
	})
	if len(visited) != 2 || visited[0] != 1 || visited[1] != 1 {
		t.Errorf("visited %v, want each emitter exactly once", visited)
	}
}

func TestSceneDeterminismAcrossRuns(t *testing.T) {
	res := steadyResource()
	res.Header.Flags.EmissionType = spl.EmissionSphere
	res.Header.Radius = 1
	res.Header.InitVelPosAmplifier = 0.5
	res.Header.RandomAttenuation.LifeTime = 0.25

	play := func(seed int64) []Particle {
		s := NewScene(archiveWith(res), rng.New(seed))
		if _, err := s.Spawn(0, r3.Vec{}, false); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 20; i++ {
			s.Update(step)
		}
		var out []Particle
		s.ForEach(func(_ ecs.Entity, em *Emitter) {
			out = append(out, em.Particles()...)
		})
		return out
	}

	a, b := play(1234), play(1234)
	if len(a) == 0 {
		t.Fatal("no particles in the randomized run")
	}
	if len(a) != len(b) {
		t.Fatalf("runs diverged in particle count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d diverged: %+v vs %+v", i, a[i], b[i])
		}
	}
}
