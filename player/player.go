// Package player drives archive playback: it owns the scene, the RNG and
// the telemetry pipeline, and advances them tick by tick.
package player

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/config"
	"github.com/kettleworks/ember/rng"
	"github.com/kettleworks/ember/sim"
	"github.com/kettleworks/ember/spl"
	"github.com/kettleworks/ember/telemetry"
)

// Options configures a playback run.
type Options struct {
	Seed     int64
	LogStats bool

	// StatsWindowSec overrides the config stats window when > 0.
	StatsWindowSec float64

	// OutputDir enables CSV output when non-empty.
	OutputDir string

	// SnapshotEveryTicks writes a particle state dump each N ticks.
	SnapshotEveryTicks int
}

// Player owns one playback run over an archive.
type Player struct {
	archive *spl.Archive
	scene   *sim.Scene
	rng     *rng.Context

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	output    *telemetry.OutputManager

	opts Options
	dt   float64
	tick int32

	lifeRates []float64 // scratch for telemetry flushes
}

// New builds a player over the archive using the loaded configuration.
func New(archive *spl.Archive, opts Options) (*Player, error) {
	cfg := config.Cfg()
	dt := cfg.Derived.DT

	var r *rng.Context
	if cfg.Sim.AccurateRandom {
		r = rng.New(opts.Seed)
	} else {
		r = rng.NewInaccurate(opts.Seed)
	}

	scene := sim.NewSceneWithOptions(archive, r, sim.Options{
		PoolCapacity: cfg.Sim.PoolCapacity,
	})

	statsWindow := cfg.Telemetry.StatsWindow
	if opts.StatsWindowSec > 0 {
		statsWindow = opts.StatsWindowSec
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("telemetry output: %w", err)
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	return &Player{
		archive:   archive,
		scene:     scene,
		rng:       r,
		collector: telemetry.NewCollector(statsWindow, dt),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindowLen),
		output:    output,
		opts:      opts,
		dt:        dt,
	}, nil
}

// Spawn starts an emitter for the archive resource at index.
func (p *Player) Spawn(index int, pos r3.Vec, looped bool) error {
	_, err := p.scene.Spawn(index, pos, looped)
	return err
}

// Scene exposes the underlying scene for inspection.
func (p *Player) Scene() *sim.Scene { return p.scene }

// Tick returns the number of completed update calls.
func (p *Player) Tick() int32 { return p.tick }

// DT returns the seconds advanced per update call.
func (p *Player) DT() float64 { return p.dt }

// Update advances the playback by one tick and runs the telemetry pipeline.
func (p *Player) Update() {
	p.perf.StartTick()

	p.perf.StartPhase(telemetry.PhaseUpdate)
	p.scene.Update(p.dt)
	p.tick++

	if p.opts.SnapshotEveryTicks > 0 && p.tick%int32(p.opts.SnapshotEveryTicks) == 0 {
		p.perf.StartPhase(telemetry.PhaseSnapshot)
		rows := telemetry.CollectRows(p.scene, p.tick)
		if _, err := p.output.WriteSnapshot(rows, p.tick); err != nil {
			slog.Error("snapshot write failed", "tick", p.tick, "error", err)
		}
	}

	p.perf.StartPhase(telemetry.PhaseTelemetry)
	p.collector.RecordTick(p.scene.LastTick())
	if p.collector.ShouldFlush(p.tick) {
		p.flushStats()
	}

	p.perf.EndTick()
}

func (p *Player) flushStats() {
	p.lifeRates = p.scene.LifeRates(p.lifeRates[:0])
	stats := p.collector.Flush(p.tick, p.scene.LastTick(), p.lifeRates)

	if p.opts.LogStats {
		stats.LogStats()
	}
	if err := p.output.WriteTelemetry(stats); err != nil {
		slog.Error("telemetry write failed", "tick", p.tick, "error", err)
	}

	perfStats := p.perf.Stats()
	if p.opts.LogStats {
		perfStats.LogStats()
	}
	if err := p.output.WritePerf(perfStats, p.tick); err != nil {
		slog.Error("perf write failed", "tick", p.tick, "error", err)
	}
}

// Done reports whether every spawned emitter has terminated.
func (p *Player) Done() bool {
	return p.scene.EmitterCount() == 0
}

// Close flushes a final stats window and releases output files.
func (p *Player) Close() error {
	if p.tick > 0 {
		p.flushStats()
	}
	return p.output.Close()
}
