// Package config provides configuration loading and access for the player.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all playback and simulation configuration parameters.
type Config struct {
	Playback  PlaybackConfig  `yaml:"playback"`
	Sim       SimConfig       `yaml:"sim"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PlaybackConfig holds tick pacing parameters.
type PlaybackConfig struct {
	// DT is the seconds advanced per tick. 0 derives it from FPS.
	DT float64 `yaml:"dt"`
	// FPS is the nominal playback rate. The archive format counts frames
	// at 30 per second regardless of the tick rate chosen here.
	FPS int `yaml:"fps"`
	// Realtime paces ticks to wall-clock time instead of running flat out.
	Realtime bool `yaml:"realtime"`
}

// SimConfig holds simulation parameters.
type SimConfig struct {
	PoolCapacity int `yaml:"pool_capacity"` // Particle pool pre-size per emitter

	// AccurateRandom selects the fixed-point randomization arithmetic of
	// the original runtime instead of plain float scaling.
	AccurateRandom bool  `yaml:"accurate_random"`
	Seed           int64 `yaml:"seed"`
}

// TelemetryConfig holds stats collection parameters.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	StatsWindow   float64 `yaml:"stats_window"`    // Seconds per stats window
	PerfWindowLen int     `yaml:"perf_window_len"` // Ticks per perf rolling window
}

// SnapshotsConfig holds particle state dump parameters.
type SnapshotsConfig struct {
	Enabled bool `yaml:"enabled"`
	// EveryTicks writes a snapshot each N ticks; 0 disables periodic dumps.
	EveryTicks int `yaml:"every_ticks"`
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	DT           float64 // Effective seconds per tick
	TicksPerStat int32   // Ticks per telemetry stats window
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Playback.FPS <= 0 {
		c.Playback.FPS = 30
	}
	dt := c.Playback.DT
	if dt <= 0 {
		dt = 1.0 / float64(c.Playback.FPS)
	}
	c.Derived.DT = dt

	window := c.Telemetry.StatsWindow
	if window <= 0 {
		window = 1.0
	}
	ticks := int32(window / dt)
	if ticks < 1 {
		ticks = 1
	}
	c.Derived.TicksPerStat = ticks

	if c.Sim.PoolCapacity <= 0 {
		c.Sim.PoolCapacity = 256
	}
	if c.Telemetry.PerfWindowLen <= 0 {
		c.Telemetry.PerfWindowLen = c.Playback.FPS
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
