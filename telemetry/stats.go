package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated simulation statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Live counts at window end
	Emitters       int `csv:"emitters"`
	Particles      int `csv:"particles"`
	ChildParticles int `csv:"child_particles"`

	// Events during window
	EmissionEvents uint64 `csv:"emission_events"`
	Spawned        uint64 `csv:"spawned"`
	ChildSpawned   uint64 `csv:"child_spawned"`
	Retired        uint64 `csv:"retired"`
	PlaneKilled    uint64 `csv:"plane_killed"`

	// Throughput over the window
	SpawnRate  float64 `csv:"spawn_rate"`
	RetireRate float64 `csv:"retire_rate"`

	// Live particle count distribution, sampled once per tick
	ParticlesMean float64 `csv:"particles_mean"`
	ParticlesP10  float64 `csv:"particles_p10"`
	ParticlesP50  float64 `csv:"particles_p50"`
	ParticlesP90  float64 `csv:"particles_p90"`

	// Life fraction distribution of live particles at window end
	LifeRateMean float64 `csv:"life_rate_mean"`
	LifeRateStd  float64 `csv:"life_rate_std"`
	LifeRateP10  float64 `csv:"life_rate_p10"`
	LifeRateP50  float64 `csv:"life_rate_p50"`
	LifeRateP90  float64 `csv:"life_rate_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean and percentiles from sample values.
func ComputeDistribution(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// ComputeSpread calculates mean, std, and percentiles from sample values.
func ComputeSpread(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean = stat.Mean(values, nil)
	if n > 1 {
		std = stat.StdDev(values, nil)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("emitters", s.Emitters),
		slog.Int("particles", s.Particles),
		slog.Int("child_particles", s.ChildParticles),
		slog.Uint64("emission_events", s.EmissionEvents),
		slog.Uint64("spawned", s.Spawned),
		slog.Uint64("child_spawned", s.ChildSpawned),
		slog.Uint64("retired", s.Retired),
		slog.Uint64("plane_killed", s.PlaneKilled),
		slog.Float64("spawn_rate", s.SpawnRate),
		slog.Float64("retire_rate", s.RetireRate),
		slog.Float64("particles_mean", s.ParticlesMean),
		slog.Float64("particles_p10", s.ParticlesP10),
		slog.Float64("particles_p50", s.ParticlesP50),
		slog.Float64("particles_p90", s.ParticlesP90),
		slog.Float64("life_rate_mean", s.LifeRateMean),
		slog.Float64("life_rate_std", s.LifeRateStd),
		slog.Float64("life_rate_p10", s.LifeRateP10),
		slog.Float64("life_rate_p50", s.LifeRateP50),
		slog.Float64("life_rate_p90", s.LifeRateP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"emitters", s.Emitters,
		"particles", s.Particles,
		"child_particles", s.ChildParticles,
		"emission_events", s.EmissionEvents,
		"spawned", s.Spawned,
		"child_spawned", s.ChildSpawned,
		"retired", s.Retired,
		"plane_killed", s.PlaneKilled,
		"spawn_rate", s.SpawnRate,
		"retire_rate", s.RetireRate,
		"particles_mean", s.ParticlesMean,
		"particles_p50", s.ParticlesP50,
		"life_rate_mean", s.LifeRateMean,
		"life_rate_p50", s.LifeRateP50,
	)
}
