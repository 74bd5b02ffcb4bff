package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/profile"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/config"
	"github.com/kettleworks/ember/player"
	"github.com/kettleworks/ember/spl"
)

func main() {
	// CLI flags
	archivePath := flag.String("archive", "", "Path to the particle archive to play")
	resourceIndex := flag.Int("resource", 0, "Resource index to spawn (-1 = all)")
	loop := flag.Bool("loop", false, "Restart emitters at the end of their life")
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotEvery := flag.Int("snapshot-every", 0, "Write a particle snapshot each N ticks (0 = off)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = run until all emitters finish)")
	profileMode := flag.String("profile", "", "Enable profiling: cpu or mem")

	flag.Parse()

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *archivePath == "" {
		slog.Error("no archive given, use -archive")
		os.Exit(1)
	}

	archive, err := spl.Load(*archivePath)
	if err != nil {
		slog.Error("failed to load archive", "path", *archivePath, "error", err)
		os.Exit(1)
	}
	slog.Info("archive loaded",
		"path", *archivePath,
		"resources", archive.ResourceCount(),
		"textures", archive.TextureCount(),
	)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	p, err := player.New(archive, player.Options{
		Seed:               rngSeed,
		LogStats:           *logStats,
		StatsWindowSec:     *statsWindow,
		OutputDir:          *outputDir,
		SnapshotEveryTicks: *snapshotEvery,
	})
	if err != nil {
		slog.Error("failed to build player", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	if *resourceIndex < 0 {
		for i := 0; i < archive.ResourceCount(); i++ {
			if err := p.Spawn(i, r3.Vec{}, *loop); err != nil {
				slog.Error("spawn failed", "resource", i, "error", err)
				os.Exit(1)
			}
		}
	} else {
		if err := p.Spawn(*resourceIndex, r3.Vec{}, *loop); err != nil {
			slog.Error("spawn failed", "resource", *resourceIndex, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("starting playback",
		"seed", rngSeed,
		"dt", p.DT(),
		"max_ticks", *maxTicks,
		"loop", *loop,
	)

	var pacing *time.Ticker
	if config.Cfg().Playback.Realtime {
		pacing = time.NewTicker(time.Duration(p.DT() * float64(time.Second)))
		defer pacing.Stop()
	}

	for {
		p.Update()
		if pacing != nil {
			<-pacing.C
		}

		if p.Done() {
			slog.Info("all emitters finished", "tick", p.Tick())
			return
		}
		if *maxTicks > 0 && int(p.Tick()) >= *maxTicks {
			slog.Info("max ticks reached",
				"tick", p.Tick(),
				"particles", p.Scene().ParticleCount(),
			)
			return
		}
	}
}
