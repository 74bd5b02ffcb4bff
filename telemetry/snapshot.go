package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/mlange-42/ark/ecs"

	"github.com/kettleworks/ember/sim"
)

// Particle kind labels in snapshot rows.
const (
	KindPrimary = "primary"
	KindChild   = "child"
)

// ParticleRow is one live particle's state, flattened for CSV export.
// Snapshot files from two runs with the same seed and tick schedule must be
// byte-identical, which is what makes them usable as parity traces.
type ParticleRow struct {
	Tick     int32  `csv:"tick"`
	Emitter  uint32 `csv:"emitter"`
	Resource int    `csv:"resource"`
	Kind     string `csv:"kind"`
	Index    int    `csv:"index"`

	X    float64 `csv:"x"`
	Y    float64 `csv:"y"`
	Z    float64 `csv:"z"`
	VelX float64 `csv:"vel_x"`
	VelY float64 `csv:"vel_y"`
	VelZ float64 `csv:"vel_z"`

	Rotation float64 `csv:"rotation"`
	Scale    float64 `csv:"scale"`
	Alpha    float64 `csv:"alpha"`

	ColorR float64 `csv:"color_r"`
	ColorG float64 `csv:"color_g"`
	ColorB float64 `csv:"color_b"`

	TexIndex uint8   `csv:"tex_index"`
	Life     float64 `csv:"life"`
	LifeTime float64 `csv:"life_time"`
}

// CollectRows flattens every live particle in the scene into snapshot rows,
// in emitter iteration order with primaries before children.
func CollectRows(scene *sim.Scene, tick int32) []ParticleRow {
	var rows []ParticleRow
	scene.ForEach(func(entity ecs.Entity, em *sim.Emitter) {
		pos := em.Position
		appendPool := func(kind string, pool []sim.Particle) {
			for i := range pool {
				p := &pool[i]
				world := p.WorldPosition(pos)
				rows = append(rows, ParticleRow{
					Tick:     tick,
					Emitter:  uint32(entity.ID()),
					Resource: em.ResourceIndex(),
					Kind:     kind,
					Index:    i,
					X:        world.X,
					Y:        world.Y,
					Z:        world.Z,
					VelX:     p.Velocity.X,
					VelY:     p.Velocity.Y,
					VelZ:     p.Velocity.Z,
					Rotation: p.Rotation,
					Scale:    p.Scale(),
					Alpha:    p.Alpha(),
					ColorR:   p.Color.X,
					ColorG:   p.Color.Y,
					ColorB:   p.Color.Z,
					TexIndex: p.TexIndex,
					Life:     p.Life,
					LifeTime: p.LifeTime,
				})
			}
		}
		appendPool(KindPrimary, em.Particles())
		appendPool(KindChild, em.ChildParticles())
	})
	return rows
}

// SaveSnapshot writes one tick's particle rows to snapshot_<tick>.csv in
// dir. Returns the filepath where it was saved.
func SaveSnapshot(rows []ParticleRow, dir string, tick int32) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("snapshot_%d.csv", tick))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	if err := gocsv.Marshal(rows, f); err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads particle rows back from a snapshot file.
func LoadSnapshot(path string) ([]ParticleRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var rows []ParticleRow
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return rows, nil
}
