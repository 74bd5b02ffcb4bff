package spl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Magic is the file magic word "SPA " (0x53504120), stored little-endian
// like every other multi-byte field.
const Magic = 0x53504120

// Version is the only archive version this package reads and writes.
const Version = 1

// fileHeaderSize is the size of the file header on disk.
const fileHeaderSize = 32

// ErrInvalidFormat reports a bad magic, version mismatch, truncated stream
// or inconsistent record size. Nothing is partially loaded; decode is all or
// nothing.
var ErrInvalidFormat = errors.New("spl: invalid archive format")

// ErrUnsupportedTextureFormat reports a texture whose pixel expansion the
// downstream renderer does not support. The archive load itself still
// succeeds; callers surface this as a warning.
var ErrUnsupportedTextureFormat = errors.New("spl: unsupported texture format")

// FileHeader is the decoded whole-file header.
type FileHeader struct {
	Magic         uint32
	Version       uint32
	ResourceCount uint16
	TextureCount  uint16
	ResourceSize  uint32
	TextureSize   uint32
	TextureOffset uint32
}

// Archive is a fully decoded particle effect archive.
type Archive struct {
	Header    FileHeader
	Resources []Resource
	Textures  []Texture
}

// Load reads and decodes an archive file.
func Load(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}
	a, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding archive %s: %w", path, err)
	}
	return a, nil
}

// IsValid is a cheap screen for candidate files: it checks only the magic,
// the version and gross size consistency, without decoding any records.
func IsValid(data []byte) bool {
	if len(data) < fileHeaderSize {
		return false
	}
	if binary.LittleEndian.Uint32(data[0:4]) != Magic {
		return false
	}
	if binary.LittleEndian.Uint32(data[4:8]) != Version {
		return false
	}
	resSize := binary.LittleEndian.Uint32(data[16:20])
	texSize := binary.LittleEndian.Uint32(data[20:24])
	return uint64(fileHeaderSize)+uint64(resSize)+uint64(texSize) <= uint64(len(data))
}

// Resource returns the resource at index. The index must be in bounds;
// callers iterate ResourceCount or guard it themselves.
func (a *Archive) Resource(index int) *Resource {
	return &a.Resources[index]
}

// Texture returns the texture at index.
func (a *Archive) Texture(index int) *Texture {
	return &a.Textures[index]
}

// ResourceCount returns the number of decoded resources.
func (a *Archive) ResourceCount() int {
	return len(a.Resources)
}

// TextureCount returns the number of decoded textures.
func (a *Archive) TextureCount() int {
	return len(a.Textures)
}

// checkFlagInvariant verifies that the behavior presence flags and the
// behaviors list stay in lock-step: each kind appears at most once and only
// if its flag bit is set.
func (r *Resource) checkFlagInvariant() error {
	want := map[BehaviorKind]bool{
		BehaviorGravity:        r.Header.Flags.HasGravityBehavior,
		BehaviorRandom:         r.Header.Flags.HasRandomBehavior,
		BehaviorMagnet:         r.Header.Flags.HasMagnetBehavior,
		BehaviorSpin:           r.Header.Flags.HasSpinBehavior,
		BehaviorCollisionPlane: r.Header.Flags.HasCollisionPlaneBehavior,
		BehaviorConvergence:    r.Header.Flags.HasConvergenceBehavior,
	}
	seen := map[BehaviorKind]bool{}
	for _, b := range r.Behaviors {
		if seen[b.Kind] {
			return fmt.Errorf("duplicate %s behavior", b.Kind)
		}
		if !want[b.Kind] {
			return fmt.Errorf("%s behavior present without flag", b.Kind)
		}
		seen[b.Kind] = true
	}
	for kind, flagged := range want {
		if flagged && !seen[kind] {
			return fmt.Errorf("%s behavior flagged but missing", kind)
		}
	}
	return nil
}
