// Package rng implements the deterministic random source shared by archive
// playback and particle simulation.
//
// A Context carries all random state explicitly so tests can construct
// independent, reproducible streams instead of sharing a process-wide
// generator. Two numeric policies exist for the damped range helpers: the
// accurate policy reproduces the original hardware's truncating fixed-point
// arithmetic bit for bit, the float policy computes the mathematically
// equivalent range directly and is only guaranteed to stay within bounds.
package rng

import (
	"encoding/binary"
	"hash/crc32"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/fixed"
)

// Context is a deterministic random stream. Not safe for concurrent use; the
// simulation is single-threaded and callers must serialize access themselves.
type Context struct {
	src      *rand.Rand
	accurate bool
	crcSeed  uint32
}

// New returns a Context seeded with seed, using the fixed-point-accurate
// policy for the damped range helpers.
func New(seed int64) *Context {
	return NewFromSource(rand.NewSource(seed), true)
}

// NewInaccurate returns a Context seeded with seed, using the float-only
// policy. Faster, but not bit-compatible with the reference hardware.
func NewInaccurate(seed int64) *Context {
	return NewFromSource(rand.NewSource(seed), false)
}

// NewFromSource builds a Context around an explicit source. Tests use this to
// inject scripted draws.
func NewFromSource(src rand.Source, accurate bool) *Context {
	return &Context{
		src:      rand.New(src),
		accurate: accurate,
		crcSeed:  ^uint32(0),
	}
}

// Accurate reports whether the fixed-point-accurate policy is active.
func (c *Context) Accurate() bool {
	return c.accurate
}

// Uint64 returns the next raw 64-bit draw.
func (c *Context) Uint64() uint64 {
	return c.src.Uint64()
}

// Uint32 returns the next raw 32-bit draw.
func (c *Context) Uint32() uint32 {
	return c.src.Uint32()
}

// UintBits returns the top bits of a 32-bit draw. bits must be in [1, 32].
func (c *Context) UintBits(bits int) uint32 {
	return c.Uint32() >> (32 - bits)
}

// Float returns a uniform value in [0, 1).
func (c *Context) Float() float64 {
	return c.src.Float64()
}

// FloatN returns a uniform value in [-1, 1).
func (c *Context) FloatN() float64 {
	return c.Float()*2 - 1
}

// UnitVector returns a random direction of unit length.
func (c *Context) UnitVector() r3.Vec {
	v := r3.Vec{X: c.FloatN(), Y: c.FloatN(), Z: c.FloatN()}
	if r3.Norm(v) == 0 {
		return r3.Vec{X: 1}
	}
	return r3.Unit(v)
}

// UnitXY returns a random unit direction in the XY plane.
func (c *Context) UnitXY() r3.Vec {
	v := r3.Vec{X: c.FloatN(), Y: c.FloatN()}
	if r3.Norm(v) == 0 {
		return r3.Vec{X: 1}
	}
	return r3.Unit(v)
}

// CRCHash consumes one 64-bit draw and folds it into a running CRC-32
// stream, returning the new hash. The original engine derived secondary
// seeds from primary random values this way.
func (c *Context) CRCHash() uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], c.Uint64())
	c.crcSeed = crc32.Update(c.crcSeed, crc32.IEEETable, buf[:])
	return c.crcSeed
}

// ScaledRange returns a value in [n·(1−variance/2), n·(1+variance/2)].
// variance must be in [0, 1]. The accurate policy carries the hardware's
// truncation bias; the float policy is unbiased.
func (c *Context) ScaledRange(n, variance float64) float64 {
	if c.accurate {
		nx := int32(fixed.FromFloat(n))
		rng := int32(variance * 255)
		v := (nx * (255 - ((rng * int32(c.UintBits(8))) >> 8))) >> 8
		return fixed.ToFloat(fixed.Fx32(v))
	}
	if variance < 0 {
		variance = 0
	} else if variance > 1 {
		variance = 1
	}
	min := n * (1 - variance/2)
	max := n * (1 + variance/2)
	return min + c.Float()*(max-min)
}

// ScaledRange2 returns a value in [n, n·(1+variance)].
func (c *Context) ScaledRange2(n, variance float64) float64 {
	if c.accurate {
		nx := int32(fixed.FromFloat(n))
		rng := int32(variance * 255)
		v := (nx * (255 + rng - ((rng * int32(c.UintBits(8))) >> 7))) >> 8
		return fixed.ToFloat(fixed.Fx32(v))
	}
	return n + c.Float()*(n*variance)
}

// Range returns a uniform value in [min, max).
func (c *Context) Range(min, max float64) float64 {
	return min + c.Float()*(max-min)
}

// AroundZero returns a value in [-rng, rng].
func (c *Context) AroundZero(rng float64) float64 {
	if c.accurate {
		rangeFX := int32(fixed.FromFloat(rng))
		v := (rangeFX*int32(c.UintBits(9)) - (rangeFX << 8)) >> 8
		return fixed.ToFloat(fixed.Fx32(v))
	}
	return c.Range(-rng, rng)
}
