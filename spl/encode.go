package spl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/fixed"
)

// Encode serializes the archive back to its binary form. The encoder is the
// exact inverse of Decode for every representable field value; float fields
// truncate back to their fixed-point widths, so a decode→encode→decode
// round trip is stable after the first decode.
func (a *Archive) Encode() ([]byte, error) {
	var resBuf bytes.Buffer
	for i := range a.Resources {
		if err := a.Resources[i].checkFlagInvariant(); err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		if err := encodeResource(&resBuf, &a.Resources[i]); err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
	}

	var texBuf bytes.Buffer
	for i := range a.Textures {
		if err := encodeTexture(&texBuf, &a.Textures[i]); err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
	}

	hdr := fileHeaderNative{
		Magic:     Magic,
		Version:   Version,
		ResCount:  uint16(len(a.Resources)),
		TexCount:  uint16(len(a.Textures)),
		ResSize:   uint32(resBuf.Len()),
		TexSize:   uint32(texBuf.Len()),
		TexOffset: uint32(fileHeaderSize + resBuf.Len()),
	}

	var out bytes.Buffer
	out.Grow(fileHeaderSize + resBuf.Len() + texBuf.Len())
	if err := binary.Write(&out, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	out.Write(resBuf.Bytes())
	out.Write(texBuf.Bytes())
	return out.Bytes(), nil
}

// Save encodes the archive and writes it to path.
func (a *Archive) Save(path string) error {
	data, err := a.Encode()
	if err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing archive %s: %w", path, err)
	}
	return nil
}

func encodeResource(w *bytes.Buffer, res *Resource) error {
	native := headerToNative(&res.Header)
	if err := binary.Write(w, binary.LittleEndian, native); err != nil {
		return err
	}

	flags := &res.Header.Flags
	if flags.HasScaleAnim {
		if err := binary.Write(w, binary.LittleEndian, scaleAnimToNative(res.ScaleAnim)); err != nil {
			return err
		}
	}
	if flags.HasColorAnim {
		if err := binary.Write(w, binary.LittleEndian, colorAnimToNative(res.ColorAnim)); err != nil {
			return err
		}
	}
	if flags.HasAlphaAnim {
		if err := binary.Write(w, binary.LittleEndian, alphaAnimToNative(res.AlphaAnim)); err != nil {
			return err
		}
	}
	if flags.HasTexAnim {
		if err := binary.Write(w, binary.LittleEndian, texAnimToNative(res.TexAnim)); err != nil {
			return err
		}
	}
	if flags.HasChildResource {
		if err := binary.Write(w, binary.LittleEndian, childToNative(res.Child)); err != nil {
			return err
		}
	}

	// Behaviors are written in the canonical per-kind order regardless of
	// list order.
	for kind := BehaviorGravity; kind < behaviorKindCount; kind++ {
		b := res.BehaviorByKind(kind)
		if b == nil {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, behaviorToNative(b)); err != nil {
			return err
		}
	}
	return nil
}

func headerToNative(h *ResourceHeader) *resourceHeaderNative {
	n := &resourceHeaderNative{
		Flags:                flagsToNative(&h.Flags),
		EmitterBasePos:       vecToFx32(h.EmitterBasePos),
		EmissionCount:        fixed.FromFloat(h.EmissionCount),
		Radius:               fixed.FromFloat(h.Radius),
		Length:               fixed.FromFloat(h.Length),
		Axis:                 vecToFx16(h.Axis),
		Color:                vecToRgb(h.Color),
		InitVelPosAmplifier:  fixed.FromFloat(h.InitVelPosAmplifier),
		InitVelAxisAmplifier: fixed.FromFloat(h.InitVelAxisAmplifier),
		BaseScale:            fixed.FromFloat(h.BaseScale),
		AspectRatio:          fixed.FromFloat16(h.AspectRatio),
		StartDelay:           secondsToFrames(h.StartDelay),
		MinRotation:          radiansToSignedAngle(h.MinRotation),
		MaxRotation:          radiansToSignedAngle(h.MaxRotation),
		InitAngle:            h.InitAngle,
		EmitterLifeTime:      secondsToFrames(h.EmitterLifeTime),
		ParticleLifeTime:     secondsToFrames(h.ParticleLifeTime),
		PolygonX:             fixed.FromFloat16(h.PolygonX),
		PolygonY:             fixed.FromFloat16(h.PolygonY),
		UserData:             uint32(h.UserData),
	}

	n.RandomAttenuation = packFraction8(h.RandomAttenuation.BaseScale, 0) |
		packFraction8(h.RandomAttenuation.LifeTime, 8) |
		packFraction8(h.RandomAttenuation.InitVel, 16)

	air := (h.Misc.AirResistance - 0.75) / 0.5
	n.Misc0 = uint32(secondsToFrames(h.Misc.EmissionInterval))&0xff |
		packFraction8(h.Misc.BaseAlpha, 8) |
		packFraction8(air, 16) |
		uint32(h.Misc.TextureIndex)<<24
	n.Misc1 = uint32(secondsToFrames(h.Misc.LoopTime))&0xff |
		uint32(h.Misc.DBBScale)<<8 |
		uint32(h.Misc.TextureTileCountS&0x3)<<24 |
		uint32(h.Misc.TextureTileCountT&0x3)<<26 |
		uint32(h.Misc.ScaleAnimDir&0x7)<<28 |
		boolBit(h.Misc.DPolFaceEmitter)<<31
	n.Misc2 = boolBit(h.Misc.FlipTextureS) | boolBit(h.Misc.FlipTextureT)<<1

	return n
}

func flagsToNative(f *ResourceFlags) uint32 {
	bits := uint32(f.EmissionType)&0xf |
		uint32(f.DrawType)&0x3<<4 |
		uint32(f.CircleAxis)&0x3<<6

	bits |= boolBit(f.HasScaleAnim) << 8
	bits |= boolBit(f.HasColorAnim) << 9
	bits |= boolBit(f.HasAlphaAnim) << 10
	bits |= boolBit(f.HasTexAnim) << 11
	bits |= boolBit(f.HasRotation) << 12
	bits |= boolBit(f.RandomInitAngle) << 13
	bits |= boolBit(f.SelfMaintaining) << 14
	bits |= boolBit(f.FollowEmitter) << 15
	bits |= boolBit(f.HasChildResource) << 16
	bits |= uint32(f.PolygonRotAxis) & 0x3 << 17
	bits |= uint32(f.PolygonReferencePlane) & 0x1 << 19
	bits |= boolBit(f.RandomizeLoopedAnim) << 20
	bits |= boolBit(f.DrawChildrenFirst) << 21
	bits |= boolBit(f.HideParent) << 22
	bits |= boolBit(f.UseViewSpace) << 23
	bits |= boolBit(f.HasGravityBehavior) << 24
	bits |= boolBit(f.HasRandomBehavior) << 25
	bits |= boolBit(f.HasMagnetBehavior) << 26
	bits |= boolBit(f.HasSpinBehavior) << 27
	bits |= boolBit(f.HasCollisionPlaneBehavior) << 28
	bits |= boolBit(f.HasConvergenceBehavior) << 29
	bits |= boolBit(f.HasFixedPolygonID) << 30
	bits |= boolBit(f.ChildHasFixedPolygonID) << 31
	return bits
}

func scaleAnimToNative(a *ScaleAnim) *scaleAnimNative {
	return &scaleAnimNative{
		Start: fixed.FromFloat16(a.Start),
		Mid:   fixed.FromFloat16(a.Mid),
		End:   fixed.FromFloat16(a.End),
		Curve: curveInOutNative{
			In:  uint8(frac8(a.Curve.In)),
			Out: uint8(frac8(a.Curve.Out)),
		},
		Flags: uint16(boolBit(a.Loop)),
	}
}

func colorAnimToNative(a *ColorAnim) *colorAnimNative {
	return &colorAnimNative{
		Start: vecToRgb(a.Start),
		End:   vecToRgb(a.End),
		Curve: curveInPeakOutNative{
			In:   uint8(frac8(a.Curve.In)),
			Peak: uint8(frac8(a.Curve.Peak)),
			Out:  uint8(frac8(a.Curve.Out)),
		},
		Flags: uint16(boolBit(a.RandomStartColor) |
			boolBit(a.Loop)<<1 |
			boolBit(a.Interpolate)<<2),
	}
}

func alphaAnimToNative(a *AlphaAnim) *alphaAnimNative {
	return &alphaAnimNative{
		Alpha: frac5(a.Start) | frac5(a.Mid)<<5 | frac5(a.End)<<10,
		Flags: uint16(frac8(a.RandomRange)) | uint16(boolBit(a.Loop))<<8,
		Curve: curveInOutNative{
			In:  uint8(frac8(a.Curve.In)),
			Out: uint8(frac8(a.Curve.Out)),
		},
	}
}

func texAnimToNative(a *TexAnim) *texAnimNative {
	return &texAnimNative{
		Textures: a.Textures,
		Param: uint32(a.Count) |
			frac8(a.Step)<<8 |
			boolBit(a.RandomizeInit)<<16 |
			boolBit(a.Loop)<<17,
	}
}

func childToNative(c *ChildResource) *childResourceNative {
	flags := uint16(boolBit(c.Flags.UsesBehaviors) |
		boolBit(c.Flags.HasScaleAnim)<<1 |
		boolBit(c.Flags.HasAlphaAnim)<<2 |
		uint32(c.Flags.RotationType)&0x3<<3 |
		boolBit(c.Flags.FollowEmitter)<<5 |
		boolBit(c.Flags.UseChildColor)<<6 |
		uint32(c.Flags.DrawType)&0x3<<7 |
		uint32(c.Flags.PolygonRotAxis)&0x3<<9 |
		uint32(c.Flags.PolygonReferencePlane)&0x1<<11)

	misc := uint64(c.Misc.EmissionCount) |
		uint64(frac8(c.Misc.EmissionDelay))<<8 |
		uint64(secondsToFrames(c.Misc.EmissionInterval))&0xff<<16 |
		uint64(c.Misc.Texture)<<24 |
		uint64(c.Misc.TextureTileCountS&0x3)<<32 |
		uint64(c.Misc.TextureTileCountT&0x3)<<34 |
		uint64(boolBit(c.Misc.FlipTextureS))<<36 |
		uint64(boolBit(c.Misc.FlipTextureT))<<37 |
		uint64(boolBit(c.Misc.DPolFaceEmitter))<<38

	return &childResourceNative{
		Flags:            flags,
		RandomInitVelMag: fixed.FromFloat16(c.RandomInitVelMag),
		EndScale:         fixed.FromFloat16(c.EndScale),
		LifeTime:         secondsToFrames(c.LifeTime),
		VelocityRatio:    uint8(frac8(c.VelocityRatio)),
		ScaleRatio:       uint8(frac8(c.ScaleRatio)),
		Color:            vecToRgb(c.Color),
		Misc:             misc,
	}
}

func behaviorToNative(b *Behavior) any {
	switch b.Kind {
	case BehaviorGravity:
		return &gravityBehaviorNative{Magnitude: vecToFx16(b.Acceleration)}
	case BehaviorRandom:
		return &randomBehaviorNative{
			Magnitude:     vecToFx16(b.Magnitude),
			ApplyInterval: secondsToFrames(b.ApplyInterval),
		}
	case BehaviorMagnet:
		return &magnetBehaviorNative{
			Target: vecToFx32(b.Target),
			Force:  fixed.FromFloat16(b.Force),
		}
	case BehaviorSpin:
		return &spinBehaviorNative{
			Angle: fixed.RadiansToAngle(b.Angle),
			Axis:  uint16(b.Axis),
		}
	case BehaviorCollisionPlane:
		return &collisionPlaneBehaviorNative{
			Y:          fixed.FromFloat(b.PlaneY),
			Elasticity: fixed.FromFloat16(b.Elasticity),
			Flags:      uint16(b.Collision) & 0x1,
		}
	case BehaviorConvergence:
		return &convergenceBehaviorNative{
			Target: vecToFx32(b.Target),
			Force:  fixed.FromFloat16(b.Force),
		}
	}
	panic(fmt.Sprintf("spl: unknown behavior kind %d", b.Kind))
}

func encodeTexture(w *bytes.Buffer, tex *Texture) error {
	param := uint32(tex.Param.Format)&0xf |
		uint32(tex.Param.S)&0xf<<4 |
		uint32(tex.Param.T)&0xf<<8 |
		uint32(tex.Param.Repeat)&0x3<<12 |
		uint32(tex.Param.Flip)&0x3<<14 |
		boolBit(tex.Param.PalColor0Transparent)<<16 |
		boolBit(tex.Param.UseSharedTexture)<<17 |
		uint32(tex.Param.SharedTexID)<<18

	hdr := textureHeaderNative{
		ID:           tex.ID,
		Param:        param,
		TextureSize:  uint32(len(tex.TextureData)),
		PaletteSize:  uint32(len(tex.PaletteData)),
		ResourceSize: uint32(textureHeaderSize + len(tex.TextureData) + len(tex.PaletteData)),
	}
	if len(tex.PaletteData) > 0 {
		hdr.PaletteOffset = uint32(textureHeaderSize + len(tex.TextureData))
	}

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	w.Write(tex.TextureData)
	w.Write(tex.PaletteData)
	return nil
}

func vecToFx32(v r3.Vec) vecFx32 {
	return vecFx32{X: fixed.FromFloat(v.X), Y: fixed.FromFloat(v.Y), Z: fixed.FromFloat(v.Z)}
}

func vecToFx16(v r3.Vec) vecFx16 {
	return vecFx16{X: fixed.FromFloat16(v.X), Y: fixed.FromFloat16(v.Y), Z: fixed.FromFloat16(v.Z)}
}

func vecToRgb(v r3.Vec) gxRgb {
	return gxRgb(frac5(v.X) | frac5(v.Y)<<5 | frac5(v.Z)<<10)
}

func radiansToSignedAngle(a float64) int16 {
	return int16(math.Round(a / (2 * math.Pi) * 65536.0))
}

// frac8 maps a [0,1] fraction back to its byte encoding, rounding to the
// nearest representable value so decoded fractions survive a round trip.
func frac8(v float64) uint32 {
	c := math.Round(v * 255)
	if c < 0 {
		c = 0
	} else if c > 255 {
		c = 255
	}
	return uint32(c)
}

// frac5 maps a [0,1] fraction back to its 5-bit encoding.
func frac5(v float64) uint16 {
	c := math.Round(v * 31)
	if c < 0 {
		c = 0
	} else if c > 31 {
		c = 31
	}
	return uint16(c)
}

func packFraction8(v float64, shift uint) uint32 {
	return frac8(v) << shift
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
