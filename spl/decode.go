package spl

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kettleworks/ember/fixed"
)

// Native record layouts, mirroring the file format byte for byte. Reserved
// and padding fields are kept so encoding/binary reads the exact record
// sizes.

type fileHeaderNative struct {
	Magic     uint32
	Version   uint32
	ResCount  uint16
	TexCount  uint16
	Reserved0 uint32
	ResSize   uint32
	TexSize   uint32
	TexOffset uint32
	Reserved1 uint32
}

type vecFx32 struct {
	X, Y, Z fixed.Fx32
}

type vecFx16 struct {
	X, Y, Z fixed.Fx16
}

func (v vecFx32) toVec() r3.Vec {
	return r3.Vec{X: fixed.ToFloat(v.X), Y: fixed.ToFloat(v.Y), Z: fixed.ToFloat(v.Z)}
}

func (v vecFx16) toVec() r3.Vec {
	return r3.Vec{X: fixed.ToFloat16(v.X), Y: fixed.ToFloat16(v.Y), Z: fixed.ToFloat16(v.Z)}
}

// gxRgb is a packed 15-bit RGB555 color.
type gxRgb uint16

func (c gxRgb) toVec() r3.Vec {
	return r3.Vec{
		X: float64(c&0x1f) / 31.0,
		Y: float64((c>>5)&0x1f) / 31.0,
		Z: float64((c>>10)&0x1f) / 31.0,
	}
}

type resourceHeaderNative struct {
	Flags                uint32
	EmitterBasePos       vecFx32
	EmissionCount        fixed.Fx32
	Radius               fixed.Fx32
	Length               fixed.Fx32
	Axis                 vecFx16
	Color                gxRgb
	InitVelPosAmplifier  fixed.Fx32
	InitVelAxisAmplifier fixed.Fx32
	BaseScale            fixed.Fx32
	AspectRatio          fixed.Fx16
	StartDelay           uint16
	MinRotation          int16
	MaxRotation          int16
	InitAngle            uint16
	Reserved             uint16
	EmitterLifeTime      uint16
	ParticleLifeTime     uint16
	RandomAttenuation    uint32
	Misc0                uint32
	Misc1                uint32
	Misc2                uint32
	PolygonX             fixed.Fx16
	PolygonY             fixed.Fx16
	UserData             uint32
}

type curveInOutNative struct {
	In  uint8
	Out uint8
}

type curveInPeakOutNative struct {
	In   uint8
	Peak uint8
	Out  uint8
	Pad  uint8
}

type scaleAnimNative struct {
	Start   fixed.Fx16
	Mid     fixed.Fx16
	End     fixed.Fx16
	Curve   curveInOutNative
	Flags   uint16
	Padding uint16
}

type colorAnimNative struct {
	Start   gxRgb
	End     gxRgb
	Curve   curveInPeakOutNative
	Flags   uint16
	Padding uint16
}

type alphaAnimNative struct {
	Alpha   uint16
	Flags   uint16
	Curve   curveInOutNative
	Padding uint16
}

type texAnimNative struct {
	Textures [8]uint8
	Param    uint32
}

type childResourceNative struct {
	Flags            uint16
	RandomInitVelMag fixed.Fx16
	EndScale         fixed.Fx16
	LifeTime         uint16
	VelocityRatio    uint8
	ScaleRatio       uint8
	Color            gxRgb
	Misc             uint64
}

type gravityBehaviorNative struct {
	Magnitude vecFx16
	Padding   uint16
}

type randomBehaviorNative struct {
	Magnitude     vecFx16
	ApplyInterval uint16
}

type magnetBehaviorNative struct {
	Target  vecFx32
	Force   fixed.Fx16
	Padding uint16
}

type spinBehaviorNative struct {
	Angle uint16
	Axis  uint16
}

type collisionPlaneBehaviorNative struct {
	Y          fixed.Fx32
	Elasticity fixed.Fx16
	Flags      uint16
}

type convergenceBehaviorNative struct {
	Target  vecFx32
	Force   fixed.Fx16
	Padding uint16
}

type textureHeaderNative struct {
	ID            uint32
	Param         uint32
	TextureSize   uint32
	PaletteOffset uint32
	PaletteSize   uint32
	Unused0       uint32
	Unused1       uint32
	ResourceSize  uint32
}

const textureHeaderSize = 32

// decoder walks the archive bytes, tracking the absolute offset for error
// reporting.
type decoder struct {
	r    *bytes.Reader
	size int
}

func (d *decoder) offset() int {
	return d.size - d.r.Len()
}

func (d *decoder) read(v any) error {
	off := d.offset()
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: truncated read at offset %d", ErrInvalidFormat, off)
	}
	return nil
}

func (d *decoder) readBytes(n uint32) ([]byte, error) {
	off := d.offset()
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated read of %d bytes at offset %d", ErrInvalidFormat, n, off)
	}
	return buf, nil
}

// Decode parses raw archive bytes into resources and textures. Any truncated
// read, invalid enum discriminant or size mismatch fails the whole decode;
// partial results are discarded.
func Decode(data []byte) (*Archive, error) {
	d := &decoder{r: bytes.NewReader(data), size: len(data)}

	var hdr fileHeaderNative
	if err := d.read(&hdr); err != nil {
		return nil, err
	}
	if hdr.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidFormat, hdr.Magic)
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, hdr.Version)
	}

	a := &Archive{
		Header: FileHeader{
			Magic:         hdr.Magic,
			Version:       hdr.Version,
			ResourceCount: hdr.ResCount,
			TextureCount:  hdr.TexCount,
			ResourceSize:  hdr.ResSize,
			TextureSize:   hdr.TexSize,
			TextureOffset: hdr.TexOffset,
		},
		Resources: make([]Resource, 0, hdr.ResCount),
		Textures:  make([]Texture, 0, hdr.TexCount),
	}

	for i := 0; i < int(hdr.ResCount); i++ {
		res, err := d.decodeResource()
		if err != nil {
			return nil, fmt.Errorf("resource %d: %w", i, err)
		}
		if err := res.checkFlagInvariant(); err != nil {
			return nil, fmt.Errorf("resource %d: %w: %v", i, ErrInvalidFormat, err)
		}
		a.Resources = append(a.Resources, *res)
	}

	for i := 0; i < int(hdr.TexCount); i++ {
		tex, err := d.decodeTexture()
		if err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}
		a.Textures = append(a.Textures, *tex)
	}

	return a, nil
}

func (d *decoder) decodeResource() (*Resource, error) {
	var native resourceHeaderNative
	if err := d.read(&native); err != nil {
		return nil, err
	}

	header, err := headerFromNative(&native)
	if err != nil {
		return nil, err
	}
	res := &Resource{Header: *header}
	flags := &res.Header.Flags

	// Optional records follow the header in a fixed canonical order. The
	// flag bits, not the file order, discriminate the record kinds.
	if flags.HasScaleAnim {
		var n scaleAnimNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.ScaleAnim = scaleAnimFromNative(&n)
	}
	if flags.HasColorAnim {
		var n colorAnimNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.ColorAnim = colorAnimFromNative(&n)
	}
	if flags.HasAlphaAnim {
		var n alphaAnimNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.AlphaAnim = alphaAnimFromNative(&n)
	}
	if flags.HasTexAnim {
		var n texAnimNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.TexAnim = texAnimFromNative(&n)
	}
	if flags.HasChildResource {
		var n childResourceNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		child, err := childFromNative(&n)
		if err != nil {
			return nil, err
		}
		res.Child = child
	}

	if flags.HasGravityBehavior {
		var n gravityBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:         BehaviorGravity,
			Acceleration: n.Magnitude.toVec(),
		})
	}
	if flags.HasRandomBehavior {
		var n randomBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:          BehaviorRandom,
			Magnitude:     n.Magnitude.toVec(),
			ApplyInterval: framesToSeconds(n.ApplyInterval),
		})
	}
	if flags.HasMagnetBehavior {
		var n magnetBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:   BehaviorMagnet,
			Target: n.Target.toVec(),
			Force:  fixed.ToFloat16(n.Force),
		})
	}
	if flags.HasSpinBehavior {
		var n spinBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		if n.Axis > uint16(SpinAxisZ) {
			return nil, fmt.Errorf("%w: invalid spin axis %d", ErrInvalidFormat, n.Axis)
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:  BehaviorSpin,
			Angle: fixed.AngleToRadians(n.Angle),
			Axis:  SpinAxis(n.Axis),
		})
	}
	if flags.HasCollisionPlaneBehavior {
		var n collisionPlaneBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:       BehaviorCollisionPlane,
			PlaneY:     fixed.ToFloat(n.Y),
			Elasticity: fixed.ToFloat16(n.Elasticity),
			Collision:  CollisionAction(n.Flags & 0x1),
		})
	}
	if flags.HasConvergenceBehavior {
		var n convergenceBehaviorNative
		if err := d.read(&n); err != nil {
			return nil, err
		}
		res.Behaviors = append(res.Behaviors, Behavior{
			Kind:   BehaviorConvergence,
			Target: n.Target.toVec(),
			Force:  fixed.ToFloat16(n.Force),
		})
	}

	return res, nil
}

func headerFromNative(native *resourceHeaderNative) (*ResourceHeader, error) {
	flags, err := flagsFromNative(native.Flags)
	if err != nil {
		return nil, err
	}

	h := &ResourceHeader{
		Flags:                *flags,
		EmitterBasePos:       native.EmitterBasePos.toVec(),
		EmissionCount:        fixed.ToFloat(native.EmissionCount),
		Radius:               fixed.ToFloat(native.Radius),
		Length:               fixed.ToFloat(native.Length),
		Axis:                 native.Axis.toVec(),
		Color:                native.Color.toVec(),
		InitVelPosAmplifier:  fixed.ToFloat(native.InitVelPosAmplifier),
		InitVelAxisAmplifier: fixed.ToFloat(native.InitVelAxisAmplifier),
		BaseScale:            fixed.ToFloat(native.BaseScale),
		AspectRatio:          fixed.ToFloat16(native.AspectRatio),
		StartDelay:           framesToSeconds(native.StartDelay),
		MinRotation:          fixed.SignedAngleToRadians(native.MinRotation),
		MaxRotation:          fixed.SignedAngleToRadians(native.MaxRotation),
		InitAngle:            native.InitAngle,
		EmitterLifeTime:      framesToSeconds(native.EmitterLifeTime),
		ParticleLifeTime:     framesToSeconds(native.ParticleLifeTime),
		PolygonX:             fixed.ToFloat16(native.PolygonX),
		PolygonY:             fixed.ToFloat16(native.PolygonY),
		UserData:             uint8(native.UserData & 0xff),
	}

	h.RandomAttenuation.BaseScale = unpackFraction8(native.RandomAttenuation, 0)
	h.RandomAttenuation.LifeTime = unpackFraction8(native.RandomAttenuation, 8)
	h.RandomAttenuation.InitVel = unpackFraction8(native.RandomAttenuation, 16)

	// Misc word 0: emission interval, base alpha, air resistance, texture
	// index, one byte each.
	h.Misc.EmissionInterval = framesToSeconds(uint16(native.Misc0 & 0xff))
	h.Misc.BaseAlpha = unpackFraction8(native.Misc0, 8)
	h.Misc.AirResistance = 0.75 + unpackFraction8(native.Misc0, 16)*0.5
	h.Misc.TextureIndex = uint8(native.Misc0 >> 24)

	// Misc word 1: loop frames, directional-billboard scale, tile counts,
	// scale animation direction, polygon facing.
	h.Misc.LoopTime = framesToSeconds(uint16(native.Misc1 & 0xff))
	h.Misc.DBBScale = uint16(native.Misc1 >> 8)
	h.Misc.TextureTileCountS = uint8(native.Misc1 >> 24 & 0x3)
	h.Misc.TextureTileCountT = uint8(native.Misc1 >> 26 & 0x3)
	scaleAnimDir := uint8(native.Misc1 >> 28 & 0x7)
	if scaleAnimDir > uint8(ScaleAnimY) {
		return nil, fmt.Errorf("%w: invalid scale anim direction %d", ErrInvalidFormat, scaleAnimDir)
	}
	h.Misc.ScaleAnimDir = ScaleAnimDir(scaleAnimDir)
	h.Misc.DPolFaceEmitter = native.Misc1>>31&0x1 != 0

	// Misc word 2: texture flips.
	h.Misc.FlipTextureS = native.Misc2&0x1 != 0
	h.Misc.FlipTextureT = native.Misc2>>1&0x1 != 0

	return h, nil
}

func flagsFromNative(bits uint32) (*ResourceFlags, error) {
	emissionType := uint8(bits & 0xf)
	if emissionType >= uint8(emissionTypeCount) {
		return nil, fmt.Errorf("%w: invalid emission type %d", ErrInvalidFormat, emissionType)
	}
	drawType := uint8(bits >> 4 & 0x3)

	f := &ResourceFlags{
		EmissionType: EmissionType(emissionType),
		DrawType:     DrawType(drawType),
		CircleAxis:   CircleAxis(bits >> 6 & 0x3),

		HasScaleAnim:    bits>>8&0x1 != 0,
		HasColorAnim:    bits>>9&0x1 != 0,
		HasAlphaAnim:    bits>>10&0x1 != 0,
		HasTexAnim:      bits>>11&0x1 != 0,
		HasRotation:     bits>>12&0x1 != 0,
		RandomInitAngle: bits>>13&0x1 != 0,
		SelfMaintaining: bits>>14&0x1 != 0,
		FollowEmitter:   bits>>15&0x1 != 0,

		HasChildResource:      bits>>16&0x1 != 0,
		PolygonRotAxis:        PolygonRotAxis(bits >> 17 & 0x3),
		PolygonReferencePlane: uint8(bits >> 19 & 0x1),
		RandomizeLoopedAnim:   bits>>20&0x1 != 0,
		DrawChildrenFirst:     bits>>21&0x1 != 0,
		HideParent:            bits>>22&0x1 != 0,
		UseViewSpace:          bits>>23&0x1 != 0,

		HasGravityBehavior:        bits>>24&0x1 != 0,
		HasRandomBehavior:         bits>>25&0x1 != 0,
		HasMagnetBehavior:         bits>>26&0x1 != 0,
		HasSpinBehavior:           bits>>27&0x1 != 0,
		HasCollisionPlaneBehavior: bits>>28&0x1 != 0,
		HasConvergenceBehavior:    bits>>29&0x1 != 0,

		HasFixedPolygonID:      bits>>30&0x1 != 0,
		ChildHasFixedPolygonID: bits>>31&0x1 != 0,
	}
	return f, nil
}

func scaleAnimFromNative(n *scaleAnimNative) *ScaleAnim {
	return &ScaleAnim{
		Start: fixed.ToFloat16(n.Start),
		Mid:   fixed.ToFloat16(n.Mid),
		End:   fixed.ToFloat16(n.End),
		Curve: CurveInOut{
			In:  float64(n.Curve.In) / 255.0,
			Out: float64(n.Curve.Out) / 255.0,
		},
		Loop: n.Flags&0x1 != 0,
	}
}

func colorAnimFromNative(n *colorAnimNative) *ColorAnim {
	return &ColorAnim{
		Start: n.Start.toVec(),
		End:   n.End.toVec(),
		Curve: CurveInPeakOut{
			In:   float64(n.Curve.In) / 255.0,
			Peak: float64(n.Curve.Peak) / 255.0,
			Out:  float64(n.Curve.Out) / 255.0,
		},
		RandomStartColor: n.Flags&0x1 != 0,
		Loop:             n.Flags>>1&0x1 != 0,
		Interpolate:      n.Flags>>2&0x1 != 0,
	}
}

func alphaAnimFromNative(n *alphaAnimNative) *AlphaAnim {
	return &AlphaAnim{
		Start:       float64(n.Alpha&0x1f) / 31.0,
		Mid:         float64(n.Alpha>>5&0x1f) / 31.0,
		End:         float64(n.Alpha>>10&0x1f) / 31.0,
		RandomRange: float64(n.Flags&0xff) / 255.0,
		Loop:        n.Flags>>8&0x1 != 0,
		Curve: CurveInOut{
			In:  float64(n.Curve.In) / 255.0,
			Out: float64(n.Curve.Out) / 255.0,
		},
	}
}

func texAnimFromNative(n *texAnimNative) *TexAnim {
	anim := &TexAnim{
		Textures:      n.Textures,
		Count:         uint8(n.Param & 0xff),
		Step:          float64(n.Param>>8&0xff) / 255.0,
		RandomizeInit: n.Param>>16&0x1 != 0,
		Loop:          n.Param>>17&0x1 != 0,
	}
	if anim.Count > 8 {
		anim.Count = 8
	}
	return anim
}

func childFromNative(n *childResourceNative) (*ChildResource, error) {
	rotType := uint8(n.Flags >> 3 & 0x3)
	if rotType > uint8(ChildRotInheritAngleAndVelocity) {
		return nil, fmt.Errorf("%w: invalid child rotation type %d", ErrInvalidFormat, rotType)
	}
	drawType := uint8(n.Flags >> 7 & 0x3)

	c := &ChildResource{
		Flags: ChildResourceFlags{
			UsesBehaviors:         n.Flags&0x1 != 0,
			HasScaleAnim:          n.Flags>>1&0x1 != 0,
			HasAlphaAnim:          n.Flags>>2&0x1 != 0,
			RotationType:          ChildRotationType(rotType),
			FollowEmitter:         n.Flags>>5&0x1 != 0,
			UseChildColor:         n.Flags>>6&0x1 != 0,
			DrawType:              DrawType(drawType),
			PolygonRotAxis:        PolygonRotAxis(n.Flags >> 9 & 0x3),
			PolygonReferencePlane: uint8(n.Flags >> 11 & 0x1),
		},
		RandomInitVelMag: fixed.ToFloat16(n.RandomInitVelMag),
		EndScale:         fixed.ToFloat16(n.EndScale),
		LifeTime:         framesToSeconds(n.LifeTime),
		VelocityRatio:    float64(n.VelocityRatio) / 255.0,
		ScaleRatio:       float64(n.ScaleRatio) / 255.0,
		Color:            n.Color.toVec(),
	}

	c.Misc.EmissionCount = uint8(n.Misc & 0xff)
	c.Misc.EmissionDelay = float64(n.Misc>>8&0xff) / 255.0
	c.Misc.EmissionInterval = framesToSeconds(uint16(n.Misc >> 16 & 0xff))
	c.Misc.Texture = uint8(n.Misc >> 24 & 0xff)
	c.Misc.TextureTileCountS = uint8(n.Misc >> 32 & 0x3)
	c.Misc.TextureTileCountT = uint8(n.Misc >> 34 & 0x3)
	c.Misc.FlipTextureS = n.Misc>>36&0x1 != 0
	c.Misc.FlipTextureT = n.Misc>>37&0x1 != 0
	c.Misc.DPolFaceEmitter = n.Misc>>38&0x1 != 0

	return c, nil
}

func (d *decoder) decodeTexture() (*Texture, error) {
	start := d.offset()

	var hdr textureHeaderNative
	if err := d.read(&hdr); err != nil {
		return nil, err
	}
	if hdr.ResourceSize < textureHeaderSize {
		return nil, fmt.Errorf("%w: texture resource size %d smaller than header", ErrInvalidFormat, hdr.ResourceSize)
	}

	param, err := textureParamFromNative(hdr.Param)
	if err != nil {
		return nil, err
	}

	tex := &Texture{
		ID:     hdr.ID,
		Param:  *param,
		Width:  8 << param.S,
		Height: 8 << param.T,
	}

	if hdr.TextureSize > 0 {
		data, err := d.readBytes(hdr.TextureSize)
		if err != nil {
			return nil, err
		}
		tex.TextureData = data
	}
	if hdr.PaletteSize > 0 {
		if int(hdr.PaletteOffset) != d.offset()-start {
			return nil, fmt.Errorf("%w: palette offset %d does not follow texture data", ErrInvalidFormat, hdr.PaletteOffset)
		}
		data, err := d.readBytes(hdr.PaletteSize)
		if err != nil {
			return nil, err
		}
		tex.PaletteData = data
	}

	// Skip trailing alignment padding up to the declared resource size.
	consumed := d.offset() - start
	if int(hdr.ResourceSize) < consumed {
		return nil, fmt.Errorf("%w: texture resource size %d inconsistent with payload %d", ErrInvalidFormat, hdr.ResourceSize, consumed)
	}
	if pad := int(hdr.ResourceSize) - consumed; pad > 0 {
		if _, err := d.readBytes(uint32(pad)); err != nil {
			return nil, err
		}
	}

	return tex, nil
}

func textureParamFromNative(bits uint32) (*TextureParam, error) {
	format := uint8(bits & 0xf)
	if format >= uint8(texFormatCount) {
		return nil, fmt.Errorf("%w: invalid texture format %d", ErrInvalidFormat, format)
	}
	return &TextureParam{
		Format:               TextureFormat(format),
		S:                    uint8(bits >> 4 & 0xf),
		T:                    uint8(bits >> 8 & 0xf),
		Repeat:               TextureRepeat(bits >> 12 & 0x3),
		Flip:                 TextureFlip(bits >> 14 & 0x3),
		PalColor0Transparent: bits>>16&0x1 != 0,
		UseSharedTexture:     bits>>17&0x1 != 0,
		SharedTexID:          uint8(bits >> 18 & 0xff),
	}, nil
}

// framesToSeconds converts a frame-count field to seconds at the reference
// frame rate.
func framesToSeconds[T uint8 | uint16 | uint32](frames T) float64 {
	return float64(frames) / FramesPerSecond
}

// secondsToFrames is the encoding-side inverse of framesToSeconds. Rounds
// to the nearest frame so decoded durations survive a round trip.
func secondsToFrames(seconds float64) uint16 {
	return uint16(math.Round(seconds * FramesPerSecond))
}

// unpackFraction8 extracts the byte at the given bit offset and maps it to
// [0, 1].
func unpackFraction8(word uint32, shift uint) float64 {
	return float64(word>>shift&0xff) / 255.0
}
