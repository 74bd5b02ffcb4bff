// Package spl decodes and encodes the binary particle effect archive format
// and defines the runtime resource model consumed by the simulation.
//
// An archive holds an ordered list of emitter resources (recipes, not live
// instances) and an ordered list of textures. Every packed bit-field and
// fixed-point field in the file is converted once, at decode time, into an
// explicit enum, boolean or float field; simulation code never re-derives
// hardware fixed-point values from floats.
package spl

import "gonum.org/v1/gonum/spatial/r3"

// FramesPerSecond is the frame rate of the reference hardware. All
// frame-count fields in the file convert to seconds at this rate.
const FramesPerSecond = 30

// EmissionType selects the geometry particles are emitted from.
type EmissionType uint8

const (
	EmissionPoint EmissionType = iota
	EmissionSphereSurface
	EmissionCircleBorder
	EmissionCircleBorderUniform
	EmissionSphere
	EmissionCircle
	EmissionCylinderSurface
	EmissionCylinder
	EmissionHemisphereSurface
	EmissionHemisphere

	emissionTypeCount
)

// DrawType selects how a particle is rendered. It does not affect the
// simulation; it is carried for the rendering collaborator.
type DrawType uint8

const (
	DrawBillboard DrawType = iota
	DrawDirectionalBillboard
	DrawPolygon
	DrawDirectionalPolygon
	DrawDirectionalPolygonCenter

	drawTypeCount
)

// CircleAxis is the plane normal for circle and cylinder emissions.
type CircleAxis uint8

const (
	CircleAxisZ CircleAxis = iota
	CircleAxisY
	CircleAxisX
	CircleAxisEmitter
)

// PolygonRotAxis is the axis polygon draw types rotate around.
type PolygonRotAxis uint8

const (
	PolygonRotY PolygonRotAxis = iota
	PolygonRotXYZ
)

// ChildRotationType describes what rotation state a child particle inherits
// from its parent.
type ChildRotationType uint8

const (
	ChildRotNone ChildRotationType = iota
	ChildRotInheritAngle
	ChildRotInheritAngleAndVelocity
)

// ScaleAnimDir restricts a scale animation to one or both billboard axes.
type ScaleAnimDir uint8

const (
	ScaleAnimXY ScaleAnimDir = iota
	ScaleAnimX
	ScaleAnimY
)

// SpinAxis is the rotation axis of a spin behavior.
type SpinAxis uint8

const (
	SpinAxisX SpinAxis = iota
	SpinAxisY
	SpinAxisZ
)

// CollisionAction is what a collision-plane behavior does to a particle that
// crosses the plane.
type CollisionAction uint8

const (
	CollisionKill CollisionAction = iota
	CollisionBounce
)

// ResourceFlags is the unpacked form of the resource's 32-bit flag word.
type ResourceFlags struct {
	EmissionType EmissionType
	DrawType     DrawType
	CircleAxis   CircleAxis

	HasScaleAnim    bool
	HasColorAnim    bool
	HasAlphaAnim    bool
	HasTexAnim      bool
	HasRotation     bool
	RandomInitAngle bool

	// SelfMaintaining emitters terminate on their own once they reach the
	// end of their life and all of their particles have died.
	SelfMaintaining  bool
	FollowEmitter    bool
	HasChildResource bool

	PolygonRotAxis        PolygonRotAxis
	PolygonReferencePlane uint8
	RandomizeLoopedAnim   bool
	DrawChildrenFirst     bool
	HideParent            bool
	UseViewSpace          bool

	HasGravityBehavior        bool
	HasRandomBehavior         bool
	HasMagnetBehavior         bool
	HasSpinBehavior           bool
	HasCollisionPlaneBehavior bool
	HasConvergenceBehavior    bool

	HasFixedPolygonID      bool
	ChildHasFixedPolygonID bool
}

// ResourceHeader is the decoded fixed-size portion of a resource record.
// Frame counts have been converted to seconds, fixed-point values to floats
// and packed colors to [0,1] components.
type ResourceHeader struct {
	Flags ResourceFlags

	EmitterBasePos r3.Vec
	EmissionCount  float64 // particles per emission event
	Radius         float64 // circle, sphere and cylinder emissions
	Length         float64 // cylinder emissions
	Axis           r3.Vec
	Color          r3.Vec

	InitVelPosAmplifier  float64
	InitVelAxisAmplifier float64
	BaseScale            float64
	AspectRatio          float64

	StartDelay float64 // seconds before the emitter starts emitting

	MinRotation float64 // radians per frame
	MaxRotation float64 // radians per frame
	InitAngle   uint16

	EmitterLifeTime  float64 // seconds; 0 means unlimited
	ParticleLifeTime float64 // seconds

	// Random attenuation factors in [0,1], applied at particle
	// initialization through the RNG's damped range helpers.
	RandomAttenuation struct {
		BaseScale float64
		LifeTime  float64
		InitVel   float64
	}

	Misc MiscParams

	PolygonX float64
	PolygonY float64
	UserData uint8
}

// MiscParams is the unpacked form of the resource's packed misc words.
type MiscParams struct {
	EmissionInterval float64 // seconds between emission events
	BaseAlpha        float64 // [0,1]
	// AirResistance is a per-frame velocity multiplier in [0.75, 1.25];
	// 1.0 is neutral.
	AirResistance     float64
	TextureIndex      uint8
	LoopTime          float64 // seconds per loop of a looping animation
	DBBScale          uint16
	TextureTileCountS uint8
	TextureTileCountT uint8
	ScaleAnimDir      ScaleAnimDir
	DPolFaceEmitter   bool
	FlipTextureS      bool
	FlipTextureT      bool
}

// CurveInOut holds two breakpoint fractions of particle life.
type CurveInOut struct {
	In  float64
	Out float64
}

// CurveInPeakOut holds three breakpoint fractions of particle life.
type CurveInPeakOut struct {
	In   float64
	Peak float64
	Out  float64
}

// ScaleAnim interpolates the particle scale multiplier start→mid→end across
// the in/out breakpoints.
type ScaleAnim struct {
	Start float64
	Mid   float64
	End   float64
	Curve CurveInOut
	Loop  bool
}

// ColorAnim blends the particle color start→end across the in/peak/out
// breakpoints. With Interpolate unset the color steps at the peak instead of
// blending.
type ColorAnim struct {
	Start            r3.Vec
	End              r3.Vec
	Curve            CurveInPeakOut
	RandomStartColor bool
	Loop             bool
	Interpolate      bool
}

// AlphaAnim interpolates particle alpha start→mid→end across the in/out
// breakpoints. RandomRange adds a per-spawn jitter factor.
type AlphaAnim struct {
	Start       float64
	Mid         float64
	End         float64
	RandomRange float64
	Loop        bool
	Curve       CurveInOut
}

// TexAnim steps through up to 8 texture frames at a fixed fraction of the
// particle's life per frame.
type TexAnim struct {
	Textures      [8]uint8
	Count         uint8
	Step          float64 // fraction of life each frame lasts
	RandomizeInit bool
	Loop          bool
}

// ChildResourceFlags is the unpacked form of the child record's flag word.
type ChildResourceFlags struct {
	UsesBehaviors         bool
	HasScaleAnim          bool
	HasAlphaAnim          bool
	RotationType          ChildRotationType
	FollowEmitter         bool
	UseChildColor         bool
	DrawType              DrawType
	PolygonRotAxis        PolygonRotAxis
	PolygonReferencePlane uint8 // 0=XY, 1=XZ
}

// ChildResource describes secondary emission spawned from each parent
// particle.
type ChildResource struct {
	Flags ChildResourceFlags

	RandomInitVelMag float64 // randomization of the initial velocity magnitude
	EndScale         float64 // target of the child scale animation
	LifeTime         float64 // seconds
	VelocityRatio    float64 // fraction of the parent velocity inherited
	ScaleRatio       float64 // fraction of the parent scale inherited
	Color            r3.Vec

	Misc struct {
		EmissionCount     uint8
		EmissionDelay     float64 // fraction of the parent's lifetime
		EmissionInterval  float64 // seconds
		Texture           uint8
		TextureTileCountS uint8
		TextureTileCountT uint8
		FlipTextureS      bool
		FlipTextureT      bool
		DPolFaceEmitter   bool
	}
}

// BehaviorKind discriminates the closed set of behavior variants.
type BehaviorKind uint8

const (
	BehaviorGravity BehaviorKind = iota
	BehaviorRandom
	BehaviorMagnet
	BehaviorSpin
	BehaviorCollisionPlane
	BehaviorConvergence

	behaviorKindCount
)

// Behavior is one per-tick particle modifier. The parameter fields in use
// depend on Kind; the kind set is fixed, so simulation code switches on Kind
// exhaustively instead of dispatching through an interface.
type Behavior struct {
	Kind BehaviorKind

	// Gravity: constant acceleration, per frame.
	Acceleration r3.Vec

	// Random: impulse magnitude per axis and seconds between impulses.
	Magnitude     r3.Vec
	ApplyInterval float64

	// Magnet and Convergence: target point and velocity scale factor.
	Target r3.Vec
	Force  float64

	// Spin: radians per frame and rotation axis.
	Angle float64
	Axis  SpinAxis

	// CollisionPlane: plane height, bounce elasticity and crossing action.
	PlaneY     float64
	Elasticity float64
	Collision  CollisionAction
}

// Resource is an immutable emitter recipe decoded from the archive. The
// editing layer may mutate it in place; the simulation only reads it.
type Resource struct {
	Header    ResourceHeader
	ScaleAnim *ScaleAnim
	ColorAnim *ColorAnim
	AlphaAnim *AlphaAnim
	TexAnim   *TexAnim
	Child     *ChildResource

	// Behaviors appear in canonical decode order: gravity, random, magnet,
	// spin, collision plane, convergence. Each kind at most once, in
	// lock-step with the Has*Behavior flags.
	Behaviors []Behavior
}

// BehaviorByKind returns the behavior of the given kind, or nil.
func (r *Resource) BehaviorByKind(kind BehaviorKind) *Behavior {
	for i := range r.Behaviors {
		if r.Behaviors[i].Kind == kind {
			return &r.Behaviors[i]
		}
	}
	return nil
}
