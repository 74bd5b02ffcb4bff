package spl

// Display names for the archive enums. The editor and telemetry layers show
// these; decoding never depends on them.

func (t EmissionType) String() string {
	switch t {
	case EmissionPoint:
		return "Point"
	case EmissionSphereSurface:
		return "Sphere Surface"
	case EmissionCircleBorder:
		return "Circle Border"
	case EmissionCircleBorderUniform:
		return "Circle Border Uniform"
	case EmissionSphere:
		return "Sphere"
	case EmissionCircle:
		return "Circle"
	case EmissionCylinderSurface:
		return "Cylinder Surface"
	case EmissionCylinder:
		return "Cylinder"
	case EmissionHemisphereSurface:
		return "Hemisphere Surface"
	case EmissionHemisphere:
		return "Hemisphere"
	}
	return "Unknown"
}

func (t DrawType) String() string {
	switch t {
	case DrawBillboard:
		return "Billboard"
	case DrawDirectionalBillboard:
		return "Directional Billboard"
	case DrawPolygon:
		return "Polygon"
	case DrawDirectionalPolygon:
		return "Directional Polygon"
	case DrawDirectionalPolygonCenter:
		return "Directional Polygon Center"
	}
	return "Unknown"
}

func (a CircleAxis) String() string {
	switch a {
	case CircleAxisZ:
		return "Z"
	case CircleAxisY:
		return "Y"
	case CircleAxisX:
		return "X"
	case CircleAxisEmitter:
		return "Emitter"
	}
	return "Unknown"
}

func (a PolygonRotAxis) String() string {
	switch a {
	case PolygonRotY:
		return "Y"
	case PolygonRotXYZ:
		return "XYZ"
	}
	return "Unknown"
}

func (t ChildRotationType) String() string {
	switch t {
	case ChildRotNone:
		return "None"
	case ChildRotInheritAngle:
		return "Inherit Angle"
	case ChildRotInheritAngleAndVelocity:
		return "Inherit Angle and Velocity"
	}
	return "Unknown"
}

func (d ScaleAnimDir) String() string {
	switch d {
	case ScaleAnimXY:
		return "XY"
	case ScaleAnimX:
		return "X"
	case ScaleAnimY:
		return "Y"
	}
	return "Unknown"
}

func (a SpinAxis) String() string {
	switch a {
	case SpinAxisX:
		return "X"
	case SpinAxisY:
		return "Y"
	case SpinAxisZ:
		return "Z"
	}
	return "Unknown"
}

func (a CollisionAction) String() string {
	switch a {
	case CollisionKill:
		return "Kill"
	case CollisionBounce:
		return "Bounce"
	}
	return "Unknown"
}

func (k BehaviorKind) String() string {
	switch k {
	case BehaviorGravity:
		return "Gravity"
	case BehaviorRandom:
		return "Random"
	case BehaviorMagnet:
		return "Magnet"
	case BehaviorSpin:
		return "Spin"
	case BehaviorCollisionPlane:
		return "Collision Plane"
	case BehaviorConvergence:
		return "Convergence"
	}
	return "Unknown"
}

func (f TextureFormat) String() string {
	switch f {
	case TexFormatNone:
		return "None"
	case TexFormatA3I5:
		return "A3I5"
	case TexFormatPalette4:
		return "Palette 4"
	case TexFormatPalette16:
		return "Palette 16"
	case TexFormatPalette256:
		return "Palette 256"
	case TexFormatComp4x4:
		return "Comp4x4"
	case TexFormatA5I3:
		return "A5I3"
	case TexFormatDirect:
		return "Direct"
	}
	return "Unknown"
}

func (r TextureRepeat) String() string {
	switch r {
	case TexRepeatNone:
		return "None"
	case TexRepeatS:
		return "S"
	case TexRepeatT:
		return "T"
	case TexRepeatST:
		return "ST"
	}
	return "Unknown"
}

func (f TextureFlip) String() string {
	switch f {
	case TexFlipNone:
		return "None"
	case TexFlipS:
		return "S"
	case TexFlipT:
		return "T"
	case TexFlipST:
		return "ST"
	}
	return "Unknown"
}
