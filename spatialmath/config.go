package spatialmath

import "github.com/golang/geo/r3"

// PoseConfig is the document form of a pose: a translation and roll/pitch/yaw angles in radians.
type PoseConfig struct {
	Translation [3]float64 `json:"translation"`
	Rotation    [3]float64 `json:"rotation"`
}

// Pose converts the document form into a Pose.
func (c PoseConfig) Pose() Pose {
	return NewPose(VectorFromArray(c.Translation), QuatFromRPY(VectorFromArray(c.Rotation)))
}

// NewPoseConfig converts a Pose into its document form.
func NewPoseConfig(p Pose) PoseConfig {
	return PoseConfig{Translation: ArrayFromVector(p.Point), Rotation: ArrayFromVector(RPYFromQuat(p.Orientation))}
}

// VectorFromArray converts a fixed size array into an r3.Vector.
func VectorFromArray(a [3]float64) r3.Vector {
	return r3.Vector{X: a[0], Y: a[1], Z: a[2]}
}

// ArrayFromVector converts an r3.Vector into a fixed size array.
func ArrayFromVector(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
