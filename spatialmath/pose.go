package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform: a translation and a unit quaternion orientation.
type Pose struct {
	Point       r3.Vector
	Orientation quat.Number
}

// NewPose returns a pose with a normalized orientation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{Point: point, Orientation: Normalize(orientation)}
}

// NewPoseFromPoint returns a pose at point with identity orientation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{Point: point, Orientation: IdentityQuat()}
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return NewPoseFromPoint(r3.Vector{})
}

// Compose returns a followed by b, i.e. b expressed in a's frame: the point is a.Point + R_a b.Point.
func Compose(a, b Pose) Pose {
	return Pose{
		Point:       a.Point.Add(RotateVector(a.Orientation, b.Point)),
		Orientation: Normalize(quat.Mul(a.Orientation, b.Orientation)),
	}
}

// PoseInverse returns the inverse transform of p.
func PoseInverse(p Pose) Pose {
	qInv := quat.Conj(Normalize(p.Orientation))
	return Pose{
		Point:       RotateVector(qInv, p.Point).Mul(-1),
		Orientation: qInv,
	}
}

// PoseBetween returns the pose of b expressed in the frame of a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// Transform maps a point from the pose's frame into the world frame.
func (p Pose) Transform(v r3.Vector) r3.Vector {
	return p.Point.Add(RotateVector(p.Orientation, v))
}

// Offset returns p translated by offset expressed in p's own frame.
func (p Pose) Offset(offset r3.Vector) Pose {
	return Pose{Point: p.Transform(offset), Orientation: p.Orientation}
}

func (p Pose) String() string {
	rpy := RPYFromQuat(p.Orientation)
	return fmt.Sprintf("{pos: (%.4f, %.4f, %.4f), rpy: (%.4f, %.4f, %.4f)}",
		p.Point.X, p.Point.Y, p.Point.Z, rpy.X, rpy.Y, rpy.Z)
}

// Interpolate linearly interpolates the translation and spherically interpolates the rotation.
func Interpolate(a, b Pose, by float64) Pose {
	return Pose{
		Point:       a.Point.Add(b.Point.Sub(a.Point).Mul(by)),
		Orientation: Slerp(a.Orientation, b.Orientation, by),
	}
}

// ProjGround keeps only the yaw of the orientation. When ground is true the height is also zeroed.
func ProjGround(p Pose, ground bool) Pose {
	yaw := RPYFromQuat(p.Orientation).Z
	point := p.Point
	if ground {
		point.Z = 0
	}
	return Pose{Point: point, Orientation: QuatFromRPY(r3.Vector{Z: yaw})}
}

// PoseError returns the motion that takes from onto to, expressed in the world frame.
func PoseError(from, to Pose) MotionVec {
	return MotionVec{
		Angular: RelativeRotation(from.Orientation, to.Orientation),
		Linear:  to.Point.Sub(from.Point),
	}
}

// PoseAlmostEqual compares the translation and rotation of two poses within tol.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return R3VectorAlmostEqual(a.Point, b.Point, tol) && QuatAlmostEqual(a.Orientation, b.Orientation, tol)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if they are all within tol.
func R3VectorAlmostEqual(a, b r3.Vector, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}
