// Package spatialmath defines spatial mathematical operations on poses, rotations and 6D vectors.
//
// Rotations are unit quaternions mapping vectors from a local frame to the world frame. A pose is
// a translation plus such a rotation, so a point p expressed in a pose's frame is located at
// pose.Point + R(pose.Orientation) p in the world.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If the norm of a rotation vector is below this amount the small angle approximation is used.
const angleEpsilon = 1e-10

// IdentityQuat returns the identity rotation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// Normalize returns q scaled to unit norm. A zero quaternion maps to the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 {
		return IdentityQuat()
	}
	return quat.Scale(1/n, q)
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: p.Imag, Y: p.Jmag, Z: p.Kmag}
}

// ExpRot maps a rotation vector (axis times angle, radians) to a unit quaternion.
func ExpRot(w r3.Vector) quat.Number {
	angle := w.Norm()
	if angle < angleEpsilon {
		return Normalize(quat.Number{Real: 1, Imag: w.X / 2, Jmag: w.Y / 2, Kmag: w.Z / 2})
	}
	s := math.Sin(angle/2) / angle
	return quat.Number{Real: math.Cos(angle / 2), Imag: s * w.X, Jmag: s * w.Y, Kmag: s * w.Z}
}

// LogRot maps a unit quaternion to its rotation vector with angle in [0, pi].
func LogRot(q quat.Number) r3.Vector {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	v := r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	vn := v.Norm()
	if vn < angleEpsilon {
		return v.Mul(2)
	}
	angle := 2 * math.Atan2(vn, q.Real)
	return v.Mul(angle / vn)
}

// Slerp spherically interpolates between a and b along the shortest arc. by=0 returns a and by=1
// returns b.
func Slerp(a, b quat.Number, by float64) quat.Number {
	a = Normalize(a)
	b = Normalize(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}
	if dot > 1-1e-12 {
		return Normalize(quat.Add(a, quat.Scale(by, quat.Sub(b, a))))
	}
	theta := math.Acos(dot)
	sinTheta := math.Sin(theta)
	wa := math.Sin((1-by)*theta) / sinTheta
	wb := math.Sin(by*theta) / sinTheta
	return quat.Add(quat.Scale(wa, a), quat.Scale(wb, b))
}

// RelativeRotation returns the rotation vector of to relative to from, expressed in the world frame.
func RelativeRotation(from, to quat.Number) r3.Vector {
	return LogRot(quat.Mul(to, quat.Conj(from)))
}

// QuatFromRPY returns the rotation Rz(yaw) * Ry(pitch) * Rx(roll). The angles are taken from the
// X, Y and Z components of rpy respectively.
func QuatFromRPY(rpy r3.Vector) quat.Number {
	cr, sr := math.Cos(rpy.X/2), math.Sin(rpy.X/2)
	cp, sp := math.Cos(rpy.Y/2), math.Sin(rpy.Y/2)
	cy, sy := math.Cos(rpy.Z/2), math.Sin(rpy.Z/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}

// RPYFromQuat is the inverse of QuatFromRPY. Pitch is clamped to [-pi/2, pi/2].
func RPYFromQuat(q quat.Number) r3.Vector {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	return r3.Vector{
		X: math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y)),
		Y: math.Asin(sinp),
		Z: math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z)),
	}
}

// RotationMatrix returns the row-major 3x3 matrix of q.
func RotationMatrix(q quat.Number) [3][3]float64 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// QuatAlmostEqual reports whether a and b describe the same rotation within tol radians.
func QuatAlmostEqual(a, b quat.Number, tol float64) bool {
	return RelativeRotation(a, b).Norm() <= tol
}
