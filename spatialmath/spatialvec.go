package spatialmath

import "github.com/golang/geo/r3"

// MotionVec is a 6D motion (velocity, acceleration, pose error or gain) split into its angular
// and linear parts.
type MotionVec struct {
	Angular r3.Vector `json:"angular"`
	Linear  r3.Vector `json:"linear"`
}

// ForceVec is a 6D force (wrench, momentum) split into its moment and force parts.
type ForceVec struct {
	Moment r3.Vector `json:"moment"`
	Force  r3.Vector `json:"force"`
}

// Add returns m + o.
func (m MotionVec) Add(o MotionVec) MotionVec {
	return MotionVec{Angular: m.Angular.Add(o.Angular), Linear: m.Linear.Add(o.Linear)}
}

// Sub returns m - o.
func (m MotionVec) Sub(o MotionVec) MotionVec {
	return MotionVec{Angular: m.Angular.Sub(o.Angular), Linear: m.Linear.Sub(o.Linear)}
}

// Mul returns m scaled by s.
func (m MotionVec) Mul(s float64) MotionVec {
	return MotionVec{Angular: m.Angular.Mul(s), Linear: m.Linear.Mul(s)}
}

// MulElem returns the element-wise product of m and gain.
func (m MotionVec) MulElem(gain MotionVec) MotionVec {
	return MotionVec{Angular: MulElem(m.Angular, gain.Angular), Linear: MulElem(m.Linear, gain.Linear)}
}

// Vector returns [angular; linear].
func (m MotionVec) Vector() []float64 {
	return []float64{m.Angular.X, m.Angular.Y, m.Angular.Z, m.Linear.X, m.Linear.Y, m.Linear.Z}
}

// UniformMotionVec returns a motion vector with every component set to v.
func UniformMotionVec(v float64) MotionVec {
	return MotionVec{Angular: r3.Vector{X: v, Y: v, Z: v}, Linear: r3.Vector{X: v, Y: v, Z: v}}
}

// Add returns f + o.
func (f ForceVec) Add(o ForceVec) ForceVec {
	return ForceVec{Moment: f.Moment.Add(o.Moment), Force: f.Force.Add(o.Force)}
}

// Sub returns f - o.
func (f ForceVec) Sub(o ForceVec) ForceVec {
	return ForceVec{Moment: f.Moment.Sub(o.Moment), Force: f.Force.Sub(o.Force)}
}

// Mul returns f scaled by s.
func (f ForceVec) Mul(s float64) ForceVec {
	return ForceVec{Moment: f.Moment.Mul(s), Force: f.Force.Mul(s)}
}

// MomentAbout returns the moment of a wrench given about from when taken about to.
func (f ForceVec) MomentAbout(from, to r3.Vector) r3.Vector {
	return f.Moment.Add(from.Sub(to).Cross(f.Force))
}

// Vector returns [moment; force].
func (f ForceVec) Vector() []float64 {
	return []float64{f.Moment.X, f.Moment.Y, f.Moment.Z, f.Force.X, f.Force.Y, f.Force.Z}
}

// MulElem returns the element-wise product of two vectors.
func MulElem(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// DivElem returns the element-wise quotient of two vectors.
func DivElem(a, b r3.Vector) r3.Vector {
	return r3.Vector{X: a.X / b.X, Y: a.Y / b.Y, Z: a.Z / b.Z}
}
