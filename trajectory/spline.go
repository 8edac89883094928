// Package trajectory provides time-parameterized functions used to build limb swing motions:
// cubic splines with boundary constraints, piecewise composition and cubic interpolators.
package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// VectorFunc is a 3D function of time with derivatives.
type VectorFunc interface {
	Value(t float64) r3.Vector
	Derivative(t float64, order int) r3.Vector
	Domain() (float64, float64)
}

// BoundaryConstraintType selects which derivative a spline boundary fixes.
type BoundaryConstraintType int

const (
	// Velocity fixes the first derivative at the boundary.
	Velocity BoundaryConstraintType = iota
	// Acceleration fixes the second derivative at the boundary.
	Acceleration
)

// BoundaryConstraint fixes one derivative of a spline at its first or last knot.
type BoundaryConstraint struct {
	Type  BoundaryConstraintType
	Value r3.Vector
}

// ZeroVelocity is the boundary constraint of a spline starting or ending at rest.
func ZeroVelocity() BoundaryConstraint {
	return BoundaryConstraint{Type: Velocity}
}

// ZeroAcceleration is the natural boundary constraint.
func ZeroAcceleration() BoundaryConstraint {
	return BoundaryConstraint{Type: Acceleration}
}

// Waypoint is a knot of a spline.
type Waypoint struct {
	Time  float64
	Value r3.Vector
}

// CubicSpline is a C2 piecewise cubic through a list of waypoints. Evaluation outside its domain
// is clamped to the nearest end.
type CubicSpline struct {
	times  []float64
	values []r3.Vector
	// second derivatives at the knots
	accels []r3.Vector
}

// NewCubicSpline solves the spline coefficients. At least two waypoints with strictly increasing
// times are required.
func NewCubicSpline(start, end BoundaryConstraint, waypoints []Waypoint) (*CubicSpline, error) {
	if len(waypoints) < 2 {
		return nil, errors.Errorf("cubic spline needs at least 2 waypoints, got %d", len(waypoints))
	}
	pts := append([]Waypoint(nil), waypoints...)
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Time < pts[j].Time })
	for i := 1; i < len(pts); i++ {
		if pts[i].Time <= pts[i-1].Time {
			return nil, errors.Errorf("cubic spline waypoint times must be strictly increasing: %v <= %v",
				pts[i].Time, pts[i-1].Time)
		}
	}

	n := len(pts)
	spline := &CubicSpline{
		times:  make([]float64, n),
		values: make([]r3.Vector, n),
		accels: make([]r3.Vector, n),
	}
	for i, p := range pts {
		spline.times[i] = p.Time
		spline.values[i] = p.Value
	}

	// Tridiagonal system on the knot second derivatives, one right hand side column per axis.
	a := mat.NewDense(n, n, nil)
	b := mat.NewDense(n, 3, nil)
	setRow := func(i int, v r3.Vector) {
		b.Set(i, 0, v.X)
		b.Set(i, 1, v.Y)
		b.Set(i, 2, v.Z)
	}
	h := func(i int) float64 { return spline.times[i+1] - spline.times[i] }
	slope := func(i int) r3.Vector { return spline.values[i+1].Sub(spline.values[i]).Mul(1 / h(i)) }

	switch start.Type {
	case Velocity:
		a.Set(0, 0, 2*h(0))
		a.Set(0, 1, h(0))
		setRow(0, slope(0).Sub(start.Value).Mul(6))
	case Acceleration:
		a.Set(0, 0, 1)
		setRow(0, start.Value)
	}
	for i := 1; i < n-1; i++ {
		a.Set(i, i-1, h(i-1))
		a.Set(i, i, 2*(h(i-1)+h(i)))
		a.Set(i, i+1, h(i))
		setRow(i, slope(i).Sub(slope(i-1)).Mul(6))
	}
	switch end.Type {
	case Velocity:
		a.Set(n-1, n-2, h(n-2))
		a.Set(n-1, n-1, 2*h(n-2))
		setRow(n-1, end.Value.Sub(slope(n-2)).Mul(6))
	case Acceleration:
		a.Set(n-1, n-1, 1)
		setRow(n-1, end.Value)
	}

	var m mat.Dense
	if err := m.Solve(a, b); err != nil {
		return nil, errors.Wrap(err, "cubic spline coefficients")
	}
	for i := 0; i < n; i++ {
		spline.accels[i] = r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)}
	}
	return spline, nil
}

// Domain returns the first and last knot times.
func (s *CubicSpline) Domain() (float64, float64) {
	return s.times[0], s.times[len(s.times)-1]
}

func (s *CubicSpline) segment(t float64) (int, float64) {
	t0, t1 := s.Domain()
	if t < t0 {
		t = t0
	} else if t > t1 {
		t = t1
	}
	idx := sort.SearchFloat64s(s.times, t) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.times)-2 {
		idx = len(s.times) - 2
	}
	return idx, t
}

// Value evaluates the spline.
func (s *CubicSpline) Value(t float64) r3.Vector {
	i, t := s.segment(t)
	h := s.times[i+1] - s.times[i]
	l := s.times[i+1] - t
	r := t - s.times[i]
	ml, mr := s.accels[i], s.accels[i+1]
	yl, yr := s.values[i], s.values[i+1]
	return ml.Mul(l * l * l / (6 * h)).
		Add(mr.Mul(r * r * r / (6 * h))).
		Add(yl.Mul(1 / h).Sub(ml.Mul(h / 6)).Mul(l)).
		Add(yr.Mul(1 / h).Sub(mr.Mul(h / 6)).Mul(r))
}

// Derivative evaluates the first, second or third derivative of the spline. Higher orders are zero.
func (s *CubicSpline) Derivative(t float64, order int) r3.Vector {
	i, t := s.segment(t)
	h := s.times[i+1] - s.times[i]
	l := s.times[i+1] - t
	r := t - s.times[i]
	ml, mr := s.accels[i], s.accels[i+1]
	yl, yr := s.values[i], s.values[i+1]
	switch order {
	case 0:
		return s.Value(t)
	case 1:
		return mr.Mul(r * r / (2 * h)).
			Sub(ml.Mul(l * l / (2 * h))).
			Add(yr.Sub(yl).Mul(1 / h)).
			Sub(mr.Sub(ml).Mul(h / 6))
	case 2:
		return ml.Mul(l / h).Add(mr.Mul(r / h))
	case 3:
		return mr.Sub(ml).Mul(1 / h)
	default:
		return r3.Vector{}
	}
}

// Constant is a VectorFunc holding a single value.
type Constant struct {
	Vec r3.Vector
}

// Value returns the constant.
func (c Constant) Value(float64) r3.Vector {
	return c.Vec
}

// Derivative is always zero.
func (c Constant) Derivative(t float64, order int) r3.Vector {
	if order == 0 {
		return c.Vec
	}
	return r3.Vector{}
}

// Domain is unbounded.
func (c Constant) Domain() (float64, float64) {
	return negInf, posInf
}
