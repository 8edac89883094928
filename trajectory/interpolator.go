package trajectory

import (
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// smoothstep is the cubic blend with zero slope at both ends, and its first two derivatives.
func smoothstep(tau float64) (float64, float64, float64) {
	return tau * tau * (3 - 2*tau), 6 * tau * (1 - tau), 6 - 12*tau
}

// knotIndex returns the segment containing t and the normalized time within it. Times outside the
// knots are clamped.
func knotIndex(times []float64, t float64) (int, float64, float64) {
	n := len(times)
	if n == 1 || t <= times[0] {
		return 0, 0, 0
	}
	if t >= times[n-1] {
		return n - 2, 1, times[n-1] - times[n-2]
	}
	idx := sort.SearchFloat64s(times, t) - 1
	h := times[idx+1] - times[idx]
	return idx, (t - times[idx]) / h, h
}

// CubicInterpolator blends scalar knots with zero velocity at every knot.
type CubicInterpolator struct {
	times  []float64
	values []float64
}

// NewCubicInterpolator builds an interpolator over the points, keyed by time. A later point with a
// time equal to an earlier one replaces it.
func NewCubicInterpolator(points map[float64]float64) *CubicInterpolator {
	ci := &CubicInterpolator{}
	for t := range points {
		ci.times = append(ci.times, t)
	}
	sort.Float64s(ci.times)
	for _, t := range ci.times {
		ci.values = append(ci.values, points[t])
	}
	return ci
}

// Value evaluates the interpolator. It panics when built without points.
func (ci *CubicInterpolator) Value(t float64) float64 {
	if len(ci.times) == 1 {
		return ci.values[0]
	}
	i, tau, _ := knotIndex(ci.times, t)
	s, _, _ := smoothstep(tau)
	return ci.values[i] + s*(ci.values[i+1]-ci.values[i])
}

// RotationInterpolator blends orientation knots along the relative rotation axis with zero angular
// velocity at every knot.
type RotationInterpolator struct {
	times []float64
	rots  []quat.Number
}

// NewRotationInterpolator returns an empty rotation interpolator.
func NewRotationInterpolator() *RotationInterpolator {
	return &RotationInterpolator{}
}

// Append adds a knot. Knots must be appended in non-decreasing time order; a knot at the time of
// the last knot replaces it.
func (ri *RotationInterpolator) Append(t float64, q quat.Number) {
	if n := len(ri.times); n > 0 && ri.times[n-1] == t {
		ri.rots[n-1] = q
		return
	}
	ri.times = append(ri.times, t)
	ri.rots = append(ri.rots, spatialmath.Normalize(q))
}

// Value evaluates the orientation at t.
func (ri *RotationInterpolator) Value(t float64) quat.Number {
	if len(ri.times) == 1 {
		return ri.rots[0]
	}
	i, tau, _ := knotIndex(ri.times, t)
	s, _, _ := smoothstep(tau)
	rel := spatialmath.RelativeRotation(ri.rots[i], ri.rots[i+1])
	return quat.Mul(spatialmath.ExpRot(rel.Mul(s)), ri.rots[i])
}

// Derivative returns the world frame angular velocity (order 1) or acceleration (order 2).
func (ri *RotationInterpolator) Derivative(t float64, order int) r3.Vector {
	if len(ri.times) == 1 || t <= ri.times[0] || t >= ri.times[len(ri.times)-1] {
		return r3.Vector{}
	}
	i, tau, h := knotIndex(ri.times, t)
	_, ds, dds := smoothstep(tau)
	rel := spatialmath.RelativeRotation(ri.rots[i], ri.rots[i+1])
	switch order {
	case 1:
		return rel.Mul(ds / h)
	case 2:
		return rel.Mul(dds / (h * h))
	default:
		return r3.Vector{}
	}
}
