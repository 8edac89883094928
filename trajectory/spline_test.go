package trajectory

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

func TestCubicSplineBoundaries(t *testing.T) {
	spline, err := NewCubicSpline(ZeroVelocity(), ZeroVelocity(), []Waypoint{
		{0, r3.Vector{}},
		{1, r3.Vector{X: 1, Z: 0.5}},
		{2, r3.Vector{X: 2}},
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, spatialmath.R3VectorAlmostEqual(spline.Value(0), r3.Vector{}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(spline.Value(1), r3.Vector{X: 1, Z: 0.5}, 1e-12), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(spline.Value(2), r3.Vector{X: 2}, 1e-12), test.ShouldBeTrue)
	test.That(t, spline.Derivative(0, 1).Norm(), test.ShouldAlmostEqual, 0)
	test.That(t, spline.Derivative(2, 1).Norm(), test.ShouldAlmostEqual, 0)

	// continuity of the first and second derivatives across the interior knot
	const eps = 1e-7
	test.That(t, spatialmath.R3VectorAlmostEqual(
		spline.Derivative(1-eps, 1), spline.Derivative(1+eps, 1), 1e-5), test.ShouldBeTrue)
	test.That(t, spatialmath.R3VectorAlmostEqual(
		spline.Derivative(1-eps, 2), spline.Derivative(1+eps, 2), 1e-5), test.ShouldBeTrue)

	// clamped outside the domain
	test.That(t, spline.Value(-1), test.ShouldResemble, spline.Value(0))
}

func TestCubicSplineAccelerationConstraint(t *testing.T) {
	spline, err := NewCubicSpline(ZeroVelocity(), ZeroAcceleration(), []Waypoint{
		{1, r3.Vector{Z: 1}},
		{1.5, r3.Vector{Z: 2}},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spline.Derivative(1, 1).Norm(), test.ShouldAlmostEqual, 0)
	test.That(t, spline.Derivative(1.5, 2).Norm(), test.ShouldAlmostEqual, 0)
	test.That(t, spline.Value(1.5).Z, test.ShouldAlmostEqual, 2)

	// numerical derivative agrees with the analytic one
	const dt = 1e-6
	num := spline.Value(1.2 + dt).Sub(spline.Value(1.2 - dt)).Mul(1 / (2 * dt))
	test.That(t, num.Z, test.ShouldAlmostEqual, spline.Derivative(1.2, 1).Z, 1e-5)
}

func TestCubicSplineInvalid(t *testing.T) {
	_, err := NewCubicSpline(ZeroVelocity(), ZeroVelocity(), []Waypoint{{0, r3.Vector{}}})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewCubicSpline(ZeroVelocity(), ZeroVelocity(), []Waypoint{{0, r3.Vector{}}, {0, r3.Vector{X: 1}}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPiecewiseFunc(t *testing.T) {
	pw := NewPiecewiseFunc()
	pw.Append(2, Constant{r3.Vector{X: 2}})
	pw.Append(1, Constant{r3.Vector{X: 1}})

	test.That(t, pw.Value(0.5).X, test.ShouldEqual, 1)
	test.That(t, pw.Value(1).X, test.ShouldEqual, 1)
	test.That(t, pw.Value(1.5).X, test.ShouldEqual, 2)
	test.That(t, pw.Value(3).X, test.ShouldEqual, 2)
	test.That(t, pw.Derivative(1.5, 1), test.ShouldResemble, r3.Vector{})
}

func TestCubicInterpolator(t *testing.T) {
	ci := NewCubicInterpolator(map[float64]float64{0: 1, 1: 1, 2: 0})
	test.That(t, ci.Value(-1), test.ShouldEqual, 1)
	test.That(t, ci.Value(0.5), test.ShouldEqual, 1)
	test.That(t, ci.Value(1.5), test.ShouldAlmostEqual, 0.5)
	test.That(t, ci.Value(2), test.ShouldEqual, 0)
	test.That(t, ci.Value(5), test.ShouldEqual, 0)
}

func TestRotationInterpolator(t *testing.T) {
	ri := NewRotationInterpolator()
	ri.Append(0, spatialmath.IdentityQuat())
	ri.Append(1, spatialmath.QuatFromRPY(r3.Vector{Z: math.Pi / 2}))

	test.That(t, spatialmath.RPYFromQuat(ri.Value(0.5)).Z, test.ShouldAlmostEqual, math.Pi/4)
	test.That(t, spatialmath.RPYFromQuat(ri.Value(1)).Z, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, ri.Derivative(0, 1).Norm(), test.ShouldAlmostEqual, 0)
	// peak angular velocity of the smoothstep is 1.5 times the average
	test.That(t, ri.Derivative(0.5, 1).Z, test.ShouldAlmostEqual, 1.5*math.Pi/2)
}
