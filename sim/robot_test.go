package sim

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	test.That(t, cfg.Validate("sim"), test.ShouldBeNil)

	cfg.Mass = 0
	cfg.MomentOfInertia[2] = -1
	cfg.Limbs = nil
	err := cfg.Validate("sim")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mass must be positive")
	test.That(t, err.Error(), test.ShouldContainSubstring, "momentOfInertia[2]")
	test.That(t, err.Error(), test.ShouldContainSubstring, "limbs")
}

func TestRobotTracking(t *testing.T) {
	r, err := NewRobot(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.LimbNames(), test.ShouldResemble, []string{"LeftFoot", "RightFoot"})

	test.That(t, r.ControlCentroidalPose().Point, test.ShouldResemble, r3.Vector{Z: 1})
	test.That(t, r.ControlBasePose().Point.Z, test.ShouldAlmostEqual, 1.1)

	r.SetComTarget(r3.Vector{X: 0.1, Z: 0.9}, r3.Vector{X: 0.2}, r3.Vector{Z: -1})
	test.That(t, r.ControlCentroidalPose().Point.X, test.ShouldEqual, 0)
	r.Step()
	test.That(t, r.ControlCentroidalPose().Point, test.ShouldResemble, r3.Vector{X: 0.1, Z: 0.9})
	test.That(t, r.ActualCentroidalMomentum().Force.X, test.ShouldAlmostEqual, 10)
	test.That(t, r.ComAccel().Z, test.ShouldEqual, -1)

	r.Reset()
	test.That(t, r.ActualCentroidalPose().Point, test.ShouldResemble, r3.Vector{Z: 1})
}

func TestLimbTracking(t *testing.T) {
	r, err := NewRobot(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	left, ok := r.Limb("LeftFoot")
	test.That(t, ok, test.ShouldBeTrue)

	up := spatialmath.NewPoseFromPoint(r3.Vector{Y: 0.1, Z: 0.05})
	left.SetTarget(up, spatialmath.MotionVec{}, spatialmath.MotionVec{})
	r.Step()
	test.That(t, left.SurfacePose().Point.Z, test.ShouldEqual, 0)

	left.Enable()
	left.Hold(true)
	r.Step()
	test.That(t, left.SurfacePose().Point.Z, test.ShouldEqual, 0)

	left.Hold(false)
	r.Step()
	test.That(t, left.SurfacePose().Point.Z, test.ShouldAlmostEqual, 0.05)
	test.That(t, left.InContact(), test.ShouldBeFalse)
	test.That(t, left.MeasuredWrench(), test.ShouldResemble, spatialmath.ForceVec{})

	left.Reset()
	test.That(t, left.TargetPose(), test.ShouldResemble, left.SurfacePose())
}

func TestMeasuredWrench(t *testing.T) {
	r, err := NewRobot(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	right, _ := r.Limb("RightFoot")

	test.That(t, right.MeasuredWrench().Force.Z, test.ShouldAlmostEqual, 100)

	right.SetTargetWrench(spatialmath.ForceVec{Force: r3.Vector{X: 5, Z: 250}})
	w := right.MeasuredWrench()
	test.That(t, w.Force.X, test.ShouldAlmostEqual, 5)
	test.That(t, w.Force.Z, test.ShouldAlmostEqual, 250)
}

func TestGripperCommand(t *testing.T) {
	r, err := NewRobot(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.GripperCommand("", nil), test.ShouldNotBeNil)
	test.That(t, r.GripperCommand("LeftHand", map[string]interface{}{"opening": 0.5}), test.ShouldBeNil)
	test.That(t, r.GripperEvents(), test.ShouldHaveLength, 1)
	test.That(t, r.GripperEvents()[0].Name, test.ShouldEqual, "LeftHand")
}
