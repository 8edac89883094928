package swing

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/utils"
)

func footStep(isContact bool) Params {
	return Params{
		CommandType: command.Add,
		IsContact:   isContact,
		StartPose:   spatialmath.NewZeroPose(),
		EndPose:     spatialmath.NewPoseFromPoint(r3.Vector{X: 0.2, Y: 0.1}),
		StartTime:   2.0,
		EndTime:     3.0,
		TaskGain:    task.NewUniformGain(1000),
	}
}

func TestAddTrajectoryEndpoints(t *testing.T) {
	for _, isContact := range []bool{true, false} {
		traj, err := New(TypeCubicSplineSimple, footStep(isContact), DefaultConfig(), nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, traj.Type(), test.ShouldEqual, TypeCubicSplineSimple)

		start := traj.Pose(2.0)
		test.That(t, spatialmath.R3VectorAlmostEqual(start.Point, r3.Vector{}, 1e-9), test.ShouldBeTrue)
		test.That(t, traj.Vel(2.0).Linear.Norm(), test.ShouldAlmostEqual, 0, 1e-9)

		end := traj.Pose(3.0)
		test.That(t, spatialmath.R3VectorAlmostEqual(end.Point, r3.Vector{X: 0.2, Y: 0.1}, 1e-9), test.ShouldBeTrue)
		test.That(t, traj.Vel(3.0).Linear.Norm(), test.ShouldAlmostEqual, 0, 1e-9)

		mid := traj.Pose(2.5)
		test.That(t, mid.Point.X, test.ShouldBeGreaterThan, 0)
		test.That(t, mid.Point.X, test.ShouldBeLessThan, 0.2)
		test.That(t, mid.Point.Z, test.ShouldBeGreaterThan, 0.03)

		// the approach phase starts above the landing pose
		approachStart := traj.Pose(3.0 - 0.2*1.0)
		test.That(t, approachStart.Point.X, test.ShouldAlmostEqual, 0.2, 1e-9)
		test.That(t, approachStart.Point.Z, test.ShouldAlmostEqual, 0.03, 1e-9)
	}
}

func TestAddTrajectoryWithdraw(t *testing.T) {
	traj, err := New(TypeCubicSplineSimple, footStep(true), DefaultConfig(), nil)
	test.That(t, err, test.ShouldBeNil)
	withdrawEnd := traj.Pose(2.2)
	test.That(t, withdrawEnd.Point.X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, withdrawEnd.Point.Z, test.ShouldAlmostEqual, 0.03, 1e-9)

	// velocity is continuous where withdraw hands over to transit
	const eps = 1e-6
	before := traj.Vel(2.2 - eps).Linear
	after := traj.Vel(2.2 + eps).Linear
	test.That(t, spatialmath.R3VectorAlmostEqual(before, after, 1e-4), test.ShouldBeTrue)
}

func TestConfigOverride(t *testing.T) {
	traj, err := New(TypeCubicSplineSimple, footStep(false), DefaultConfig(),
		utils.Document{"type": TypeCubicSplineSimple, "approachOffset": []interface{}{0, 0, 0.1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Pose(2.8).Point.Z, test.ShouldAlmostEqual, 0.1, 1e-9)

	_, err = New(TypeCubicSplineSimple, footStep(false), DefaultConfig(),
		utils.Document{"withdrawDurationRatio": 0.9})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New("Bezier", footStep(false), DefaultConfig(), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTouchDownFreezes(t *testing.T) {
	traj, err := New(TypeCubicSplineSimple, footStep(true), DefaultConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	frozen := traj.Pose(2.9)
	traj.TouchDown(2.9)
	test.That(t, traj.Pose(2.95), test.ShouldResemble, frozen)
	test.That(t, traj.Pose(3.0), test.ShouldResemble, frozen)
	test.That(t, traj.Vel(2.95), test.ShouldResemble, spatialmath.MotionVec{})
	test.That(t, traj.Accel(2.95), test.ShouldResemble, spatialmath.MotionVec{})
	// times before touchdown are unaffected
	test.That(t, traj.Vel(2.5).Linear.Norm(), test.ShouldBeGreaterThan, 0)
}

func TestRemoveTrajectory(t *testing.T) {
	params := Params{
		CommandType: command.Remove,
		IsContact:   true,
		StartPose:   spatialmath.NewPose(r3.Vector{X: 0.3}, spatialmath.QuatFromRPY(r3.Vector{Z: 0.4})),
		StartTime:   1.0,
		EndTime:     2.0,
		TaskGain:    task.NewUniformGain(1000),
	}
	traj, err := New(TypeCubicSplineSimple, params, DefaultConfig(), nil)
	test.That(t, err, test.ShouldBeNil)

	// withdrawn along the local z axis and held there
	held := traj.Pose(1.8)
	test.That(t, held.Point.Z, test.ShouldAlmostEqual, 0.03, 1e-9)
	test.That(t, held.Point.X, test.ShouldAlmostEqual, 0.3, 1e-9)
	test.That(t, spatialmath.QuatAlmostEqual(held.Orientation, params.StartPose.Orientation, 1e-9), test.ShouldBeTrue)

	test.That(t, traj.TaskGain(1.0).Stiffness.Linear.X, test.ShouldAlmostEqual, 1000)
	test.That(t, traj.TaskGain(1.2).Stiffness.Linear.X, test.ShouldAlmostEqual, 1000)
	test.That(t, traj.TaskGain(1.4).Stiffness.Linear.X, test.ShouldAlmostEqual, 500)
	test.That(t, traj.TaskGain(1.6).Stiffness.Linear.X, test.ShouldAlmostEqual, 0)
	test.That(t, traj.TaskGain(2.0).Stiffness.Linear.X, test.ShouldAlmostEqual, 0)
}

func TestDegenerateWindow(t *testing.T) {
	params := footStep(true)
	params.EndTime = params.StartTime
	traj, err := New(TypeCubicSplineSimple, params, DefaultConfig(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traj.Pose(2.0).Point.X, test.ShouldAlmostEqual, 0.2)
}
