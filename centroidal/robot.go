package centroidal

import (
	"github.com/golang/geo/r3"

	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
)

// RobotState exposes the model and sensed state of the robot. Control quantities come from the
// whole-body solver result, actual quantities from the estimator.
type RobotState interface {
	Mass() float64
	// MomentOfInertia is the diagonal of the centroidal inertia about the CoM.
	MomentOfInertia() r3.Vector

	// ControlCentroidalPose is the CoM position with the base orientation of the control robot.
	ControlCentroidalPose() spatialmath.Pose
	ControlBasePose() spatialmath.Pose
	ControlLimbPose(limb string) spatialmath.Pose

	// ActualCentroidalPose is the CoM position with the base orientation of the real robot.
	ActualCentroidalPose() spatialmath.Pose
	// ActualCentroidalVel is the unfiltered base angular velocity and CoM velocity.
	ActualCentroidalVel() spatialmath.MotionVec
	// ActualCentroidalMomentum is the centroidal momentum about the CoM.
	ActualCentroidalMomentum() spatialmath.ForceVec
	ActualBasePose() spatialmath.Pose
	ActualLimbPose(limb string) spatialmath.Pose
}

// TaskTargets are the centroidal sinks of the whole-body solver.
type TaskTargets interface {
	task.CentroidalTargets
	SetMomentumTarget(momentum spatialmath.ForceVec)
}

// AnchorSource selects which robot the anchor frame is computed for.
type AnchorSource int

// Anchor sources.
const (
	AnchorControl AnchorSource = iota
	AnchorReal
)

func (s AnchorSource) String() string {
	if s == AnchorReal {
		return "real"
	}
	return "control"
}
