package centroidal

import (
	"github.com/golang/geo/r3"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// RefData is the reference of the centroidal planner at one time.
type RefData struct {
	CentroidalPose spatialmath.Pose
}

// ControlData is the state of the centroidal pipeline after an update, kept for monitoring.
type ControlData struct {
	MpcCentroidalPose     spatialmath.Pose
	MpcCentroidalVel      spatialmath.MotionVec
	MpcCentroidalMomentum spatialmath.ForceVec

	PlannedCentroidalPose     spatialmath.Pose
	PlannedCentroidalVel      spatialmath.MotionVec
	PlannedCentroidalAccel    spatialmath.MotionVec
	PlannedCentroidalMomentum spatialmath.ForceVec

	ActualCentroidalPose     spatialmath.Pose
	ActualCentroidalVel      spatialmath.MotionVec
	ActualCentroidalMomentum spatialmath.ForceVec

	// Planned, control and projected wrenches are taken about the mpc CoM, the actual wrench about the
	// actual CoM.
	PlannedCentroidalWrench   spatialmath.ForceVec
	ControlCentroidalWrench   spatialmath.ForceVec
	ProjectedCentroidalWrench spatialmath.ForceVec
	ActualCentroidalWrench    spatialmath.ForceVec

	PlannedZMP   r3.Vector
	ControlZMP   r3.Vector
	ProjectedZMP r3.Vector
	ActualZMP    r3.Vector

	ContactRegionMin r3.Vector
	ContactRegionMax r3.Vector
}

// Reset sets every planned and mpc quantity to the given pose at rest.
func (d *ControlData) Reset(pose spatialmath.Pose) {
	*d = ControlData{
		MpcCentroidalPose:     pose,
		PlannedCentroidalPose: pose,
		ActualCentroidalPose:  pose,
	}
}
