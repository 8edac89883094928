package control

import (
	"github.com/isri-aist/MultiContactController/spatialmath"
)

// PDGain holds per-axis proportional and derivative gains of a 6D feedback law. Angular entries act on
// moments, linear entries on forces.
type PDGain struct {
	P spatialmath.MotionVec `json:"p"`
	D spatialmath.MotionVec `json:"d"`
}

// Feedback returns the wrench correction
//
//	-P * poseError(planned, actual) - D * (actualVel - plannedVel)
//
// where the pose error is the world-frame error that moves planned onto actual.
func (g PDGain) Feedback(
	planned, actual spatialmath.Pose,
	plannedVel, actualVel spatialmath.MotionVec,
) spatialmath.ForceVec {
	corr := spatialmath.PoseError(planned, actual).MulElem(g.P).
		Add(actualVel.Sub(plannedVel).MulElem(g.D)).
		Mul(-1)
	return spatialmath.ForceVec{Moment: corr.Angular, Force: corr.Linear}
}

// Apply returns planned wrench corrected by Feedback.
func (g PDGain) Apply(
	wrench spatialmath.ForceVec,
	planned, actual spatialmath.Pose,
	plannedVel, actualVel spatialmath.MotionVec,
) spatialmath.ForceVec {
	return wrench.Add(g.Feedback(planned, actual, plannedVel, actualVel))
}
