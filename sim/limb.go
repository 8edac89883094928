package sim

import (
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
)

// Limb is the ideal tracking task of one limb. An enabled limb reaches its target at the next Step
// unless held; a disabled limb stays where it is.
type Limb struct {
	robot *Robot
	name  string

	pose     spatialmath.Pose
	target   spatialmath.Pose
	vel      spatialmath.MotionVec
	wrench   spatialmath.ForceVec
	gain     task.Gain
	impGains task.ImpedanceGains
	hold     bool
	enabled  bool
}

func (l *Limb) reset(pose spatialmath.Pose) {
	l.pose = pose
	l.target = pose
	l.vel = spatialmath.MotionVec{}
	l.wrench = spatialmath.ForceVec{}
	l.hold = false
	l.enabled = false
}

func (l *Limb) step() {
	if !l.enabled || l.hold {
		return
	}
	l.pose = l.target
}

// Name returns the limb name.
func (l *Limb) Name() string { return l.name }

// SurfacePose returns the current surface pose.
func (l *Limb) SurfacePose() spatialmath.Pose {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.pose
}

// TargetPose returns the last target.
func (l *Limb) TargetPose() spatialmath.Pose {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.target
}

// CompliancePose is the target since the limb has no compliance.
func (l *Limb) CompliancePose() spatialmath.Pose { return l.TargetPose() }

// InContact reports whether the surface is within the contact margin of the ground.
func (l *Limb) InContact() bool {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.inContact()
}

func (l *Limb) inContact() bool {
	return l.pose.Point.Z <= l.robot.cfg.GroundHeight+l.robot.cfg.ContactMargin
}

// MeasuredWrench returns the target wrench in the surface frame while touching the ground, with at
// least the configured preload along the surface normal. It is zero in the air.
func (l *Limb) MeasuredWrench() spatialmath.ForceVec {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	if !l.inContact() {
		return spatialmath.ForceVec{}
	}
	inv := quat.Conj(l.pose.Orientation)
	w := spatialmath.ForceVec{
		Moment: spatialmath.RotateVector(inv, l.wrench.Moment),
		Force:  spatialmath.RotateVector(inv, l.wrench.Force),
	}
	if w.Force.Z < l.robot.cfg.Preload {
		w.Force.Z = l.robot.cfg.Preload
	}
	return w
}

// SetTarget sets the pose target.
func (l *Limb) SetTarget(pose spatialmath.Pose, vel, _ spatialmath.MotionVec) {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.target = pose
	l.vel = vel
}

// SetTargetWrench sets the contact wrench target.
func (l *Limb) SetTargetWrench(wrench spatialmath.ForceVec) {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.wrench = wrench
}

// TargetWrench returns the contact wrench target.
func (l *Limb) TargetWrench() spatialmath.ForceVec {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.wrench
}

// SetGain sets the pose tracking gain.
func (l *Limb) SetGain(gain task.Gain) {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.gain = gain
}

// Gain returns the pose tracking gain.
func (l *Limb) Gain() task.Gain {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.gain
}

// SetImpedanceGains sets the impedance gains.
func (l *Limb) SetImpedanceGains(gains task.ImpedanceGains) {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.impGains = gains
}

// Hold freezes the limb at the next Step.
func (l *Limb) Hold(hold bool) {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.hold = hold
}

// Reset moves the target to the current pose.
func (l *Limb) Reset() {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.target = l.pose
	l.vel = spatialmath.MotionVec{}
}

// Enable enables tracking.
func (l *Limb) Enable() {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.enabled = true
}

// Disable disables tracking.
func (l *Limb) Disable() {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	l.enabled = false
}

// Enabled reports whether tracking is enabled.
func (l *Limb) Enabled() bool {
	l.robot.mu.Lock()
	defer l.robot.mu.Unlock()
	return l.enabled
}
