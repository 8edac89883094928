// Package task defines the tracking-task sinks and gains exchanged with the whole-body solver.
package task

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// Gain is the stiffness/damping pair of a pose tracking task.
type Gain struct {
	Stiffness spatialmath.MotionVec `json:"stiffness"`
	Damping   spatialmath.MotionVec `json:"damping"`
}

// NewGain returns a gain with critical damping, 2*sqrt(stiffness) per axis.
func NewGain(stiffness spatialmath.MotionVec) Gain {
	damp := func(v float64) float64 { return 2 * math.Sqrt(math.Max(v, 0)) }
	return Gain{
		Stiffness: stiffness,
		Damping: spatialmath.MotionVec{
			Angular: mapVec(stiffness.Angular, damp),
			Linear:  mapVec(stiffness.Linear, damp),
		},
	}
}

// NewUniformGain returns a critically damped gain with the same stiffness on every axis.
func NewUniformGain(stiffness float64) Gain {
	return NewGain(spatialmath.UniformMotionVec(stiffness))
}

// Scale returns a critically damped gain whose stiffness is ratio times the stiffness of g.
func (g Gain) Scale(ratio float64) Gain {
	return NewGain(g.Stiffness.Mul(ratio))
}

// ImpedanceGains configure the compliance of a limb task.
type ImpedanceGains struct {
	Mass   spatialmath.MotionVec `json:"mass"`
	Damper spatialmath.MotionVec `json:"damper"`
	Spring spatialmath.MotionVec `json:"spring"`
	Wrench spatialmath.MotionVec `json:"wrench"`
}

// DefaultImpedanceGains returns a moderately compliant setting.
func DefaultImpedanceGains() ImpedanceGains {
	return ImpedanceGains{
		Mass:   spatialmath.MotionVec{Angular: vec3(1), Linear: vec3(10)},
		Damper: spatialmath.MotionVec{Angular: vec3(100), Linear: vec3(1000)},
		Spring: spatialmath.MotionVec{Angular: vec3(100), Linear: vec3(1000)},
		Wrench: spatialmath.MotionVec{Angular: vec3(0), Linear: vec3(1)},
	}
}

// LimbTask is the tracking task of one limb inside the external solver.
type LimbTask interface {
	// SurfacePose is the limb surface pose of the control robot (solver result).
	SurfacePose() spatialmath.Pose
	// TargetPose is the last target given to the task.
	TargetPose() spatialmath.Pose
	// CompliancePose is the target modified by the impedance filter.
	CompliancePose() spatialmath.Pose
	// MeasuredWrench is the sensed wrench at the limb surface, expressed in the surface frame.
	MeasuredWrench() spatialmath.ForceVec

	SetTarget(pose spatialmath.Pose, vel, accel spatialmath.MotionVec)
	// SetTargetWrench sets the contact wrench in world orientation, taken about the surface origin.
	SetTargetWrench(wrench spatialmath.ForceVec)
	SetGain(gain Gain)
	SetImpedanceGains(gains ImpedanceGains)
	// Hold freezes the target at the current compliance pose for one cycle.
	Hold(hold bool)

	Reset()
	Enable()
	Disable()
	Enabled() bool
}

// GripperSink receives gripper commands when they become due.
type GripperSink interface {
	GripperCommand(name string, config map[string]interface{}) error
}

// CentroidalTargets are the CoM and base orientation tracking tasks of the solver.
type CentroidalTargets interface {
	SetComTarget(pos, vel, accel r3.Vector)
	SetBaseOrientationTarget(orientation quat.Number, angVel, angAccel r3.Vector)
}

func vec3(v float64) r3.Vector {
	return r3.Vector{X: v, Y: v, Z: v}
}

func mapVec(v r3.Vector, f func(float64) float64) r3.Vector {
	return r3.Vector{X: f(v.X), Y: f(v.Y), Z: f(v.Z)}
}
