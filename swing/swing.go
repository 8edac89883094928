// Package swing generates limb trajectories for swing commands.
package swing

import (
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/utils"
)

// TypeCubicSplineSimple names the cubic spline trajectory.
const TypeCubicSplineSimple = "CubicSplineSimple"

// Trajectory is the swing motion of one limb for one swing command.
type Trajectory interface {
	Type() string
	CommandType() command.SwingType
	StartPose() spatialmath.Pose
	EndPose() spatialmath.Pose
	StartTime() float64
	EndTime() float64

	Pose(t float64) spatialmath.Pose
	// Vel and Accel are expressed in the world frame.
	Vel(t float64) spatialmath.MotionVec
	Accel(t float64) spatialmath.MotionVec
	TaskGain(t float64) task.Gain
	// TouchDown freezes the trajectory from t on.
	TouchDown(t float64)
}

// Params are the per-command inputs of a trajectory.
type Params struct {
	CommandType command.SwingType
	// IsContact tells whether the limb leaves a contact, which adds a withdraw phase.
	IsContact bool
	StartPose spatialmath.Pose
	EndPose   spatialmath.Pose
	StartTime float64
	EndTime   float64
	TaskGain  task.Gain
}

// New builds a trajectory of type typ. overrides is the swing configuration document of the command;
// its entries replace those of base for this trajectory only.
func New(typ string, params Params, base Config, overrides utils.Document) (Trajectory, error) {
	if params.StartTime > params.EndTime {
		return nil, errors.Errorf("swing start time %v is after end time %v", params.StartTime, params.EndTime)
	}
	switch typ {
	case TypeCubicSplineSimple:
		cfg, err := base.Override(overrides)
		if err != nil {
			return nil, err
		}
		return NewCubicSplineSimple(params, cfg)
	default:
		return nil, errors.Errorf("invalid swing trajectory type %q", typ)
	}
}

// baseTraj holds the state common to every trajectory type.
type baseTraj struct {
	params        Params
	touchedDown   bool
	touchDownTime float64
}

func (b *baseTraj) CommandType() command.SwingType { return b.params.CommandType }
func (b *baseTraj) StartPose() spatialmath.Pose    { return b.params.StartPose }
func (b *baseTraj) EndPose() spatialmath.Pose      { return b.params.EndPose }
func (b *baseTraj) StartTime() float64             { return b.params.StartTime }
func (b *baseTraj) EndTime() float64               { return b.params.EndTime }

func (b *baseTraj) TouchDown(t float64) {
	b.touchedDown = true
	b.touchDownTime = t
}

// frozen reports whether t is at or after a detected touchdown.
func (b *baseTraj) frozen(t float64) bool {
	return b.touchedDown && t >= b.touchDownTime
}
