package swing

import (
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/trajectory"
)

// CubicSplineSimple lifts the limb off its contact, carries it over a raised midpoint and lowers it
// onto the landing pose. Each phase is a cubic spline and the phases are chained with matching
// velocities. A Remove command only withdraws the limb and fades the task stiffness out.
type CubicSplineSimple struct {
	baseTraj
	cfg Config

	posFunc       *trajectory.PiecewiseFunc
	rotFunc       *trajectory.RotationInterpolator
	stiffnessFunc *trajectory.CubicInterpolator
}

// NewCubicSplineSimple builds the trajectory for params.
func NewCubicSplineSimple(params Params, cfg Config) (*CubicSplineSimple, error) {
	if err := cfg.Validate("swing"); err != nil {
		return nil, err
	}
	st := &CubicSplineSimple{
		baseTraj: baseTraj{params: params},
		cfg:      cfg,
		posFunc:  trajectory.NewPiecewiseFunc(),
		rotFunc:  trajectory.NewRotationInterpolator(),
	}
	if params.EndTime == params.StartTime {
		// Degenerate window: jump to the final pose.
		final := params.EndPose
		if params.CommandType == command.Remove {
			final = params.StartPose
		}
		st.posFunc.Append(params.EndTime, trajectory.Constant{Vec: final.Point})
		st.rotFunc.Append(params.EndTime, final.Orientation)
		st.stiffnessFunc = trajectory.NewCubicInterpolator(map[float64]float64{params.EndTime: 1})
		return st, nil
	}

	var err error
	if params.CommandType == command.Add {
		err = st.buildAdd()
	} else {
		err = st.buildRemove()
	}
	if err != nil {
		return nil, errors.Wrap(err, "building cubic spline swing trajectory")
	}
	return st, nil
}

func (st *CubicSplineSimple) buildAdd() error {
	p := st.params
	duration := p.EndTime - p.StartTime
	withdrawEnd := p.StartTime + st.cfg.WithdrawDurationRatio*duration
	approachStart := p.EndTime - st.cfg.ApproachDurationRatio*duration

	// withdraw
	var withdraw *trajectory.CubicSpline
	withdrawPoint := p.StartPose.Offset(spatialmath.VectorFromArray(st.cfg.WithdrawOffset)).Point
	if p.IsContact {
		var err error
		withdraw, err = trajectory.NewCubicSpline(trajectory.ZeroVelocity(), trajectory.ZeroAcceleration(), []trajectory.Waypoint{
			{Time: p.StartTime, Value: p.StartPose.Point},
			{Time: withdrawEnd, Value: withdrawPoint},
		})
		if err != nil {
			return err
		}
		st.posFunc.Append(withdrawEnd, withdraw)
	}
	st.rotFunc.Append(p.StartTime, p.StartPose.Orientation)
	if p.IsContact {
		st.rotFunc.Append(withdrawEnd, p.StartPose.Orientation)
	}

	// approach
	approachPoint := p.EndPose.Offset(spatialmath.VectorFromArray(st.cfg.ApproachOffset)).Point
	approach, err := trajectory.NewCubicSpline(trajectory.ZeroAcceleration(), trajectory.ZeroVelocity(), []trajectory.Waypoint{
		{Time: approachStart, Value: approachPoint},
		{Time: p.EndTime, Value: p.EndPose.Point},
	})
	if err != nil {
		return err
	}
	st.posFunc.Append(p.EndTime, approach)
	st.rotFunc.Append(approachStart, p.EndPose.Orientation)
	st.rotFunc.Append(p.EndTime, p.EndPose.Orientation)

	// transit
	endBC := trajectory.BoundaryConstraint{Type: trajectory.Velocity, Value: approach.Derivative(approachStart, 1)}
	var transit *trajectory.CubicSpline
	if p.IsContact {
		midPoint := spatialmath.Interpolate(p.StartPose, p.EndPose, 0.5).
			Offset(spatialmath.VectorFromArray(st.cfg.SwingOffset)).Point
		startBC := trajectory.BoundaryConstraint{Type: trajectory.Velocity, Value: withdraw.Derivative(withdrawEnd, 1)}
		transit, err = trajectory.NewCubicSpline(startBC, endBC, []trajectory.Waypoint{
			{Time: withdrawEnd, Value: withdrawPoint},
			{Time: 0.5 * (p.StartTime + p.EndTime), Value: midPoint},
			{Time: approachStart, Value: approachPoint},
		})
	} else {
		transit, err = trajectory.NewCubicSpline(trajectory.ZeroVelocity(), endBC, []trajectory.Waypoint{
			{Time: p.StartTime, Value: p.StartPose.Point},
			{Time: approachStart, Value: approachPoint},
		})
	}
	if err != nil {
		return err
	}
	st.posFunc.Append(approachStart, transit)
	return nil
}

func (st *CubicSplineSimple) buildRemove() error {
	p := st.params
	withdrawEnd := p.StartTime + st.cfg.WithdrawDurationRatio*(p.EndTime-p.StartTime)
	withdrawPoint := p.StartPose.Offset(spatialmath.VectorFromArray(st.cfg.WithdrawOffset)).Point

	withdraw, err := trajectory.NewCubicSpline(trajectory.ZeroVelocity(), trajectory.ZeroVelocity(), []trajectory.Waypoint{
		{Time: p.StartTime, Value: p.StartPose.Point},
		{Time: withdrawEnd, Value: withdrawPoint},
	})
	if err != nil {
		return err
	}
	st.posFunc.Append(withdrawEnd, withdraw)
	st.posFunc.Append(p.EndTime, trajectory.Constant{Vec: withdrawPoint})

	st.rotFunc.Append(p.StartTime, p.StartPose.Orientation)
	st.rotFunc.Append(p.EndTime, p.StartPose.Orientation)

	st.stiffnessFunc = trajectory.NewCubicInterpolator(map[float64]float64{
		p.StartTime:                     1,
		withdrawEnd:                     1,
		0.5 * (withdrawEnd + p.EndTime): 0,
		p.EndTime:                       0,
	})
	return nil
}

// Type returns TypeCubicSplineSimple.
func (st *CubicSplineSimple) Type() string {
	return TypeCubicSplineSimple
}

// Pose returns the pose at t, or at the touchdown time once touchdown was notified.
func (st *CubicSplineSimple) Pose(t float64) spatialmath.Pose {
	if st.frozen(t) {
		t = st.touchDownTime
	}
	return spatialmath.Pose{Point: st.posFunc.Value(t), Orientation: st.rotFunc.Value(t)}
}

// Vel returns the velocity at t, zero after touchdown.
func (st *CubicSplineSimple) Vel(t float64) spatialmath.MotionVec {
	if st.frozen(t) {
		return spatialmath.MotionVec{}
	}
	return spatialmath.MotionVec{Angular: st.rotFunc.Derivative(t, 1), Linear: st.posFunc.Derivative(t, 1)}
}

// Accel returns the acceleration at t, zero after touchdown.
func (st *CubicSplineSimple) Accel(t float64) spatialmath.MotionVec {
	if st.frozen(t) {
		return spatialmath.MotionVec{}
	}
	return spatialmath.MotionVec{Angular: st.rotFunc.Derivative(t, 2), Linear: st.posFunc.Derivative(t, 2)}
}

// TaskGain returns the nominal gain for Add, and a stiffness fading to zero for Remove.
func (st *CubicSplineSimple) TaskGain(t float64) task.Gain {
	if st.params.CommandType == command.Add {
		return st.params.TaskGain
	}
	return st.params.TaskGain.Scale(st.stiffnessFunc.Value(t))
}
