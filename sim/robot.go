// Package sim provides a kinematic robot that tracks every target perfectly, for running the controller
// without a whole-body solver.
package sim

import (
	"sort"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
)

// GripperEvent is a gripper command received by the robot.
type GripperEvent struct {
	Name   string
	Config map[string]interface{}
}

// Robot is a floating base with ideal limbs. Targets take effect on the next Step.
type Robot struct {
	mu     sync.Mutex
	cfg    Config
	logger logging.Logger

	com, comVel, comAccel    r3.Vector
	baseOri                  quat.Number
	baseAngVel, baseAngAccel r3.Vector
	momentumTarget           spatialmath.ForceVec

	comTarget, comVelTarget, comAccelTarget r3.Vector
	oriTarget                               quat.Number
	angVelTarget, angAccelTarget            r3.Vector

	limbs    map[string]*Limb
	grippers []GripperEvent
}

// NewRobot returns a robot at its initial configuration.
func NewRobot(cfg Config, logger logging.Logger) (*Robot, error) {
	if err := cfg.Validate("sim"); err != nil {
		return nil, err
	}
	r := &Robot{cfg: cfg, logger: logger, limbs: map[string]*Limb{}}
	for name := range cfg.Limbs {
		r.limbs[name] = &Limb{robot: r, name: name}
	}
	r.Reset()
	return r, nil
}

// Reset puts the robot back at its initial configuration.
func (r *Robot) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.com = spatialmath.VectorFromArray(r.cfg.InitialCom)
	r.comVel, r.comAccel = r3.Vector{}, r3.Vector{}
	r.baseOri = spatialmath.IdentityQuat()
	r.baseAngVel, r.baseAngAccel = r3.Vector{}, r3.Vector{}
	r.comTarget, r.comVelTarget, r.comAccelTarget = r.com, r3.Vector{}, r3.Vector{}
	r.oriTarget = r.baseOri
	r.angVelTarget, r.angAccelTarget = r3.Vector{}, r3.Vector{}
	r.momentumTarget = spatialmath.ForceVec{}
	r.grippers = nil
	for name, l := range r.limbs {
		l.reset(r.cfg.Limbs[name].Pose())
	}
}

// Step applies the latest targets.
func (r *Robot) Step() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.com, r.comVel, r.comAccel = r.comTarget, r.comVelTarget, r.comAccelTarget
	r.baseOri = spatialmath.Normalize(r.oriTarget)
	r.baseAngVel, r.baseAngAccel = r.angVelTarget, r.angAccelTarget
	for _, l := range r.limbs {
		l.step()
	}
}

// Limb returns the task of the named limb.
func (r *Robot) Limb(name string) (*Limb, bool) {
	l, ok := r.limbs[name]
	return l, ok
}

// LimbNames returns the limb names in sorted order.
func (r *Robot) LimbNames() []string {
	names := make([]string, 0, len(r.limbs))
	for name := range r.limbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LimbTasks returns the tracking task of every limb.
func (r *Robot) LimbTasks() map[string]task.LimbTask {
	tasks := make(map[string]task.LimbTask, len(r.limbs))
	for name, l := range r.limbs {
		tasks[name] = l
	}
	return tasks
}

// Mass returns the robot mass [kg].
func (r *Robot) Mass() float64 { return r.cfg.Mass }

// MomentOfInertia returns the diagonal centroidal inertia.
func (r *Robot) MomentOfInertia() r3.Vector {
	return spatialmath.VectorFromArray(r.cfg.MomentOfInertia)
}

// ControlCentroidalPose returns the CoM position with the base orientation.
func (r *Robot) ControlCentroidalPose() spatialmath.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return spatialmath.NewPose(r.com, r.baseOri)
}

// ControlBasePose returns the base link pose.
func (r *Robot) ControlBasePose() spatialmath.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return spatialmath.Compose(spatialmath.NewPose(r.com, r.baseOri),
		spatialmath.NewPoseFromPoint(spatialmath.VectorFromArray(r.cfg.BaseOffset)))
}

// ControlLimbPose returns the surface pose of a limb.
func (r *Robot) ControlLimbPose(limb string) spatialmath.Pose {
	l, ok := r.limbs[limb]
	if !ok {
		return spatialmath.NewZeroPose()
	}
	return l.SurfacePose()
}

// ActualCentroidalPose equals the control pose since tracking is perfect.
func (r *Robot) ActualCentroidalPose() spatialmath.Pose { return r.ControlCentroidalPose() }

// ActualCentroidalVel returns the base angular velocity and CoM velocity.
func (r *Robot) ActualCentroidalVel() spatialmath.MotionVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return spatialmath.MotionVec{Angular: r.baseAngVel, Linear: r.comVel}
}

// ActualCentroidalMomentum returns the centroidal momentum about the CoM.
func (r *Robot) ActualCentroidalMomentum() spatialmath.ForceVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	inertia := spatialmath.VectorFromArray(r.cfg.MomentOfInertia)
	return spatialmath.ForceVec{
		Moment: spatialmath.MulElem(inertia, r.baseAngVel),
		Force:  r.comVel.Mul(r.cfg.Mass),
	}
}

// ActualBasePose equals the control base pose.
func (r *Robot) ActualBasePose() spatialmath.Pose { return r.ControlBasePose() }

// ActualLimbPose equals the control limb pose.
func (r *Robot) ActualLimbPose(limb string) spatialmath.Pose { return r.ControlLimbPose(limb) }

// SetComTarget sets the CoM target reached at the next Step.
func (r *Robot) SetComTarget(pos, vel, accel r3.Vector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comTarget, r.comVelTarget, r.comAccelTarget = pos, vel, accel
}

// SetBaseOrientationTarget sets the base orientation target reached at the next Step.
func (r *Robot) SetBaseOrientationTarget(orientation quat.Number, angVel, angAccel r3.Vector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oriTarget, r.angVelTarget, r.angAccelTarget = orientation, angVel, angAccel
}

// SetMomentumTarget records the centroidal momentum target.
func (r *Robot) SetMomentumTarget(momentum spatialmath.ForceVec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.momentumTarget = momentum
}

// MomentumTarget returns the last momentum target.
func (r *Robot) MomentumTarget() spatialmath.ForceVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.momentumTarget
}

// ComAccel returns the CoM acceleration applied at the last Step.
func (r *Robot) ComAccel() r3.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.comAccel
}

// GripperCommand records a gripper command. Unknown grippers are rejected.
func (r *Robot) GripperCommand(name string, config map[string]interface{}) error {
	if name == "" {
		return errors.New("gripper name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grippers = append(r.grippers, GripperEvent{Name: name, Config: config})
	r.logger.Debugw("gripper command", "name", name, "config", config)
	return nil
}

// GripperEvents returns the gripper commands received since reset.
func (r *Robot) GripperEvents() []GripperEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GripperEvent(nil), r.grippers...)
}
