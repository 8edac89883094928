package centroidal

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/limb"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
)

const testMass = 50.0

type fakeClock struct {
	tick int
	dt   float64
}

func (c *fakeClock) T() float64  { return float64(c.tick) * c.dt }
func (c *fakeClock) Dt() float64 { return c.dt }

type fakeLimbTask struct {
	pose         spatialmath.Pose
	measured     spatialmath.ForceVec
	targetWrench spatialmath.ForceVec
	wrenchCalls  int
	enabled      bool
}

func (f *fakeLimbTask) SurfacePose() spatialmath.Pose                               { return f.pose }
func (f *fakeLimbTask) TargetPose() spatialmath.Pose                                { return f.pose }
func (f *fakeLimbTask) CompliancePose() spatialmath.Pose                            { return f.pose }
func (f *fakeLimbTask) MeasuredWrench() spatialmath.ForceVec                        { return f.measured }
func (f *fakeLimbTask) SetTarget(pose spatialmath.Pose, _, _ spatialmath.MotionVec) { f.pose = pose }
func (f *fakeLimbTask) SetTargetWrench(w spatialmath.ForceVec) {
	f.targetWrench = w
	f.wrenchCalls++
}
func (f *fakeLimbTask) SetGain(task.Gain)                     {}
func (f *fakeLimbTask) SetImpedanceGains(task.ImpedanceGains) {}
func (f *fakeLimbTask) Hold(bool)                             {}
func (f *fakeLimbTask) Reset()                                {}
func (f *fakeLimbTask) Enable()                               { f.enabled = true }
func (f *fakeLimbTask) Disable()                              { f.enabled = false }
func (f *fakeLimbTask) Enabled() bool                         { return f.enabled }

type fakeRobot struct {
	controlPose spatialmath.Pose
	actualPose  spatialmath.Pose
	actualVel   spatialmath.MotionVec
	momentum    spatialmath.ForceVec
	basePose    spatialmath.Pose
	limbPoses   map[string]spatialmath.Pose
}

func (r *fakeRobot) Mass() float64                                  { return testMass }
func (r *fakeRobot) MomentOfInertia() r3.Vector                     { return r3.Vector{X: 4, Y: 4, Z: 1} }
func (r *fakeRobot) ControlCentroidalPose() spatialmath.Pose        { return r.controlPose }
func (r *fakeRobot) ControlBasePose() spatialmath.Pose              { return r.basePose }
func (r *fakeRobot) ControlLimbPose(l string) spatialmath.Pose      { return r.limbPoses[l] }
func (r *fakeRobot) ActualCentroidalPose() spatialmath.Pose         { return r.actualPose }
func (r *fakeRobot) ActualCentroidalVel() spatialmath.MotionVec     { return r.actualVel }
func (r *fakeRobot) ActualCentroidalMomentum() spatialmath.ForceVec { return r.momentum }
func (r *fakeRobot) ActualBasePose() spatialmath.Pose               { return r.basePose }
func (r *fakeRobot) ActualLimbPose(l string) spatialmath.Pose       { return r.limbPoses[l] }

type fakeTargets struct {
	com, comVel, comAccel r3.Vector
	orientation           quat.Number
	momentum              spatialmath.ForceVec
	calls                 int
}

func (f *fakeTargets) SetComTarget(pos, vel, accel r3.Vector) {
	f.com, f.comVel, f.comAccel = pos, vel, accel
	f.calls++
}

func (f *fakeTargets) SetBaseOrientationTarget(q quat.Number, _, _ r3.Vector) { f.orientation = q }
func (f *fakeTargets) SetMomentumTarget(m spatialmath.ForceVec)               { f.momentum = m }

func footPose(x, y float64) spatialmath.Pose {
	return spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y})
}

func footSurface(name string, pose spatialmath.Pose) contact.Constraint {
	return contact.NewSurface(name, 0.5, []r3.Vector{
		{X: 0.1, Y: 0.05}, {X: -0.1, Y: 0.05}, {X: -0.1, Y: -0.05}, {X: 0.1, Y: -0.05},
	}, pose)
}

type fixture struct {
	clock   *fakeClock
	robot   *fakeRobot
	targets *fakeTargets
	tasks   map[string]*fakeLimbTask
	limbs   *limb.ManagerSet
	manager *Manager
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	logger := logging.NewTestLogger(t)
	com := spatialmath.NewPoseFromPoint(r3.Vector{Z: 1})
	f := &fixture{
		clock: &fakeClock{dt: 0.005},
		robot: &fakeRobot{
			controlPose: com,
			actualPose:  com,
			basePose:    com,
			limbPoses: map[string]spatialmath.Pose{
				"LeftFoot":  footPose(0, 0.1),
				"RightFoot": footPose(0, -0.1),
			},
		},
		targets: &fakeTargets{},
		tasks: map[string]*fakeLimbTask{
			"LeftFoot":  {pose: footPose(0, 0.1)},
			"RightFoot": {pose: footPose(0, -0.1)},
		},
	}
	limbTasks := map[string]task.LimbTask{}
	for name, lt := range f.tasks {
		limbTasks[name] = lt
	}
	limbs, err := limb.NewManagerSet(
		[]limb.Config{limb.DefaultConfig("LeftFoot"), limb.DefaultConfig("RightFoot")},
		limbTasks, nil, f.clock, logger)
	test.That(t, err, test.ShouldBeNil)
	limbs.Reset(map[string]contact.Constraint{
		"LeftFoot":  footSurface("LeftFootPlane", footPose(0, 0.1)),
		"RightFoot": footSurface("RightFootPlane", footPose(0, -0.1)),
	})
	f.limbs = limbs

	m, err := NewManager(cfg, Deps{
		Clock:     f.clock,
		Limbs:     limbs,
		Robot:     f.robot,
		Targets:   f.targets,
		LimbTasks: limbTasks,
		Logger:    logger,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Reset(), test.ShouldBeNil)
	f.manager = m
	return f
}

// step runs one control cycle of the limbs and the centroidal manager, then advances the clock.
func (f *fixture) step() {
	f.limbs.Update()
	f.manager.Update()
	f.clock.tick++
}

// swingStep moves limb from its reset pose to pose, breaking contact at start and landing at end.
func swingStep(name string, start, end float64, pose spatialmath.Pose) *command.StepCommand {
	return &command.StepCommand{
		Limb: contact.LimbFromName(name),
		SwingCommand: &command.SwingCommand{
			Type:      command.Add,
			StartTime: start,
			EndTime:   end,
			Pose:      pose,
		},
		ContactCommands: []*command.ContactCommand{
			{Time: start},
			{Time: end, Constraint: footSurface(name+"Plane", pose)},
		},
	}
}
