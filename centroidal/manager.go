// Package centroidal plans the centroidal motion of the robot and distributes the resulting wrench over
// the active contacts.
package centroidal

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/control"
	"github.com/isri-aist/MultiContactController/forcedist"
	"github.com/isri-aist/MultiContactController/limb"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/utils"
)

// minWeight is the smallest positive normal float64. Limbs weighted below it are ignored.
const minWeight = 0x1p-1022

// Deps are the collaborators of a Manager.
type Deps struct {
	Clock     limb.Clock
	Limbs     *limb.ManagerSet
	Robot     RobotState
	Targets   TaskTargets
	LimbTasks map[string]task.LimbTask
	// Distributor defaults to a least-squares distributor built from Config.WrenchDist.
	Distributor forcedist.Distributor
	Logger      logging.Logger
}

// Manager computes the centroidal targets of the whole-body solver on each control cycle.
type Manager struct {
	cfg  Config
	deps Deps

	strategy Strategy
	lowPass  *control.LowPassFilter

	mass    float64
	inertia r3.Vector

	nominalTimes []float64
	nominalPoses []spatialmath.Pose

	refData      RefData
	controlData  ControlData
	contacts     map[string]contact.Constraint
	distribution forcedist.Result

	lastAnchorPoint r3.Vector
}

// NewManager returns a manager. Reset must be called before the first Update.
func NewManager(cfg Config, deps Deps) (*Manager, error) {
	if err := cfg.Validate(cfg.Name); err != nil {
		return nil, err
	}
	switch {
	case deps.Clock == nil:
		return nil, errors.New("centroidal manager requires a clock")
	case deps.Limbs == nil:
		return nil, errors.New("centroidal manager requires a limb manager set")
	case deps.Robot == nil:
		return nil, errors.New("centroidal manager requires a robot state")
	case deps.Targets == nil:
		return nil, errors.New("centroidal manager requires task targets")
	case deps.Logger == nil:
		return nil, errors.New("centroidal manager requires a logger")
	}
	for _, name := range deps.Limbs.Limbs() {
		if _, ok := deps.LimbTasks[name]; !ok {
			return nil, errors.Errorf("no limb task for %q", name)
		}
	}
	if deps.Distributor == nil {
		dist, err := forcedist.NewLeastSquares(cfg.WrenchDist)
		if err != nil {
			return nil, err
		}
		deps.Distributor = dist
	}
	return &Manager{cfg: cfg, deps: deps}, nil
}

// Config returns the configuration.
func (m *Manager) Config() Config { return m.cfg }

// Strategy returns the planning strategy built by the last Reset.
func (m *Manager) Strategy() Strategy { return m.strategy }

// Reset rebuilds the planner from the current robot state and restarts the nominal pose timeline at the
// current time with the configured nominal pose.
func (m *Manager) Reset() error {
	m.mass = m.deps.Robot.Mass()
	m.inertia = m.deps.Robot.MomentOfInertia()

	strategy, err := NewStrategy(&m.cfg, m.mass, m.inertia, m.deps.Logger)
	if err != nil {
		return errors.Wrap(err, "centroidal strategy")
	}
	m.strategy = strategy

	lowPass, err := control.NewLowPassFilter(m.deps.Clock.Dt(), m.cfg.LowPassCutoffPeriod)
	if err != nil {
		return err
	}
	m.lowPass = lowPass

	m.refData = RefData{}
	m.controlData.Reset(m.deps.Robot.ControlCentroidalPose())
	m.contacts = nil
	m.distribution = forcedist.Result{}

	m.nominalTimes = []float64{m.deps.Clock.T()}
	m.nominalPoses = []spatialmath.Pose{m.cfg.NominalCentroidalPose.Pose()}

	m.lastAnchorPoint = m.AnchorFrame(AnchorControl).Point
	m.deps.Logger.Infow("centroidal manager reset",
		"method", m.cfg.Method, "mass", m.mass, "momentOfInertia", m.inertia)
	return nil
}

// Update runs one control cycle.
func (m *Manager) Update() {
	t := m.deps.Clock.T()
	dt := m.deps.Clock.Dt()
	cd := &m.controlData

	m.refData = m.CalcRefData(t)
	m.measure()
	m.setMpcState()

	step, err := m.strategy.Plan(&Problem{
		T:               t,
		Dt:              dt,
		Mass:            m.mass,
		MomentOfInertia: m.inertia,
		Pose:            cd.MpcCentroidalPose,
		Vel:             cd.MpcCentroidalVel,
		Momentum:        cd.MpcCentroidalMomentum,
		PlannedVel:      cd.PlannedCentroidalVel,
		PlannedAccel:    cd.PlannedCentroidalAccel,
		PlannedMomentum: cd.PlannedCentroidalMomentum,
		Contacts:        m.deps.Limbs.ContactList,
		Ref:             func(t float64) spatialmath.Pose { return m.CalcRefData(t).CentroidalPose },
	})
	if err != nil {
		m.deps.Logger.Errorw("centroidal planning failed, keeping the previous plan", "t", t, "error", err)
	} else {
		cd.PlannedCentroidalWrench = step.Wrench
		cd.PlannedCentroidalMomentum = step.Momentum
		cd.PlannedCentroidalAccel = step.Accel
	}

	cd.ControlCentroidalWrench = cd.PlannedCentroidalWrench
	if m.cfg.EnableCentroidalFeedback {
		cd.ControlCentroidalWrench = m.cfg.Gain().Apply(cd.PlannedCentroidalWrench,
			cd.PlannedCentroidalPose, cd.ActualCentroidalPose, cd.PlannedCentroidalVel, cd.ActualCentroidalVel)
	}

	m.contacts = m.deps.Limbs.ContactList(t)
	comForWrenchDist := cd.PlannedCentroidalPose.Point
	if m.cfg.UseActualComForWrenchDist {
		comForWrenchDist = cd.ActualCentroidalPose.Point
	}
	m.distribution, err = m.deps.Distributor.Run(m.contacts, cd.ControlCentroidalWrench, comForWrenchDist)
	if err != nil {
		m.deps.Logger.Errorw("wrench distribution failed", "t", t, "error", err)
		m.distribution = forcedist.Result{}
	}
	cd.ProjectedCentroidalWrench = m.distribution.TotalWrench

	m.integrate(dt)
	m.setTargets()
	m.updateMonitor()
}

// measure fills the actual centroidal state from the sensed robot.
func (m *Manager) measure() {
	cd := &m.controlData
	robot := m.deps.Robot

	cd.ActualCentroidalPose = robot.ActualCentroidalPose()
	if m.lowPass.CutoffPeriod() != m.cfg.LowPassCutoffPeriod {
		if err := m.lowPass.SetCutoffPeriod(m.cfg.LowPassCutoffPeriod); err != nil {
			m.deps.Logger.Errorw("invalid low-pass cutoff period", "error", err)
		}
	}
	cd.ActualCentroidalVel = m.lowPass.Next(robot.ActualCentroidalVel())
	cd.ActualCentroidalMomentum = robot.ActualCentroidalMomentum()

	com := cd.ActualCentroidalPose.Point
	cd.ActualCentroidalWrench = spatialmath.ForceVec{}
	for _, name := range m.deps.Limbs.Limbs() {
		local := m.deps.LimbTasks[name].MeasuredWrench()
		pose := robot.ActualLimbPose(name)
		world := spatialmath.ForceVec{
			Moment: spatialmath.RotateVector(pose.Orientation, local.Moment),
			Force:  spatialmath.RotateVector(pose.Orientation, local.Force),
		}
		cd.ActualCentroidalWrench = cd.ActualCentroidalWrench.Add(spatialmath.ForceVec{
			Moment: world.MomentAbout(pose.Point, com),
			Force:  world.Force,
		})
	}
}

// setMpcState selects the initial state of the plan.
func (m *Manager) setMpcState() {
	cd := &m.controlData
	if m.cfg.UseActualStateForMpc {
		cd.MpcCentroidalPose = cd.ActualCentroidalPose
		cd.MpcCentroidalVel = cd.ActualCentroidalVel
		cd.MpcCentroidalMomentum = cd.ActualCentroidalMomentum
		return
	}
	cd.MpcCentroidalPose = cd.PlannedCentroidalPose
	cd.MpcCentroidalVel = cd.PlannedCentroidalVel
	cd.MpcCentroidalMomentum = cd.PlannedCentroidalMomentum
}

// integrate advances the planned state by one control step from the mpc state.
func (m *Manager) integrate(dt float64) {
	cd := &m.controlData
	accel := cd.PlannedCentroidalAccel
	cd.PlannedCentroidalPose = spatialmath.Pose{
		Point: cd.MpcCentroidalPose.Point.Add(
			cd.MpcCentroidalVel.Linear.Add(accel.Linear.Mul(dt / 2)).Mul(dt)),
		Orientation: IntegrateRotation(cd.MpcCentroidalPose.Orientation, cd.MpcCentroidalVel.Angular, accel.Angular, dt),
	}
	cd.PlannedCentroidalVel = cd.MpcCentroidalVel.Add(accel.Mul(dt))
}

// IntegrateRotation returns Exp(dt*(omega + dt/2*alpha)) * q, where the rotation vector is expressed in
// the world frame.
func IntegrateRotation(q quat.Number, omega, alpha r3.Vector, dt float64) quat.Number {
	delta := omega.Add(alpha.Mul(dt / 2)).Mul(dt)
	return spatialmath.Normalize(quat.Mul(spatialmath.ExpRot(delta), q))
}

func (m *Manager) setTargets() {
	cd := &m.controlData
	targets := m.deps.Targets
	targets.SetComTarget(cd.PlannedCentroidalPose.Point, cd.PlannedCentroidalVel.Linear, cd.PlannedCentroidalAccel.Linear)
	targets.SetBaseOrientationTarget(cd.PlannedCentroidalPose.Orientation,
		cd.PlannedCentroidalVel.Angular, cd.PlannedCentroidalAccel.Angular)
	targets.SetMomentumTarget(cd.PlannedCentroidalMomentum)

	for _, name := range m.deps.Limbs.Limbs() {
		// absent limbs get a zero wrench
		m.deps.LimbTasks[name].SetTargetWrench(m.distribution.Wrenches[name])
	}
}

func (m *Manager) updateMonitor() {
	cd := &m.controlData
	if pose, ok := m.anchorFrame(AnchorControl); ok {
		m.lastAnchorPoint = pose.Point
	}
	origin := m.lastAnchorPoint
	mpcCom := cd.MpcCentroidalPose.Point
	cd.PlannedZMP = ZMP(cd.PlannedCentroidalWrench, mpcCom, origin)
	cd.ControlZMP = ZMP(cd.ControlCentroidalWrench, mpcCom, origin)
	cd.ProjectedZMP = ZMP(cd.ProjectedCentroidalWrench, mpcCom, origin)
	cd.ActualZMP = ZMP(cd.ActualCentroidalWrench, cd.ActualCentroidalPose.Point, origin)

	cd.ContactRegionMin, cd.ContactRegionMax = ContactRegion(m.contacts, origin)
}

// ZMP returns the zero moment point of wrench, taken about momentOrigin, on the horizontal plane through
// planeOrigin. Without positive normal force it returns planeOrigin.
func ZMP(wrench spatialmath.ForceVec, momentOrigin, planeOrigin r3.Vector) r3.Vector {
	if wrench.Force.Z <= 0 {
		return planeOrigin
	}
	moment := wrench.MomentAbout(momentOrigin, planeOrigin)
	normal := r3.Vector{Z: 1}
	return planeOrigin.Add(normal.Cross(moment).Mul(1 / wrench.Force.Z))
}

// ContactRegion returns the horizontal bounding box of the contact vertices. An empty contact set gives
// the degenerate box at fallback.
func ContactRegion(contacts map[string]contact.Constraint, fallback r3.Vector) (lo, hi r3.Vector) {
	lo = r3.Vector{X: math.Inf(1), Y: math.Inf(1)}
	hi = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1)}
	found := false
	for _, c := range contacts {
		for _, v := range c.VertexWithRidgesList() {
			found = true
			lo.X, lo.Y = math.Min(lo.X, v.Vertex.X), math.Min(lo.Y, v.Vertex.Y)
			hi.X, hi.Y = math.Max(hi.X, v.Vertex.X), math.Max(hi.Y, v.Vertex.Y)
		}
	}
	if !found {
		p := r3.Vector{X: fallback.X, Y: fallback.Y}
		return p, p
	}
	return lo, hi
}

// Stop clears the wrench targets of all limbs.
func (m *Manager) Stop() {
	for _, name := range m.deps.Limbs.Limbs() {
		m.deps.LimbTasks[name].SetTargetWrench(spatialmath.ForceVec{})
	}
	m.deps.Logger.Infow("centroidal manager stopped", "t", m.deps.Clock.T())
}

// AppendNominalCentroidalPose adds a nominal pose effective from t. Times in the past or before the last
// entry are rejected. An entry at the same time as the last one replaces it.
func (m *Manager) AppendNominalCentroidalPose(t float64, pose spatialmath.Pose) bool {
	if now := m.deps.Clock.T(); t < now {
		m.deps.Logger.Errorw("ignoring a nominal centroidal pose with past time", "t", t, "now", now)
		return false
	}
	if n := len(m.nominalTimes); n > 0 {
		last := m.nominalTimes[n-1]
		if t < last {
			m.deps.Logger.Errorw("ignoring a nominal centroidal pose earlier than the last one", "t", t, "last", last)
			return false
		}
		if t == last {
			m.nominalPoses[n-1] = pose
			return true
		}
	}
	m.nominalTimes = append(m.nominalTimes, t)
	m.nominalPoses = append(m.nominalPoses, pose)
	return true
}

// IsFinished reports whether t is past the last nominal pose.
func (m *Manager) IsFinished(t float64) bool {
	if len(m.nominalTimes) == 0 {
		return true
	}
	return t > m.nominalTimes[len(m.nominalTimes)-1]
}

// NominalCentroidalPose returns the nominal pose in effect at t. Querying before the first entry is fatal.
func (m *Manager) NominalCentroidalPose(t float64) spatialmath.Pose {
	idx := sort.Search(len(m.nominalTimes), func(i int) bool { return m.nominalTimes[i] > t })
	if idx == 0 {
		utils.Fatalf(m.deps.Logger, "nominal centroidal pose queried before the first entry: t=%v, now=%v",
			t, m.deps.Clock.T())
	}
	return m.nominalPoses[idx-1]
}

// CalcRefData returns the reference at t.
func (m *Manager) CalcRefData(t float64) RefData {
	nominal := m.NominalCentroidalPose(t)
	if m.cfg.NominalCentroidalPoseBaseFrame == BaseFrameWorld {
		return RefData{CentroidalPose: nominal}
	}
	base := spatialmath.ProjGround(m.CalcLimbAveragePoseForRefData(t, false), false)
	return RefData{CentroidalPose: spatialmath.Compose(base, nominal)}
}

// CalcLimbAveragePoseForRefData averages the poses of the weighted limbs at t, each weight scaled by the
// contact weight of its limb. When no weighted limb is in contact, it returns the midpoint of the
// averages at the closest past and future times all weighted limbs are in contact.
func (m *Manager) CalcLimbAveragePoseForRefData(t float64, recursive bool) spatialmath.Pose {
	var list []spatialmath.WeightedPose
	for _, name := range m.deps.Limbs.Limbs() {
		w, ok := m.cfg.LimbWeightListForRefData[name]
		if !ok {
			continue
		}
		lm, _ := m.deps.Limbs.Get(name)
		w *= lm.ContactWeight(t)
		if w < minWeight {
			continue
		}
		list = append(list, spatialmath.WeightedPose{Weight: w, Pose: lm.LimbPose(t)})
	}

	if len(list) > 0 {
		avg, err := spatialmath.WeightedAveragePose(list)
		if err != nil {
			utils.Fatalf(m.deps.Logger, "limb average pose at %v: %v", t, err)
		}
		switch m.cfg.RefComZPolicy {
		case RefComZConstant:
			avg.Point.Z = 0
		case RefComZMin, RefComZMax:
			z := list[0].Pose.Point.Z
			for _, wp := range list[1:] {
				if m.cfg.RefComZPolicy == RefComZMin {
					z = math.Min(z, wp.Pose.Point.Z)
				} else {
					z = math.Max(z, wp.Pose.Point.Z)
				}
			}
			avg.Point.Z = z
		}
		return avg
	}

	if recursive {
		utils.Fatalf(m.deps.Logger, "no weighted limb in contact at %v for the closest contact average", t)
	}
	limbs := make([]string, 0, len(m.cfg.LimbWeightListForRefData))
	for name := range m.cfg.LimbWeightListForRefData {
		limbs = append(limbs, name)
	}
	sort.Strings(limbs)
	times := m.deps.Limbs.ClosestContactTimes(t, limbs)
	var closest [2]spatialmath.Pose
	for i, tau := range times {
		if math.IsNaN(tau) {
			utils.Fatalf(m.deps.Logger, "no closest contact time (index %d) around %v for the limb average pose", i, t)
		}
		closest[i] = m.CalcLimbAveragePoseForRefData(tau, true)
	}
	return spatialmath.Interpolate(closest[0], closest[1], 0.5)
}

// AnchorFrame returns the weighted average of the limb poses in contact, for the control or the real
// robot. Without any weighted limb in contact it returns the base pose of that robot.
func (m *Manager) AnchorFrame(source AnchorSource) spatialmath.Pose {
	if pose, ok := m.anchorFrame(source); ok {
		return pose
	}
	if source == AnchorReal {
		return m.deps.Robot.ActualBasePose()
	}
	return m.deps.Robot.ControlBasePose()
}

func (m *Manager) anchorFrame(source AnchorSource) (spatialmath.Pose, bool) {
	t := m.deps.Clock.T()
	var list []spatialmath.WeightedPose
	for _, name := range m.deps.Limbs.Limbs() {
		w, ok := m.cfg.LimbWeightListForAnchorFrame[name]
		if !ok {
			continue
		}
		lm, _ := m.deps.Limbs.Get(name)
		w *= lm.ContactWeight(t)
		if w < minWeight {
			continue
		}
		var pose spatialmath.Pose
		switch {
		case source == AnchorControl && m.cfg.UseTargetPoseForControlRobotAnchorFrame:
			pose = m.deps.LimbTasks[name].TargetPose()
		case source == AnchorControl:
			pose = m.deps.Robot.ControlLimbPose(name)
		default:
			pose = m.deps.Robot.ActualLimbPose(name)
		}
		list = append(list, spatialmath.WeightedPose{Weight: w, Pose: pose})
	}
	if len(list) == 0 {
		return spatialmath.Pose{}, false
	}
	avg, err := spatialmath.WeightedAveragePose(list)
	if err != nil {
		utils.Fatalf(m.deps.Logger, "%s anchor frame: %v", source, err)
	}
	return avg, true
}

// RefData returns the reference of the last update.
func (m *Manager) RefData() RefData { return m.refData }

// ControlData returns the pipeline state of the last update.
func (m *Manager) ControlData() ControlData { return m.controlData }

// Distribution returns the wrench distribution of the last update.
func (m *Manager) Distribution() forcedist.Result { return m.distribution }

// ContactList returns the contact set used by the last update.
func (m *Manager) ContactList() map[string]contact.Constraint { return m.contacts }
