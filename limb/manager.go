// Package limb manages the swing, contact, and gripper commands of each limb and drives the limb tasks.
package limb

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/swing"
	"github.com/isri-aist/MultiContactController/task"
	"github.com/isri-aist/MultiContactController/utils"
)

// Clock is the control time source shared by the managers.
type Clock interface {
	// T is the current control time in seconds.
	T() float64
	// Dt is the control period in seconds.
	Dt() float64
}

// Phase is the observable state of a limb.
type Phase int

// Limb phases.
const (
	// Free limbs are neither in contact nor swinging.
	Free Phase = iota
	// Swing limbs execute a swing command.
	Swing
	// SwingTouchDown limbs execute an Add command and have already touched the environment.
	SwingTouchDown
	// Contact limbs are in contact and idle.
	Contact
)

func (p Phase) String() string {
	switch p {
	case Free:
		return "Free"
	case Swing:
		return "Swing"
	case SwingTouchDown:
		return "SwingTouchDown"
	case Contact:
		return "Contact"
	default:
		return "Unknown"
	}
}

// DefaultWeightTransitDuration is the duration used by ContactWeight when none is configured.
const DefaultWeightTransitDuration = 0.1

const minContactWeight = 1e-8

// Manager runs the command queues of one limb. It is driven by a single control goroutine.
type Manager struct {
	limb    contact.Limb
	cfg     Config
	clock   Clock
	task    task.LimbTask
	gripper task.GripperSink
	logger  logging.Logger

	swingCommandQueue     []*command.SwingCommand
	executingSwingCommand *command.SwingCommand
	prevSwingCommand      *command.SwingCommand
	lastAddCommand        *command.SwingCommand
	contactCommandList    []*command.ContactCommand
	gripperCommandQueue   []*command.GripperCommand

	swingTraj   swing.Trajectory
	targetPose  spatialmath.Pose
	targetVel   spatialmath.MotionVec
	targetAccel spatialmath.MotionVec
	taskGain    task.Gain
	landingPose spatialmath.Pose

	isContact   bool
	touchDown   bool
	impGainType string
}

// NewManager returns a manager for limb. gripper may be nil when the limb has no gripper.
func NewManager(
	limb contact.Limb,
	cfg Config,
	clock Clock,
	limbTask task.LimbTask,
	gripper task.GripperSink,
	logger logging.Logger,
) (*Manager, error) {
	if cfg.Limb == "" {
		cfg.Limb = limb.Name
	}
	if err := cfg.Validate("limbManager"); err != nil {
		return nil, err
	}
	if limbTask == nil {
		return nil, errors.Errorf("no limb task for %s", limb)
	}
	return &Manager{
		limb:     limb,
		cfg:      cfg,
		clock:    clock,
		task:     limbTask,
		gripper:  gripper,
		logger:   logger,
		taskGain: cfg.TaskGain(),
	}, nil
}

// Limb returns the managed limb.
func (m *Manager) Limb() contact.Limb { return m.limb }

// Config returns the manager configuration.
func (m *Manager) Config() Config { return m.cfg }

// Reset clears all queues and starts from the current limb pose. A nil constraint starts the limb
// free and disables its task.
func (m *Manager) Reset(constraint contact.Constraint) {
	m.swingCommandQueue = nil
	m.executingSwingCommand = nil
	m.prevSwingCommand = nil
	m.lastAddCommand = nil
	m.contactCommandList = nil
	m.gripperCommandQueue = nil
	m.swingTraj = nil

	m.targetPose = m.task.SurfacePose()
	m.targetVel = spatialmath.MotionVec{}
	m.targetAccel = spatialmath.MotionVec{}
	m.taskGain = m.cfg.TaskGain()
	m.landingPose = m.targetPose

	m.isContact = false
	m.touchDown = false
	m.impGainType = ""

	if constraint == nil {
		m.task.Disable()
	} else {
		m.contactCommandList = append(m.contactCommandList,
			&command.ContactCommand{Time: m.clock.T(), Constraint: constraint})
		m.task.Reset()
		m.task.Enable()
	}
	m.task.SetGain(m.taskGain)
}

// Update runs one control cycle: it retires finished swing commands, starts the next one, detects
// touch down, dispatches gripper commands, and sets the limb task target.
func (m *Manager) Update() {
	t := m.clock.T()
	m.task.Hold(false)

	m.pruneContactCommands(t)
	m.isContact = m.IsContactAt(t)

	for len(m.swingCommandQueue) > 0 && m.swingCommandQueue[0].EndTime < t {
		m.completeSwingCommand(m.swingCommandQueue[0])
		m.swingCommandQueue = m.swingCommandQueue[1:]
	}

	if len(m.swingCommandQueue) > 0 && m.swingCommandQueue[0].StartTime <= t {
		head := m.swingCommandQueue[0]
		if m.executingSwingCommand == nil {
			m.startSwingCommand(head, t)
		} else if m.executingSwingCommand != head {
			utils.Fatalf(m.logger, "swing command is not consistent with the executing one for %s", m.limb)
		}

		if head.Type == command.Add && !m.touchDown && m.detectTouchDown(t) {
			m.touchDown = true
			m.logger.Infow("touch down detected", "time", t, "endTime", head.EndTime)
			if m.cfg.StopSwingTrajForTouchDownLimb {
				m.swingTraj.TouchDown(t)
			}
		}

		m.targetPose = m.swingTraj.Pose(t)
		m.targetVel = m.swingTraj.Vel(t)
		m.targetAccel = m.swingTraj.Accel(t)
		m.taskGain = m.swingTraj.TaskGain(t)
	}

	for len(m.gripperCommandQueue) > 0 && m.gripperCommandQueue[0].Time <= t {
		m.dispatchGripperCommand(m.gripperCommandQueue[0])
		m.gripperCommandQueue = m.gripperCommandQueue[1:]
	}

	m.task.SetTarget(m.targetPose, m.targetVel, m.targetAccel)
	m.task.SetGain(m.taskGain)
}

// UpdateImpedanceGains selects the impedance preset from the contact state and the number of limbs in
// contact, and sends it to the task only when the preset changes.
func (m *Manager) UpdateImpedanceGains(numContacts int) {
	var newType string
	switch {
	case m.isContact && numContacts <= 1:
		newType = ImpGainSingleContact
	case m.isContact:
		newType = ImpGainMultiContact
	default:
		newType = ImpGainSwing
	}
	if newType == m.impGainType {
		return
	}
	m.impGainType = newType
	m.task.SetImpedanceGains(m.cfg.ImpedanceGains[newType])
}

// ImpedanceGainType returns the preset last sent to the task.
func (m *Manager) ImpedanceGainType() string { return m.impGainType }

// Stop disables the task and drops the commands that have not run yet.
func (m *Manager) Stop() {
	m.logger.Debugw("stopping",
		"pendingSwingCommands", len(m.swingCommandQueue),
		"pendingGripperCommands", len(m.gripperCommandQueue))
	m.swingCommandQueue = nil
	m.executingSwingCommand = nil
	m.swingTraj = nil
	m.gripperCommandQueue = nil
	m.task.Disable()
}

func (m *Manager) startSwingCommand(c *command.SwingCommand, t float64) {
	m.executingSwingCommand = c
	if m.isContact {
		m.task.Hold(true)
	}
	if c.Type == command.Add {
		m.task.Reset()
		m.task.Enable()
	}

	var startPose spatialmath.Pose
	switch m.cfg.SwingStartPolicy {
	case StartFromControlRobot:
		startPose = m.task.SurfacePose()
	case StartFromTarget:
		startPose = m.task.TargetPose()
	case StartFromCompliance:
		startPose = m.task.CompliancePose()
	default:
		utils.Fatalf(m.logger, "invalid swing start policy %q", m.cfg.SwingStartPolicy)
	}

	endPose := startPose
	if c.Type == command.Add {
		endPose = c.Pose
		if m.cfg.OverwriteLandingPose && m.lastAddCommand != nil {
			endPose = spatialmath.Compose(startPose,
				spatialmath.Compose(spatialmath.PoseInverse(m.lastAddCommand.Pose), c.Pose))
		}
	}

	typ := m.cfg.DefaultSwingTrajType
	if v, ok := c.Config["type"]; ok {
		s, err := utils.AssertType[string](v)
		if err != nil {
			utils.Fatalf(m.logger, "invalid swing trajectory type for %s: %v", m.limb, err)
		}
		typ = s
	}
	traj, err := swing.New(typ, swing.Params{
		CommandType: c.Type,
		IsContact:   m.isContact,
		StartPose:   startPose,
		EndPose:     endPose,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		TaskGain:    m.cfg.TaskGain(),
	}, m.cfg.SwingTraj, c.Config)
	if err != nil {
		utils.Fatalf(m.logger, "failed to make swing trajectory for %s: %v", m.limb, err)
	}
	m.swingTraj = traj
	m.touchDown = false
	m.logger.Infow("start swing", "type", c.Type, "time", t, "endTime", c.EndTime, "trajectory", typ)
}

func (m *Manager) completeSwingCommand(c *command.SwingCommand) {
	if c.Type == command.Add {
		switch {
		case m.cfg.KeepPoseForTouchDownLimb && m.touchDown:
		case m.swingTraj != nil:
			m.targetPose = m.swingTraj.EndPose()
		default:
			// finished within a single cycle without being started
			m.targetPose = c.Pose
		}
		m.targetVel = spatialmath.MotionVec{}
		m.targetAccel = spatialmath.MotionVec{}
		m.landingPose = m.targetPose
		m.lastAddCommand = c
		m.taskGain = m.cfg.TaskGain()
		m.touchDown = false
	} else {
		m.task.Disable()
	}
	m.prevSwingCommand = c
	m.executingSwingCommand = nil
	m.swingTraj = nil
}

func (m *Manager) detectTouchDown(t float64) bool {
	if m.swingTraj == nil {
		return false
	}
	if m.swingTraj.EndTime()-t > m.cfg.TouchDownRemainingDuration {
		return false
	}
	if m.swingTraj.EndPose().Point.Sub(m.swingTraj.Pose(t).Point).Norm() > m.cfg.TouchDownPosError {
		return false
	}
	return m.task.MeasuredWrench().Force.Z >= m.cfg.TouchDownForceZ
}

func (m *Manager) dispatchGripperCommand(c *command.GripperCommand) {
	if m.gripper == nil {
		m.logger.Errorw("no gripper to receive command", "gripper", c.Name)
		return
	}
	if err := m.gripper.GripperCommand(c.Name, c.Config); err != nil {
		m.logger.Errorw("gripper command failed", "gripper", c.Name, "error", err)
	}
}

// pruneContactCommands keeps the active contact command and the one before it.
func (m *Manager) pruneContactCommands(t float64) {
	idx := m.upperBound(t) - 2
	if idx > 0 {
		m.contactCommandList = m.contactCommandList[idx:]
	}
}

// upperBound returns the index of the first contact command whose time is after t.
func (m *Manager) upperBound(t float64) int {
	return sort.Search(len(m.contactCommandList), func(i int) bool {
		return m.contactCommandList[i].Time > t
	})
}

// AppendSwingCommand queues a swing command. It is rejected and false is returned when it starts in
// the past or overlaps the last queued command.
func (m *Manager) AppendSwingCommand(c *command.SwingCommand) bool {
	if err := m.checkSwingCommand(c, m.lastSwingCommand()); err != nil {
		m.logger.Error(err)
		return false
	}
	m.swingCommandQueue = append(m.swingCommandQueue, c)
	return true
}

// AppendContactCommand appends to the contact timeline. It is rejected and false is returned when its
// time is in the past or not after the last entry, or when it would follow a contact without a release
// in between.
func (m *Manager) AppendContactCommand(c *command.ContactCommand) bool {
	if err := m.checkContactCommand(c, m.lastContactCommand()); err != nil {
		m.logger.Error(err)
		return false
	}
	m.contactCommandList = append(m.contactCommandList, c)
	return true
}

// AppendGripperCommand queues a gripper command. It is rejected and false is returned when it is in
// the past or earlier than the last queued one.
func (m *Manager) AppendGripperCommand(c *command.GripperCommand) bool {
	if err := m.checkGripperCommand(c, m.lastGripperCommand()); err != nil {
		m.logger.Error(err)
		return false
	}
	m.gripperCommandQueue = append(m.gripperCommandQueue, c)
	return true
}

// AppendStepCommand validates every part of step before queueing any of it. Nothing is queued when a
// part is rejected.
func (m *Manager) AppendStepCommand(step *command.StepCommand) bool {
	if err := m.checkStepCommand(step); err != nil {
		m.logger.Errorw("ignore step command", "error", err)
		return false
	}
	if step.SwingCommand != nil {
		m.swingCommandQueue = append(m.swingCommandQueue, step.SwingCommand)
	}
	m.contactCommandList = append(m.contactCommandList, step.ContactCommands...)
	m.gripperCommandQueue = append(m.gripperCommandQueue, step.GripperCommands...)
	return true
}

func (m *Manager) checkStepCommand(step *command.StepCommand) error {
	if step.Limb.Name != m.limb.Name {
		return errors.Errorf("step command for %s sent to %s", step.Limb, m.limb)
	}
	if step.SwingCommand != nil {
		if err := m.checkSwingCommand(step.SwingCommand, m.lastSwingCommand()); err != nil {
			return err
		}
	}
	lastContact := m.lastContactCommand()
	for _, c := range step.ContactCommands {
		if err := m.checkContactCommand(c, lastContact); err != nil {
			return err
		}
		lastContact = c
	}
	lastGripper := m.lastGripperCommand()
	for _, c := range step.GripperCommands {
		if err := m.checkGripperCommand(c, lastGripper); err != nil {
			return err
		}
		lastGripper = c
	}
	return nil
}

func (m *Manager) checkSwingCommand(c, last *command.SwingCommand) error {
	t := m.clock.T()
	if c.StartTime > c.EndTime {
		return errors.Errorf("swing command for %s ends (%v) before it starts (%v)", m.limb, c.EndTime, c.StartTime)
	}
	if c.StartTime < t {
		return errors.Errorf("swing command for %s starts in the past (%v < %v)", m.limb, c.StartTime, t)
	}
	if last != nil && c.StartTime < last.EndTime {
		return errors.Errorf("swing command for %s starts (%v) before the last one ends (%v)",
			m.limb, c.StartTime, last.EndTime)
	}
	return nil
}

func (m *Manager) checkContactCommand(c, last *command.ContactCommand) error {
	if t := m.clock.T(); c.Time < t {
		return errors.Errorf("contact command for %s is in the past (%v < %v)", m.limb, c.Time, t)
	}
	if last == nil {
		return nil
	}
	if c.Time <= last.Time {
		return errors.Errorf("contact command for %s at %v is not after the last one at %v", m.limb, c.Time, last.Time)
	}
	if c.Constraint != nil && last.Constraint != nil {
		return errors.Errorf("contact command for %s at %v follows a contact that is not released", m.limb, c.Time)
	}
	return nil
}

func (m *Manager) checkGripperCommand(c, last *command.GripperCommand) error {
	t := m.clock.T()
	if c.Time < t {
		return errors.Errorf("gripper command for %s is in the past (%v < %v)", m.limb, c.Time, t)
	}
	if last != nil && c.Time < last.Time {
		return errors.Errorf("gripper command for %s at %v is earlier than the last one at %v", m.limb, c.Time, last.Time)
	}
	return nil
}

func (m *Manager) lastSwingCommand() *command.SwingCommand {
	if n := len(m.swingCommandQueue); n > 0 {
		return m.swingCommandQueue[n-1]
	}
	return nil
}

func (m *Manager) lastContactCommand() *command.ContactCommand {
	if n := len(m.contactCommandList); n > 0 {
		return m.contactCommandList[n-1]
	}
	return nil
}

func (m *Manager) lastGripperCommand() *command.GripperCommand {
	if n := len(m.gripperCommandQueue); n > 0 {
		return m.gripperCommandQueue[n-1]
	}
	return nil
}

// ContactConstraint returns the constraint active at t, or nil. A touched-down limb reports its
// upcoming constraint early when wrench distribution for touched-down limbs is enabled.
func (m *Manager) ContactConstraint(t float64) contact.Constraint {
	idx := m.upperBound(t) - 1
	if idx < 0 {
		return nil
	}
	cur := m.contactCommandList[idx].Constraint
	if cur == nil && m.cfg.EnableWrenchDistForTouchDownLimb && m.touchDown &&
		idx+1 < len(m.contactCommandList) && m.contactCommandList[idx+1].Constraint != nil {
		return m.contactCommandList[idx+1].Constraint
	}
	return cur
}

// IsContactAt tells whether a constraint is active at t.
func (m *Manager) IsContactAt(t float64) bool {
	return m.ContactConstraint(t) != nil
}

// IsContact returns the contact state computed by the last Update.
func (m *Manager) IsContact() bool { return m.isContact }

// TouchDown tells whether the executing Add command has touched down.
func (m *Manager) TouchDown() bool { return m.touchDown }

// ContactWeight ramps from 0 to 1 over the configured transit duration after a contact starts, the
// first contact of the timeline included, and back to 0 before it ends. It is 0 outside contact.
func (m *Manager) ContactWeight(t float64) float64 {
	return m.ContactWeightWithDuration(t, m.cfg.WeightTransitDuration)
}

// ContactWeightWithDuration is ContactWeight with an explicit transit duration.
func (m *Manager) ContactWeightWithDuration(t, transitDuration float64) float64 {
	end := m.upperBound(t)
	if end == 0 {
		return 0
	}
	start := end - 1
	if m.contactCommandList[start].Constraint == nil {
		return 0
	}
	if transitDuration <= 0 {
		return 1
	}
	if start == 0 || m.contactCommandList[start-1].Constraint == nil {
		if ramp := (t - m.contactCommandList[start].Time) / transitDuration; ramp < 1 {
			return utils.Clamp(ramp, minContactWeight, 1)
		}
	}
	if end < len(m.contactCommandList) && m.contactCommandList[end].Constraint == nil {
		if ramp := (m.contactCommandList[end].Time - t) / transitDuration; ramp < 1 {
			return utils.Clamp(ramp, minContactWeight, 1)
		}
	}
	return 1
}

// LimbPose predicts the limb pose at t from the last landing pose and the queued swing commands.
func (m *Manager) LimbPose(t float64) spatialmath.Pose {
	pose := m.landingPose
	prev := m.lastAddCommand
	for _, c := range m.swingCommandQueue {
		if c.StartTime > t {
			break
		}
		executing := c == m.executingSwingCommand && m.swingTraj != nil
		if c.Type == command.Remove {
			if t < c.EndTime && executing {
				return m.swingTraj.Pose(t)
			}
			continue
		}
		var landing spatialmath.Pose
		switch {
		case executing:
			landing = m.swingTraj.EndPose()
		case m.cfg.OverwriteLandingPose && prev != nil:
			landing = spatialmath.Compose(pose,
				spatialmath.Compose(spatialmath.PoseInverse(prev.Pose), c.Pose))
		default:
			landing = c.Pose
		}
		if t < c.EndTime {
			if executing {
				return m.swingTraj.Pose(t)
			}
			return landing
		}
		pose = landing
		prev = c
	}
	return pose
}

// Phase returns the observable limb state at the current time.
func (m *Manager) Phase() Phase {
	switch {
	case m.executingSwingCommand != nil && m.touchDown:
		return SwingTouchDown
	case m.executingSwingCommand != nil:
		return Swing
	case m.isContact:
		return Contact
	default:
		return Free
	}
}

// IsExecutingSwing tells whether a swing command is running.
func (m *Manager) IsExecutingSwing() bool { return m.executingSwingCommand != nil }

// ExecutingSwingCommand returns the running swing command, or nil.
func (m *Manager) ExecutingSwingCommand() *command.SwingCommand { return m.executingSwingCommand }

// PrevSwingCommand returns the last completed swing command, or nil.
func (m *Manager) PrevSwingCommand() *command.SwingCommand { return m.prevSwingCommand }

// SwingTrajectory returns the running swing trajectory, or nil.
func (m *Manager) SwingTrajectory() swing.Trajectory { return m.swingTraj }

// TargetPose returns the last target given to the limb task.
func (m *Manager) TargetPose() spatialmath.Pose { return m.targetPose }

// SwingCommandQueue returns a copy of the queued swing commands, the executing one first.
func (m *Manager) SwingCommandQueue() []*command.SwingCommand {
	return append([]*command.SwingCommand(nil), m.swingCommandQueue...)
}

// ContactCommandList returns a copy of the contact timeline.
func (m *Manager) ContactCommandList() []*command.ContactCommand {
	return append([]*command.ContactCommand(nil), m.contactCommandList...)
}

// GripperCommandQueue returns a copy of the pending gripper commands.
func (m *Manager) GripperCommandQueue() []*command.GripperCommand {
	return append([]*command.GripperCommand(nil), m.gripperCommandQueue...)
}
