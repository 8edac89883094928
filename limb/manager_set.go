package limb

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/isri-aist/MultiContactController/command"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/task"
)

// closestContactMargin is subtracted from the end of a past contact interval so that every limb of the
// interval still has a positive contact weight at the returned time.
const closestContactMargin = 1e-6

// ManagerSet owns one Manager per limb.
type ManagerSet struct {
	managers map[string]*Manager
	names    []string
	logger   logging.Logger
}

// NewManagerSet builds a manager for each config. tasks must hold a task for every configured limb.
func NewManagerSet(
	cfgs []Config,
	tasks map[string]task.LimbTask,
	gripper task.GripperSink,
	clock Clock,
	logger logging.Logger,
) (*ManagerSet, error) {
	set := &ManagerSet{managers: map[string]*Manager{}, logger: logger}
	for _, cfg := range cfgs {
		if _, ok := set.managers[cfg.Limb]; ok {
			return nil, errors.Errorf("duplicate limb manager config for %q", cfg.Limb)
		}
		limbTask, ok := tasks[cfg.Limb]
		if !ok {
			return nil, errors.Errorf("no limb task for %q", cfg.Limb)
		}
		m, err := NewManager(contact.LimbFromName(cfg.Limb), cfg, clock, limbTask, gripper, logger.Sublogger(cfg.Limb))
		if err != nil {
			return nil, errors.Wrapf(err, "limb %q", cfg.Limb)
		}
		set.managers[cfg.Limb] = m
	}
	set.names = lo.Keys(set.managers)
	sort.Strings(set.names)
	return set, nil
}

// Limbs returns the managed limb names in sorted order.
func (s *ManagerSet) Limbs() []string {
	return append([]string(nil), s.names...)
}

// Get returns the manager of limb.
func (s *ManagerSet) Get(limb string) (*Manager, bool) {
	m, ok := s.managers[limb]
	return m, ok
}

// Managers returns the managers in limb name order.
func (s *ManagerSet) Managers() []*Manager {
	return lo.Map(s.names, func(name string, _ int) *Manager { return s.managers[name] })
}

// Reset resets every manager. Limbs missing from constraints start free.
func (s *ManagerSet) Reset(constraints map[string]contact.Constraint) {
	for _, m := range s.Managers() {
		m.Reset(constraints[m.limb.Name])
	}
}

// Update runs one cycle of every manager, then updates the impedance gains from the contact count.
func (s *ManagerSet) Update() {
	managers := s.Managers()
	for _, m := range managers {
		m.Update()
	}
	numContacts := lo.CountBy(managers, func(m *Manager) bool { return m.IsContact() })
	for _, m := range managers {
		m.UpdateImpedanceGains(numContacts)
	}
}

// Stop stops every manager.
func (s *ManagerSet) Stop() {
	for _, m := range s.Managers() {
		m.Stop()
	}
}

// AppendStepCommand routes step to the manager of its limb.
func (s *ManagerSet) AppendStepCommand(step *command.StepCommand) bool {
	m, ok := s.managers[step.Limb.Name]
	if !ok {
		s.logger.Errorw("no limb manager for step command", "limb", step.Limb.Name)
		return false
	}
	return m.AppendStepCommand(step)
}

// ContactList returns the constraints active at t keyed by limb name. Limbs not in contact are absent.
func (s *ManagerSet) ContactList(t float64) map[string]contact.Constraint {
	contacts := map[string]contact.Constraint{}
	for name, m := range s.managers {
		if c := m.ContactConstraint(t); c != nil {
			contacts[name] = c
		}
	}
	return contacts
}

// IsExecutingLimbSwing tells whether any limb runs a swing command.
func (s *ManagerSet) IsExecutingLimbSwing() bool {
	return lo.SomeBy(s.Managers(), func(m *Manager) bool { return m.IsExecutingSwing() })
}

// ClosestContactTimes returns the latest time not after t and the earliest time after t at which every
// limb in limbs is in contact. A side with no such time is NaN.
func (s *ManagerSet) ClosestContactTimes(t float64, limbs []string) [2]float64 {
	result := [2]float64{math.NaN(), math.NaN()}
	managers := make([]*Manager, 0, len(limbs))
	for _, name := range limbs {
		m, ok := s.managers[name]
		if !ok {
			s.logger.Errorw("unknown limb in closest contact query", "limb", name)
			return result
		}
		managers = append(managers, m)
	}
	if len(managers) == 0 {
		return result
	}

	allContactAt := func(tau float64) bool {
		return lo.EveryBy(managers, func(m *Manager) bool { return m.IsContactAt(tau) })
	}
	// state on the open interval just before tau
	allContactBefore := func(tau float64) bool {
		return lo.EveryBy(managers, func(m *Manager) bool {
			idx := sort.Search(len(m.contactCommandList), func(i int) bool {
				return m.contactCommandList[i].Time >= tau
			}) - 1
			return idx >= 0 && m.contactCommandList[idx].Constraint != nil
		})
	}

	var times []float64
	for _, m := range managers {
		for _, c := range m.contactCommandList {
			times = append(times, c.Time)
		}
	}
	times = lo.Uniq(times)
	sort.Float64s(times)

	if allContactAt(t) {
		result[0] = t
	} else {
		for i := len(times) - 1; i >= 0; i-- {
			tau := times[i]
			if tau > t {
				continue
			}
			if allContactBefore(tau) {
				result[0] = tau - closestContactMargin
				break
			}
			if allContactAt(tau) {
				result[0] = tau
				break
			}
		}
	}
	for _, tau := range times {
		if tau > t && allContactAt(tau) {
			result[1] = tau
			break
		}
	}
	return result
}
