// Package command defines the timed commands sent to limb managers and their decoding from documents.
package command

import (
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/spatialmath"
	"github.com/isri-aist/MultiContactController/utils"
)

// SwingType is the kind of a swing command.
type SwingType int

const (
	// Add moves a limb onto a new contact.
	Add SwingType = iota
	// Remove releases a contact and lifts the limb.
	Remove
)

func (st SwingType) String() string {
	switch st {
	case Add:
		return "Add"
	case Remove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// ParseSwingType parses "Add" or "Remove".
func ParseSwingType(s string) (SwingType, error) {
	switch s {
	case "Add":
		return Add, nil
	case "Remove":
		return Remove, nil
	default:
		return Add, errors.Errorf("invalid swing command type %q, must be Add or Remove", s)
	}
}

// SwingCommand moves a limb between StartTime and EndTime. Pose is the landing pose and is only used
// by Add commands. Config overrides the swing trajectory configuration for this command.
type SwingCommand struct {
	Type      SwingType
	StartTime float64
	EndTime   float64
	Pose      spatialmath.Pose
	Config    utils.Document
}

// NewSwingCommand returns a swing command, checking that the window is not reversed.
func NewSwingCommand(typ SwingType, startTime, endTime float64, pose spatialmath.Pose, config utils.Document) (*SwingCommand, error) {
	if startTime > endTime {
		return nil, errors.Errorf("swing command start time %v is after its end time %v", startTime, endTime)
	}
	return &SwingCommand{Type: typ, StartTime: startTime, EndTime: endTime, Pose: pose, Config: config}, nil
}

// SetBaseTime shifts the command, assuming its times are relative to baseTime.
func (c *SwingCommand) SetBaseTime(baseTime float64) {
	c.StartTime += baseTime
	c.EndTime += baseTime
}

// ContactCommand sets the contact of a limb from Time on. A nil Constraint means no contact.
type ContactCommand struct {
	Time       float64
	Constraint contact.Constraint
}

// SetBaseTime shifts the command, assuming its time is relative to baseTime.
func (c *ContactCommand) SetBaseTime(baseTime float64) {
	c.Time += baseTime
}

// GripperCommand is forwarded to the named gripper at Time.
type GripperCommand struct {
	Time   float64
	Name   string
	Config utils.Document
}

// SetBaseTime shifts the command, assuming its time is relative to baseTime.
func (c *GripperCommand) SetBaseTime(baseTime float64) {
	c.Time += baseTime
}

// StepCommand groups the commands making up one step of a limb. ContactCommands and
// GripperCommands are sorted by time.
type StepCommand struct {
	Limb            contact.Limb
	SwingCommand    *SwingCommand
	ContactCommands []*ContactCommand
	GripperCommands []*GripperCommand
}

// SetBaseTime shifts every command of the step, assuming times are relative to baseTime.
func (s *StepCommand) SetBaseTime(baseTime float64) {
	if s.SwingCommand != nil {
		s.SwingCommand.SetBaseTime(baseTime)
	}
	for _, c := range s.ContactCommands {
		c.SetBaseTime(baseTime)
	}
	for _, c := range s.GripperCommands {
		c.SetBaseTime(baseTime)
	}
}
