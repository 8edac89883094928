// Package contact describes limbs and the contact constraints they establish with the environment.
package contact

import "strings"

// Limb group names.
const (
	GroupHand = "Hand"
	GroupFoot = "Foot"
)

// Limb is a contact patch of the robot such as a hand, a foot or a knee. Limbs are identified by
// name only; two limbs with the same name must not have different groups.
type Limb struct {
	Name  string
	Group string
}

// NewLimb returns a limb whose group is inferred from its name when group is empty. Names containing
// "Hand" or "Foot" (case-sensitive) fall in those groups.
func NewLimb(name, group string) Limb {
	if group == "" {
		switch {
		case strings.Contains(name, GroupHand):
			group = GroupHand
		case strings.Contains(name, GroupFoot):
			group = GroupFoot
		}
	}
	return Limb{Name: name, Group: group}
}

// LimbFromName returns NewLimb(name, "").
func LimbFromName(name string) Limb {
	return NewLimb(name, "")
}

func (l Limb) String() string {
	return l.Name
}
