package centroidal

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/forcedist"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

// gravity is the magnitude of the gravitational acceleration [m/s^2].
const gravity = 9.80665

var gravityVec = r3.Vector{Z: gravity}

// Problem is the planning problem handed to a Strategy on each cycle.
type Problem struct {
	T  float64
	Dt float64

	Mass            float64
	MomentOfInertia r3.Vector

	// Initial state of the plan.
	Pose     spatialmath.Pose
	Vel      spatialmath.MotionVec
	Momentum spatialmath.ForceVec

	// Result of the previous cycle.
	PlannedVel      spatialmath.MotionVec
	PlannedAccel    spatialmath.MotionVec
	PlannedMomentum spatialmath.ForceVec

	// Contacts returns the contact set active at a time of the horizon.
	Contacts func(t float64) map[string]contact.Constraint
	// Ref returns the reference centroidal pose at a time of the horizon.
	Ref func(t float64) spatialmath.Pose
}

// PlannedStep is the first step of a plan.
type PlannedStep struct {
	// Wrench is taken about the initial CoM.
	Wrench   spatialmath.ForceVec
	Momentum spatialmath.ForceVec
	Accel    spatialmath.MotionVec
}

// Strategy plans the centroidal motion over a receding horizon and returns its first step.
type Strategy interface {
	Method() Method
	Plan(p *Problem) (PlannedStep, error)
}

// NewStrategy returns the strategy selected by cfg.Method.
func NewStrategy(cfg *Config, mass float64, inertia r3.Vector, logger logging.Logger) (Strategy, error) {
	if mass <= 0 {
		return nil, errors.Errorf("robot mass must be positive, got %v", mass)
	}
	switch cfg.Method {
	case MethodPC:
		return newPreviewControl(cfg.PC, mass, inertia, logger)
	case MethodDDP:
		return newDdpCentroidal(cfg.DDP, mass, logger)
	case MethodSRB:
		return newSingleRigidBody(cfg.SRB, mass, inertia, logger)
	default:
		return nil, errors.Errorf("unknown centroidal method %q", cfg.Method)
	}
}

func horizonSteps(duration, dt float64) int {
	// The small offset absorbs representation error, e.g. 2.0/0.05.
	n := int(duration/dt + 1e-9)
	if n < 1 {
		return 1
	}
	return n
}

// unwrapAngles shifts each angle of v by a multiple of 2*pi to lie closest to near.
func unwrapAngles(v, near r3.Vector) r3.Vector {
	unwrap := func(a, n float64) float64 {
		return a - 2*math.Pi*math.Round((a-n)/(2*math.Pi))
	}
	return r3.Vector{X: unwrap(v.X, near.X), Y: unwrap(v.Y, near.Y), Z: unwrap(v.Z, near.Z)}
}

// contactRidges flattens the friction-cone generators of a contact set.
func contactRidges(contacts map[string]contact.Constraint) (vertices, dirs []r3.Vector) {
	_, _, vertices, dirs = forcedist.Ridges(contacts)
	return vertices, dirs
}
