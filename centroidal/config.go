package centroidal

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/control"
	"github.com/isri-aist/MultiContactController/forcedist"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

// Method selects the planning strategy.
type Method string

// Planning strategies.
const (
	// MethodPC is linear preview control of the centroidal state.
	MethodPC Method = "PC"
	// MethodDDP is differential dynamic programming over contact forces.
	MethodDDP Method = "DDP"
	// MethodSRB is differential dynamic programming of a single rigid body.
	MethodSRB Method = "SRB"
)

// Base frames of the nominal centroidal pose.
const (
	BaseFrameWorld           = "World"
	BaseFrameLimbAveragePose = "LimbAveragePose"
)

// Policies for the reference CoM height.
const (
	RefComZAverage  = "Average"
	RefComZConstant = "Constant"
	RefComZMin      = "Min"
	RefComZMax      = "Max"
)

// Config configures the centroidal manager.
type Config struct {
	Name                                    string                 `json:"name"`
	Method                                  Method                 `json:"method"`
	NominalCentroidalPose                   spatialmath.PoseConfig `json:"nominalCentroidalPose"`
	NominalCentroidalPoseBaseFrame          string                 `json:"nominalCentroidalPoseBaseFrame"`
	RefComZPolicy                           string                 `json:"refComZPolicy"`
	LimbWeightListForRefData                map[string]float64     `json:"limbWeightListForRefData"`
	LimbWeightListForAnchorFrame            map[string]float64     `json:"limbWeightListForAnchorFrame"`
	CentroidalGainP                         spatialmath.MotionVec  `json:"centroidalGainP"`
	CentroidalGainD                         spatialmath.MotionVec  `json:"centroidalGainD"`
	LowPassCutoffPeriod                     float64                `json:"lowPassCutoffPeriod"`
	UseActualStateForMpc                    bool                   `json:"useActualStateForMpc"`
	EnableCentroidalFeedback                bool                   `json:"enableCentroidalFeedback"`
	UseTargetPoseForControlRobotAnchorFrame bool                   `json:"useTargetPoseForControlRobotAnchorFrame"`
	UseActualComForWrenchDist               bool                   `json:"useActualComForWrenchDist"`
	WrenchDist                              forcedist.Config       `json:"wrenchDistConfig"`

	PC  PCConfig  `json:"pc"`
	DDP DDPConfig `json:"ddp"`
	SRB SRBConfig `json:"srb"`
}

// PCConfig configures preview control.
type PCConfig struct {
	HorizonDuration float64 `json:"horizonDuration"`
	HorizonDt       float64 `json:"horizonDt"`
	// Weights on position tracking, acceleration (wrench), and jerk, per axis group.
	PosWeight  spatialmath.MotionVec `json:"pos"`
	AccWeight  spatialmath.MotionVec `json:"wrench"`
	JerkWeight spatialmath.MotionVec `json:"jerk"`
	WrenchDist forcedist.Config      `json:"wrenchDistConfig"`
}

// DDPConfig configures optimal control over contact forces.
type DDPConfig struct {
	HorizonDuration         float64   `json:"horizonDuration"`
	HorizonDt               float64   `json:"horizonDt"`
	MaxIter                 int       `json:"ddpMaxIter"`
	RunningPos              r3.Vector `json:"runningPos"`
	RunningLinearMomentum   r3.Vector `json:"runningLinearMomentum"`
	RunningAngularMomentum  r3.Vector `json:"runningAngularMomentum"`
	RunningForce            float64   `json:"runningForce"`
	TerminalPos             r3.Vector `json:"terminalPos"`
	TerminalLinearMomentum  r3.Vector `json:"terminalLinearMomentum"`
	TerminalAngularMomentum r3.Vector `json:"terminalAngularMomentum"`
	OrientationGainP        float64   `json:"orientationGainP"`
	OrientationGainD        float64   `json:"orientationGainD"`
}

// SRBConfig configures single rigid body optimal control.
type SRBConfig struct {
	HorizonDuration    float64   `json:"horizonDuration"`
	HorizonDt          float64   `json:"horizonDt"`
	MaxIter            int       `json:"ddpMaxIter"`
	RunningPos         r3.Vector `json:"runningPos"`
	RunningOri         r3.Vector `json:"runningOri"`
	RunningLinearVel   r3.Vector `json:"runningLinearVel"`
	RunningAngularVel  r3.Vector `json:"runningAngularVel"`
	RunningForce       float64   `json:"runningForce"`
	TerminalPos        r3.Vector `json:"terminalPos"`
	TerminalOri        r3.Vector `json:"terminalOri"`
	TerminalLinearVel  r3.Vector `json:"terminalLinearVel"`
	TerminalAngularVel r3.Vector `json:"terminalAngularVel"`
}

func uniform(v float64) r3.Vector {
	return r3.Vector{X: v, Y: v, Z: v}
}

// DefaultConfig returns the default centroidal configuration using preview control.
func DefaultConfig() Config {
	return Config{
		Name:   "CentroidalManager",
		Method: MethodPC,
		NominalCentroidalPose: spatialmath.PoseConfig{
			Translation: [3]float64{0, 0, 1},
		},
		NominalCentroidalPoseBaseFrame:          BaseFrameLimbAveragePose,
		RefComZPolicy:                           RefComZAverage,
		LimbWeightListForRefData:                map[string]float64{"LeftFoot": 1, "RightFoot": 1},
		LimbWeightListForAnchorFrame:            map[string]float64{"LeftFoot": 1, "RightFoot": 1},
		CentroidalGainP:                         spatialmath.UniformMotionVec(0),
		CentroidalGainD:                         spatialmath.UniformMotionVec(0),
		LowPassCutoffPeriod:                     0.1,
		UseActualStateForMpc:                    false,
		EnableCentroidalFeedback:                true,
		UseTargetPoseForControlRobotAnchorFrame: true,
		UseActualComForWrenchDist:               false,
		WrenchDist:                              forcedist.DefaultConfig(),
		PC: PCConfig{
			HorizonDuration: 2.0,
			HorizonDt:       0.005,
			PosWeight:       spatialmath.UniformMotionVec(1),
			AccWeight:       spatialmath.UniformMotionVec(1e-3),
			JerkWeight:      spatialmath.UniformMotionVec(1e-6),
			WrenchDist:      forcedist.DefaultConfig(),
		},
		DDP: DDPConfig{
			HorizonDuration:         2.0,
			HorizonDt:               0.05,
			MaxIter:                 1,
			RunningPos:              uniform(10),
			RunningLinearMomentum:   uniform(1e-4),
			RunningAngularMomentum:  uniform(1e-4),
			RunningForce:            1e-6,
			TerminalPos:             uniform(10),
			TerminalLinearMomentum:  uniform(1e-4),
			TerminalAngularMomentum: uniform(1e-4),
			OrientationGainP:        100,
			OrientationGainD:        20,
		},
		SRB: SRBConfig{
			HorizonDuration:    1.0,
			HorizonDt:          0.05,
			MaxIter:            1,
			RunningPos:         uniform(10),
			RunningOri:         uniform(10),
			RunningLinearVel:   uniform(1e-2),
			RunningAngularVel:  uniform(1e-2),
			RunningForce:       1e-6,
			TerminalPos:        uniform(10),
			TerminalOri:        uniform(10),
			TerminalLinearVel:  uniform(1e-2),
			TerminalAngularVel: uniform(1e-2),
		},
	}
}

// Gain returns the centroidal feedback gain.
func (cfg *Config) Gain() control.PDGain {
	return control.PDGain{P: cfg.CentroidalGainP, D: cfg.CentroidalGainD}
}

func validateHorizon(path string, duration, dt float64) error {
	if dt <= 0 || duration < dt {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("horizon duration %v must be at least one horizon step %v", duration, dt))
	}
	return nil
}

func validateWeights(path string, weights map[string]float64) error {
	var errs error
	for limb, w := range weights {
		if w <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("zero or negative weight %v for %q, which should be excluded", w, limb)))
		}
	}
	return errs
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	switch cfg.NominalCentroidalPoseBaseFrame {
	case BaseFrameWorld, BaseFrameLimbAveragePose:
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("invalid nominalCentroidalPoseBaseFrame %q", cfg.NominalCentroidalPoseBaseFrame)))
	}
	switch cfg.RefComZPolicy {
	case RefComZAverage, RefComZConstant, RefComZMin, RefComZMax:
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("invalid refComZPolicy %q", cfg.RefComZPolicy)))
	}
	errs = multierr.Append(errs, validateWeights(path+".limbWeightListForRefData", cfg.LimbWeightListForRefData))
	errs = multierr.Append(errs, validateWeights(path+".limbWeightListForAnchorFrame", cfg.LimbWeightListForAnchorFrame))
	if cfg.LowPassCutoffPeriod < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.New("lowPassCutoffPeriod must not be negative")))
	}
	errs = multierr.Append(errs, cfg.WrenchDist.Validate(path+".wrenchDistConfig"))

	switch cfg.Method {
	case MethodPC:
		errs = multierr.Append(errs, validateHorizon(path+".pc", cfg.PC.HorizonDuration, cfg.PC.HorizonDt))
		errs = multierr.Append(errs, cfg.PC.WrenchDist.Validate(path+".pc.wrenchDistConfig"))
		for _, v := range []float64{
			cfg.PC.JerkWeight.Linear.X, cfg.PC.JerkWeight.Linear.Y, cfg.PC.JerkWeight.Linear.Z,
			cfg.PC.JerkWeight.Angular.X, cfg.PC.JerkWeight.Angular.Y, cfg.PC.JerkWeight.Angular.Z,
		} {
			if v <= 0 {
				errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".pc",
					errors.New("jerk weights must be positive")))
				break
			}
		}
	case MethodDDP:
		errs = multierr.Append(errs, validateHorizon(path+".ddp", cfg.DDP.HorizonDuration, cfg.DDP.HorizonDt))
		if cfg.DDP.MaxIter <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".ddp",
				errors.New("ddpMaxIter must be positive")))
		}
	case MethodSRB:
		errs = multierr.Append(errs, validateHorizon(path+".srb", cfg.SRB.HorizonDuration, cfg.SRB.HorizonDt))
		if cfg.SRB.MaxIter <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path+".srb",
				errors.New("ddpMaxIter must be positive")))
		}
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("invalid method %q, must be PC, DDP, or SRB", cfg.Method)))
	}
	return errs
}
