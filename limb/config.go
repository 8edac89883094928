package limb

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/swing"
	"github.com/isri-aist/MultiContactController/task"
)

// SwingStartPolicy selects which limb pose a new swing trajectory starts from.
type SwingStartPolicy string

// Swing start policies.
const (
	// StartFromControlRobot uses the solver result pose.
	StartFromControlRobot SwingStartPolicy = "ControlRobot"
	// StartFromTarget uses the last task target.
	StartFromTarget SwingStartPolicy = "Target"
	// StartFromCompliance uses the target modified by the impedance filter.
	StartFromCompliance SwingStartPolicy = "Compliance"
)

// Impedance gain presets.
const (
	ImpGainSingleContact = "SingleContact"
	ImpGainMultiContact  = "MultiContact"
	ImpGainSwing         = "Swing"
)

// Config configures one limb manager.
type Config struct {
	Limb                             string                         `json:"limb"`
	TaskStiffness                    float64                        `json:"taskGain"`
	DefaultSwingTrajType             string                         `json:"defaultSwingTrajType"`
	SwingStartPolicy                 SwingStartPolicy               `json:"swingStartPolicy"`
	OverwriteLandingPose             bool                           `json:"overwriteLandingPose"`
	StopSwingTrajForTouchDownLimb    bool                           `json:"stopSwingTrajForTouchDownLimb"`
	KeepPoseForTouchDownLimb         bool                           `json:"keepPoseForTouchDownLimb"`
	EnableWrenchDistForTouchDownLimb bool                           `json:"enableWrenchDistForTouchDownLimb"`
	TouchDownRemainingDuration       float64                        `json:"touchDownRemainingDuration"`
	TouchDownPosError                float64                        `json:"touchDownPosError"`
	TouchDownForceZ                  float64                        `json:"touchDownForceZ"`
	WeightTransitDuration            float64                        `json:"weightTransitDuration"`
	ImpedanceGains                   map[string]task.ImpedanceGains `json:"impedanceGains"`
	SwingTraj                        swing.Config                   `json:"swingTraj"`
}

// DefaultConfig returns the default limb manager configuration for limb.
func DefaultConfig(limb string) Config {
	return Config{
		Limb:                             limb,
		TaskStiffness:                    1000,
		DefaultSwingTrajType:             swing.TypeCubicSplineSimple,
		SwingStartPolicy:                 StartFromControlRobot,
		OverwriteLandingPose:             false,
		StopSwingTrajForTouchDownLimb:    true,
		KeepPoseForTouchDownLimb:         false,
		EnableWrenchDistForTouchDownLimb: true,
		TouchDownRemainingDuration:       0.2,
		TouchDownPosError:                0.05,
		TouchDownForceZ:                  50,
		WeightTransitDuration:            0.1,
		ImpedanceGains: map[string]task.ImpedanceGains{
			ImpGainSingleContact: task.DefaultImpedanceGains(),
			ImpGainMultiContact:  task.DefaultImpedanceGains(),
			ImpGainSwing:         task.DefaultImpedanceGains(),
		},
		SwingTraj: swing.DefaultConfig(),
	}
}

// TaskGain returns the nominal limb task gain.
func (cfg *Config) TaskGain() task.Gain {
	return task.NewUniformGain(cfg.TaskStiffness)
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.Limb == "" {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "limb"))
	}
	if cfg.TaskStiffness < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path, errors.New("taskGain must not be negative")))
	}
	switch cfg.SwingStartPolicy {
	case StartFromControlRobot, StartFromTarget, StartFromCompliance:
	default:
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("swingStartPolicy must be ControlRobot, Target, or Compliance, but %q is specified",
				cfg.SwingStartPolicy)))
	}
	if cfg.DefaultSwingTrajType != swing.TypeCubicSplineSimple {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("invalid defaultSwingTrajType %q", cfg.DefaultSwingTrajType)))
	}
	if cfg.TouchDownRemainingDuration < 0 || cfg.TouchDownPosError < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.New("touch down thresholds must not be negative")))
	}
	if cfg.WeightTransitDuration <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.New("weightTransitDuration must be positive")))
	}
	for _, preset := range []string{ImpGainSingleContact, ImpGainMultiContact, ImpGainSwing} {
		if _, ok := cfg.ImpedanceGains[preset]; !ok {
			errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(
				fmt.Sprintf("%s.%s", path, "impedanceGains"), preset))
		}
	}
	return multierr.Append(errs, cfg.SwingTraj.Validate(fmt.Sprintf("%s.%s", path, "swingTraj")))
}
