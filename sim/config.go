package sim

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// Config describes the simulated robot.
type Config struct {
	Mass            float64    `json:"mass"`
	MomentOfInertia [3]float64 `json:"momentOfInertia"`
	// InitialCom is the CoM position at reset; the base starts level.
	InitialCom [3]float64 `json:"initialCom"`
	// BaseOffset is the base link origin in the base frame relative to the CoM.
	BaseOffset [3]float64 `json:"baseOffset"`
	// Limbs holds the initial surface pose of every limb.
	Limbs map[string]spatialmath.PoseConfig `json:"limbs"`
	// GroundHeight is the height of the flat ground used for contact sensing.
	GroundHeight float64 `json:"groundHeight"`
	// ContactMargin is how far above the ground a limb still senses contact.
	ContactMargin float64 `json:"contactMargin"`
	// Preload is the normal force sensed by a limb touching the ground without a commanded wrench.
	Preload float64 `json:"preload"`
}

// DefaultConfig returns a 50 kg biped standing with feet 0.2 m apart.
func DefaultConfig() Config {
	return Config{
		Mass:            50,
		MomentOfInertia: [3]float64{4, 4, 1},
		InitialCom:      [3]float64{0, 0, 1},
		BaseOffset:      [3]float64{0, 0, 0.1},
		Limbs: map[string]spatialmath.PoseConfig{
			"LeftFoot":  {Translation: [3]float64{0, 0.1, 0}},
			"RightFoot": {Translation: [3]float64{0, -0.1, 0}},
		},
		ContactMargin: 0.002,
		Preload:       100,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.Mass <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("mass must be positive, got %v", cfg.Mass)))
	}
	for i, v := range cfg.MomentOfInertia {
		if v <= 0 {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
				errors.Errorf("momentOfInertia[%d] must be positive, got %v", i, v)))
		}
	}
	if len(cfg.Limbs) == 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "limbs"))
	}
	if cfg.ContactMargin < 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(fmt.Sprintf("%s.contactMargin", path),
			errors.New("must not be negative")))
	}
	return errs
}
