package controller

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/centroidal"
	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/limb"
)

// DefaultDt is the default control period [sec].
const DefaultDt = 0.005

// Config configures the controller and every manager it owns.
type Config struct {
	Dt         float64                `json:"dt"`
	Contacts   contact.VerticesConfig `json:"contactVertices"`
	Limbs      []limb.Config          `json:"limbManagerSet"`
	Centroidal centroidal.Config      `json:"centroidalManager"`
}

// DefaultFootVertices are the sole corners of the default feet, in the foot surface frame.
var DefaultFootVertices = [][3]float64{
	{0.1, 0.05, 0}, {-0.1, 0.05, 0}, {-0.1, -0.05, 0}, {0.1, -0.05, 0},
}

// DefaultConfig returns a biped configuration with two feet.
func DefaultConfig() Config {
	return Config{
		Dt: DefaultDt,
		Contacts: contact.VerticesConfig{
			Surface: map[string][][3]float64{
				"LeftFoot":  DefaultFootVertices,
				"RightFoot": DefaultFootVertices,
			},
		},
		Limbs:      []limb.Config{limb.DefaultConfig("LeftFoot"), limb.DefaultConfig("RightFoot")},
		Centroidal: centroidal.DefaultConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.Dt <= 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("dt must be positive, got %v", cfg.Dt)))
	}
	if len(cfg.Limbs) == 0 {
		errs = multierr.Append(errs, goutils.NewConfigValidationFieldRequiredError(path, "limbManagerSet"))
	}
	seen := map[string]bool{}
	for i := range cfg.Limbs {
		limbPath := fmt.Sprintf("%s.limbManagerSet.%d", path, i)
		errs = multierr.Append(errs, cfg.Limbs[i].Validate(limbPath))
		if seen[cfg.Limbs[i].Limb] {
			errs = multierr.Append(errs, goutils.NewConfigValidationError(limbPath,
				errors.Errorf("duplicate limb %q", cfg.Limbs[i].Limb)))
		}
		seen[cfg.Limbs[i].Limb] = true
	}
	return multierr.Combine(
		errs,
		cfg.Contacts.Validate(path+".contactVertices"),
		cfg.Centroidal.Validate(path+".centroidalManager"),
	)
}
