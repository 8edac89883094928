package swing

import (
	"fmt"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/isri-aist/MultiContactController/utils"
)

// Config parameterizes the cubic spline swing trajectory. Offsets are in the frame of the pose they
// are applied to.
type Config struct {
	WithdrawDurationRatio float64    `json:"withdrawDurationRatio"`
	WithdrawOffset        [3]float64 `json:"withdrawOffset"`
	ApproachDurationRatio float64    `json:"approachDurationRatio"`
	ApproachOffset        [3]float64 `json:"approachOffset"`
	SwingOffset           [3]float64 `json:"swingOffset"`
}

// DefaultConfig returns the default swing configuration.
func DefaultConfig() Config {
	return Config{
		WithdrawDurationRatio: 0.2,
		WithdrawOffset:        [3]float64{0, 0, 0.03},
		ApproachDurationRatio: 0.2,
		ApproachOffset:        [3]float64{0, 0, 0.03},
		SwingOffset:           [3]float64{0, 0, 0.1},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.WithdrawDurationRatio <= 0 || cfg.ApproachDurationRatio <= 0 {
		return goutils.NewConfigValidationError(path, errors.New("duration ratios must be positive"))
	}
	if cfg.WithdrawDurationRatio+cfg.ApproachDurationRatio >= 1 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("withdrawDurationRatio + approachDurationRatio must be below 1, got %v",
				cfg.WithdrawDurationRatio+cfg.ApproachDurationRatio))
	}
	return nil
}

// Override returns a copy of cfg with the entries of doc applied. The "type" entry selects the
// trajectory type and is skipped.
func (cfg Config) Override(doc utils.Document) (Config, error) {
	if len(doc) == 0 {
		return cfg, nil
	}
	trimmed := make(utils.Document, len(doc))
	for k, v := range doc {
		if k != "type" {
			trimmed[k] = v
		}
	}
	out := cfg
	if err := utils.DecodeDocument(trimmed, &out); err != nil {
		return cfg, errors.Wrap(err, "decoding swing config")
	}
	if err := out.Validate(fmt.Sprintf("swing.%s", TypeCubicSplineSimple)); err != nil {
		return cfg, err
	}
	return out, nil
}
