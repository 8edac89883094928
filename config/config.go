// Package config reads controller, robot and scenario files.
package config

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/isri-aist/MultiContactController/controller"
	"github.com/isri-aist/MultiContactController/limb"
	"github.com/isri-aist/MultiContactController/sim"
	"github.com/isri-aist/MultiContactController/utils"
)

// Config is the content of a controller file: the controller keys at the top level and the simulated
// robot under "robot".
type Config struct {
	ConfigFilePath string
	Controller     controller.Config
	Robot          sim.Config
}

// Default returns the biped configuration used when no file is given.
func Default() *Config {
	return &Config{Controller: controller.DefaultConfig(), Robot: sim.DefaultConfig()}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	return multierr.Combine(
		cfg.Controller.Validate("controller"),
		cfg.Robot.Validate("robot"),
	)
}

// Decode builds a config from a document over the defaults. Each limbManagerSet entry is decoded
// over the defaults of its limb.
func Decode(doc utils.Document) (*Config, error) {
	cfg := Default()
	doc = utils.CopyDocument(doc)
	if doc == nil {
		return cfg, nil
	}

	if robotDoc, ok := doc["robot"]; ok {
		delete(doc, "robot")
		rd, err := utils.AssertType[utils.Document](robotDoc)
		if err != nil {
			return nil, errors.Wrap(err, "robot")
		}
		if _, ok := rd["limbs"]; ok {
			cfg.Robot.Limbs = nil
		}
		if err := utils.DecodeDocument(rd, &cfg.Robot); err != nil {
			return nil, errors.Wrap(err, "decoding robot")
		}
	}

	if limbsDoc, ok := doc["limbManagerSet"]; ok {
		delete(doc, "limbManagerSet")
		limbs, err := decodeLimbs(limbsDoc)
		if err != nil {
			return nil, err
		}
		cfg.Controller.Limbs = limbs
	}

	if _, ok := doc["contactVertices"]; ok {
		cfg.Controller.Contacts.Surface = nil
		cfg.Controller.Contacts.Grasp = nil
	}
	// Weight lists name the limbs they cover, so a given list replaces the default one.
	if cd, ok := doc["centroidalManager"].(utils.Document); ok {
		if _, ok := cd["limbWeightListForRefData"]; ok {
			cfg.Controller.Centroidal.LimbWeightListForRefData = nil
		}
		if _, ok := cd["limbWeightListForAnchorFrame"]; ok {
			cfg.Controller.Centroidal.LimbWeightListForAnchorFrame = nil
		}
	}

	if err := utils.DecodeDocument(doc, &cfg.Controller); err != nil {
		return nil, errors.Wrap(err, "decoding controller")
	}
	return cfg, nil
}

func decodeLimbs(v interface{}) ([]limb.Config, error) {
	list, err := utils.AssertType[[]interface{}](v)
	if err != nil {
		return nil, errors.Wrap(err, "limbManagerSet")
	}
	cfgs := make([]limb.Config, 0, len(list))
	for i, entry := range list {
		ld, err := utils.AssertType[utils.Document](entry)
		if err != nil {
			return nil, errors.Wrapf(err, "limbManagerSet.%d", i)
		}
		name, _ := ld["limb"].(string)
		if name == "" {
			return nil, errors.Errorf("limbManagerSet.%d: limb name is required", i)
		}
		lc := limb.DefaultConfig(name)
		if err := utils.DecodeDocument(ld, &lc); err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("decoding limbManagerSet.%d (%s)", i, name))
		}
		cfgs = append(cfgs, lc)
	}
	return cfgs, nil
}
