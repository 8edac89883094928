package config

import (
	"bytes"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/utils"
)

// Read reads a controller file after substituting environment variables. YAML and JSON are both
// accepted.
func Read(filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a controller file from r. originalPath is recorded for reporting only.
func FromReader(originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	doc, err := readDocument(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %q", originalPath)
	}
	cfg, err := Decode(doc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode config %q", originalPath)
	}
	cfg.ConfigFilePath = originalPath
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %q", originalPath)
	}
	logger.Debugw("config loaded", "path", originalPath, "limbs", len(cfg.Controller.Limbs),
		"method", cfg.Controller.Centroidal.Method)
	return cfg, nil
}

func readDocument(r io.Reader) (utils.Document, error) {
	var raw interface{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return utils.AssertType[utils.Document](utils.NormalizeDocument(raw))
}
