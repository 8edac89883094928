// Package utils contains helpers shared by the controller packages: document decoding, numeric
// helpers and invariant failures.
package utils

import (
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/logging"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	var expected ExpectedT
	return errors.Errorf("expected %T but got %T", expected, actual)
}

// Fatalf logs an invariant violation and panics with it. It is reserved for states the controller
// cannot continue from.
func Fatalf(logger logging.Logger, template string, args ...interface{}) {
	err := errors.Errorf(template, args...)
	logger.Error(err.Error())
	panic(err)
}
