// Package control holds the small signal-processing and feedback blocks used by the centroidal planner.
package control

import (
	"github.com/pkg/errors"

	"github.com/isri-aist/MultiContactController/spatialmath"
)

// LowPassFilter is a first-order low-pass filter over 6D velocities. Its smoothing factor is
// dt / (dt + cutoffPeriod).
type LowPassFilter struct {
	dt           float64
	cutoffPeriod float64
	alpha        float64
	y            spatialmath.MotionVec
}

// NewLowPassFilter returns a filter sampled every dt seconds.
func NewLowPassFilter(dt, cutoffPeriod float64) (*LowPassFilter, error) {
	if dt <= 0 {
		return nil, errors.Errorf("low-pass filter period must be positive, got %v", dt)
	}
	f := &LowPassFilter{dt: dt}
	if err := f.SetCutoffPeriod(cutoffPeriod); err != nil {
		return nil, err
	}
	return f, nil
}

// SetCutoffPeriod changes the cutoff period without resetting the filter state.
func (f *LowPassFilter) SetCutoffPeriod(cutoffPeriod float64) error {
	if cutoffPeriod < 0 {
		return errors.Errorf("low-pass filter cutoff period must not be negative, got %v", cutoffPeriod)
	}
	f.cutoffPeriod = cutoffPeriod
	f.alpha = f.dt / (f.dt + cutoffPeriod)
	return nil
}

// CutoffPeriod returns the cutoff period in seconds.
func (f *LowPassFilter) CutoffPeriod() float64 { return f.cutoffPeriod }

// Reset sets the filter output to y.
func (f *LowPassFilter) Reset(y spatialmath.MotionVec) {
	f.y = y
}

// Next feeds one sample and returns the filtered value.
func (f *LowPassFilter) Next(x spatialmath.MotionVec) spatialmath.MotionVec {
	f.y = f.y.Add(x.Sub(f.y).Mul(f.alpha))
	return f.y
}

// Output returns the last filtered value.
func (f *LowPassFilter) Output() spatialmath.MotionVec { return f.y }
