// Package trace records the controller state every cycle and summarizes, exports and plots it.
package trace

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/isri-aist/MultiContactController/controller"
)

// Sample is the controller state after one cycle.
type Sample struct {
	T          float64
	RefCom     r3.Vector
	MpcCom     r3.Vector
	ActualCom  r3.Vector
	PlannedZMP r3.Vector
	ControlZMP r3.Vector
	ActualZMP  r3.Vector
	RegionMin  r3.Vector
	RegionMax  r3.Vector
	// ForceZ is the vertical control force of the centroidal wrench.
	ForceZ   float64
	Contacts []string
	// Phases holds the phase of every limb.
	Phases map[string]string
}

// Recorder accumulates samples.
type Recorder struct {
	samples []Sample
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends the state of c. It is meant to be called right after Run, so the sample is stamped
// with the time of the cycle that produced it.
func (r *Recorder) Record(c *controller.Controller) {
	cm := c.Centroidal()
	data := cm.ControlData()
	t := c.T() - c.Dt()
	s := Sample{
		T:          t,
		RefCom:     cm.RefData().CentroidalPose.Point,
		MpcCom:     data.MpcCentroidalPose.Point,
		ActualCom:  data.ActualCentroidalPose.Point,
		PlannedZMP: data.PlannedZMP,
		ControlZMP: data.ControlZMP,
		ActualZMP:  data.ActualZMP,
		RegionMin:  data.ContactRegionMin,
		RegionMax:  data.ContactRegionMax,
		ForceZ:     data.ControlCentroidalWrench.Force.Z,
		Contacts:   lo.Keys(cm.ContactList()),
		Phases:     map[string]string{},
	}
	sort.Strings(s.Contacts)
	for _, m := range c.Limbs().Managers() {
		s.Phases[m.Limb().Name] = m.Phase().String()
	}
	r.samples = append(r.samples, s)
}

// Samples returns the recorded samples.
func (r *Recorder) Samples() []Sample { return r.samples }

// Len returns the number of samples.
func (r *Recorder) Len() int { return len(r.samples) }

// Reset drops every sample.
func (r *Recorder) Reset() { r.samples = nil }

func (r *Recorder) series(f func(Sample) float64) []float64 {
	return lo.Map(r.samples, func(s Sample, _ int) float64 { return f(s) })
}

var csvHeader = []string{
	"t",
	"ref_com_x", "ref_com_y", "ref_com_z",
	"mpc_com_x", "mpc_com_y", "mpc_com_z",
	"actual_com_x", "actual_com_y", "actual_com_z",
	"control_zmp_x", "control_zmp_y",
	"actual_zmp_x", "actual_zmp_y",
	"region_min_x", "region_min_y", "region_max_x", "region_max_y",
	"force_z", "contacts",
}

// WriteCSV writes one row per sample.
func (r *Recorder) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 8, 64) }
	for _, s := range r.samples {
		row := []string{
			f(s.T),
			f(s.RefCom.X), f(s.RefCom.Y), f(s.RefCom.Z),
			f(s.MpcCom.X), f(s.MpcCom.Y), f(s.MpcCom.Z),
			f(s.ActualCom.X), f(s.ActualCom.Y), f(s.ActualCom.Z),
			f(s.ControlZMP.X), f(s.ControlZMP.Y),
			f(s.ActualZMP.X), f(s.ActualZMP.Y),
			f(s.RegionMin.X), f(s.RegionMin.Y), f(s.RegionMax.X), f(s.RegionMax.Y),
			f(s.ForceZ), strconv.Itoa(len(s.Contacts)),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return cw.Error()
}
