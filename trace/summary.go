package trace

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Stats describes one series.
type Stats struct {
	Mean, Median, P95, Min, Max float64
}

func describe(data []float64) (Stats, error) {
	var s Stats
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, err
	}
	if s.P95, err = stats.Percentile(data, 95); err != nil {
		return s, err
	}
	if s.Min, err = stats.Min(data); err != nil {
		return s, err
	}
	s.Max, err = stats.Max(data)
	return s, err
}

// Summary condenses a recording.
type Summary struct {
	Samples  int
	Duration float64
	// ComRefError is the horizontal distance between the reference and mpc CoM.
	ComRefError Stats
	// ComTrackingError is the distance between the mpc and actual CoM.
	ComTrackingError Stats
	// ZMPMargin is the signed distance of the control ZMP from the contact region border, positive
	// inside.
	ZMPMargin Stats
	ForceZ    Stats
	// ContactChanges counts the cycles at which the contact set changed.
	ContactChanges int
}

// ZMPMargin returns the signed distance of zmp from the border of the box [lower, upper] in the
// horizontal plane, positive inside.
func ZMPMargin(zmp, lower, upper [2]float64) float64 {
	return math.Min(
		math.Min(zmp[0]-lower[0], upper[0]-zmp[0]),
		math.Min(zmp[1]-lower[1], upper[1]-zmp[1]),
	)
}

func sampleMargin(s Sample) float64 {
	return ZMPMargin(
		[2]float64{s.ControlZMP.X, s.ControlZMP.Y},
		[2]float64{s.RegionMin.X, s.RegionMin.Y},
		[2]float64{s.RegionMax.X, s.RegionMax.Y})
}

// FprintMarginHistogram prints a histogram of the ZMP margin in millimeters.
func (r *Recorder) FprintMarginHistogram(w io.Writer, bins int) error {
	if len(r.samples) == 0 {
		return errors.New("no samples recorded")
	}
	margins := r.series(func(s Sample) float64 { return 1000 * sampleMargin(s) })
	st, err := describe(margins)
	if err != nil {
		return err
	}
	if st.Max-st.Min < 1e-9 {
		_, err := fmt.Fprintf(w, "all %d samples at %.3f\n", len(margins), st.Min)
		return err
	}
	return histogram.Fprint(w, histogram.Hist(bins, margins), histogram.Linear(40))
}

// Summarize computes the summary of the recording.
func (r *Recorder) Summarize() (Summary, error) {
	if len(r.samples) == 0 {
		return Summary{}, errors.New("no samples recorded")
	}
	sum := Summary{
		Samples:  len(r.samples),
		Duration: r.samples[len(r.samples)-1].T - r.samples[0].T,
	}
	var err error
	if sum.ComRefError, err = describe(r.series(func(s Sample) float64 {
		d := s.RefCom.Sub(s.MpcCom)
		return math.Hypot(d.X, d.Y)
	})); err != nil {
		return sum, errors.Wrap(err, "com reference error")
	}
	if sum.ComTrackingError, err = describe(r.series(func(s Sample) float64 {
		return s.MpcCom.Sub(s.ActualCom).Norm()
	})); err != nil {
		return sum, errors.Wrap(err, "com tracking error")
	}
	if sum.ZMPMargin, err = describe(r.series(sampleMargin)); err != nil {
		return sum, errors.Wrap(err, "zmp margin")
	}
	if sum.ForceZ, err = describe(r.series(func(s Sample) float64 { return s.ForceZ })); err != nil {
		return sum, errors.Wrap(err, "force")
	}
	for i := 1; i < len(r.samples); i++ {
		if !lo.ElementsMatch(r.samples[i-1].Contacts, r.samples[i].Contacts) {
			sum.ContactChanges++
		}
	}
	return sum, nil
}

// String renders the summary as a table.
func (s Summary) String() string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%d samples over %.3f s, %d contact changes", s.Samples, s.Duration, s.ContactChanges))
	t.AppendHeader(table.Row{"Quantity", "Mean", "Median", "P95", "Min", "Max"})
	row := func(name string, st Stats, scale float64, unit string) {
		f := func(v float64) string { return fmt.Sprintf("%.3f", v*scale) }
		t.AppendRow(table.Row{
			strings.TrimSpace(name + " " + unit),
			f(st.Mean), f(st.Median), f(st.P95), f(st.Min), f(st.Max),
		})
	}
	row("CoM reference error", s.ComRefError, 1000, "[mm]")
	row("CoM tracking error", s.ComTrackingError, 1000, "[mm]")
	row("ZMP margin", s.ZMPMargin, 1000, "[mm]")
	row("Vertical force", s.ForceZ, 1, "[N]")
	return t.Render()
}
