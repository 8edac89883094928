package trace

import (
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type line struct {
	name string
	ys   []float64
}

type figure struct {
	file, title, ylabel string
	lines               []line
}

// Plot writes com_x.png, com_y.png, com_z.png and force_z.png into dir.
func (r *Recorder) Plot(dir string) error {
	if len(r.samples) == 0 {
		return errors.New("no samples recorded")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating plot directory")
	}
	ts := r.series(func(s Sample) float64 { return s.T })

	var figures []figure
	for _, axis := range []struct {
		name string
		pick func(v r3.Vector) float64
	}{
		{"x", func(v r3.Vector) float64 { return v.X }},
		{"y", func(v r3.Vector) float64 { return v.Y }},
	} {
		pick := axis.pick
		vec := func(f func(Sample) r3.Vector) []float64 {
			return r.series(func(s Sample) float64 { return pick(f(s)) })
		}
		figures = append(figures, figure{
			file:   "com_" + axis.name + ".png",
			title:  "CoM and ZMP " + axis.name,
			ylabel: axis.name + " [m]",
			lines: []line{
				{"ref CoM", vec(func(s Sample) r3.Vector { return s.RefCom })},
				{"mpc CoM", vec(func(s Sample) r3.Vector { return s.MpcCom })},
				{"control ZMP", vec(func(s Sample) r3.Vector { return s.ControlZMP })},
				{"region min", vec(func(s Sample) r3.Vector { return s.RegionMin })},
				{"region max", vec(func(s Sample) r3.Vector { return s.RegionMax })},
			},
		})
	}
	figures = append(figures,
		figure{"com_z.png", "CoM z", "z [m]", []line{
			{"ref CoM", r.series(func(s Sample) float64 { return s.RefCom.Z })},
			{"mpc CoM", r.series(func(s Sample) float64 { return s.MpcCom.Z })},
		}},
		figure{"force_z.png", "Vertical force", "force [N]", []line{
			{"control", r.series(func(s Sample) float64 { return s.ForceZ })},
		}},
	)

	var g errgroup.Group
	for _, fig := range figures {
		fig := fig
		g.Go(func() error {
			return savePlot(filepath.Join(dir, fig.file), fig.title, fig.ylabel, ts, fig.lines)
		})
	}
	return g.Wait()
}

func savePlot(file, title, ylabel string, ts []float64, lines []line) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t [s]"
	p.Y.Label.Text = ylabel
	p.Legend.Top = true

	for i, l := range lines {
		pts := make(plotter.XYs, len(ts))
		for j := range ts {
			pts[j].X = ts[j]
			pts[j].Y = l.ys[j]
		}
		pl, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plotting %s", l.name)
		}
		pl.Color = plotutil.Color(i)
		pl.Width = vg.Points(1.5)
		p.Add(pl)
		p.Legend.Add(l.name, pl)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, file); err != nil {
		return errors.Wrapf(err, "saving %s", file)
	}
	return nil
}
