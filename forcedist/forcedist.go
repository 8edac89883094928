// Package forcedist distributes a desired centroidal wrench over the friction-cone ridges of the active
// contacts.
package forcedist

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/isri-aist/MultiContactController/contact"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

// Config configures the least-squares distribution.
type Config struct {
	// RegularWeight penalizes the squared ridge force scales.
	RegularWeight float64 `json:"regularWeight"`
	// RidgeForceMin is the lower bound of every ridge force scale.
	RidgeForceMin float64 `json:"ridgeForceMin"`
	MaxIter       int     `json:"maxIter"`
}

// DefaultConfig returns the default distribution configuration.
func DefaultConfig() Config {
	return Config{RegularWeight: 1e-8, RidgeForceMin: 0, MaxIter: 0}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.RegularWeight < 0 {
		return goutils.NewConfigValidationError(path, errors.New("regularWeight must not be negative"))
	}
	if cfg.RidgeForceMin < 0 {
		return goutils.NewConfigValidationError(path, errors.New("ridgeForceMin must not be negative"))
	}
	if cfg.MaxIter < 0 {
		return goutils.NewConfigValidationError(path, errors.New("maxIter must not be negative"))
	}
	return nil
}

// Result is the outcome of one distribution.
type Result struct {
	// Ratios are the ridge force scales of each contact, vertex-major.
	Ratios map[string][]float64
	// Wrenches are the contact wrenches in world orientation, taken about each contact pose origin.
	Wrenches map[string]spatialmath.ForceVec
	// TotalWrench is the achievable wrench about the moment origin given to Run.
	TotalWrench spatialmath.ForceVec
}

// Distributor computes contact wrenches realizing a desired wrench.
type Distributor interface {
	// Run distributes desired, taken about momentOrigin, over contacts keyed by limb name.
	Run(contacts map[string]contact.Constraint, desired spatialmath.ForceVec, momentOrigin r3.Vector) (Result, error)
}

// LeastSquares minimizes ||G l - w||^2 + regularWeight ||l||^2 over ridge force scales l >= ridgeForceMin.
type LeastSquares struct {
	cfg Config
}

// NewLeastSquares returns a least-squares distributor.
func NewLeastSquares(cfg Config) (*LeastSquares, error) {
	if err := cfg.Validate("wrenchDist"); err != nil {
		return nil, err
	}
	return &LeastSquares{cfg: cfg}, nil
}

// ridge is one friction-cone generator at a vertex.
type ridge struct {
	limb   string
	vertex r3.Vector
	dir    r3.Vector
}

// Ridges flattens the ridges of contacts in limb name order, vertex-major.
func Ridges(contacts map[string]contact.Constraint) (names []string, counts map[string]int, vertices, dirs []r3.Vector) {
	names = make([]string, 0, len(contacts))
	for name := range contacts {
		names = append(names, name)
	}
	sort.Strings(names)
	counts = map[string]int{}
	for _, name := range names {
		for _, vr := range contacts[name].VertexWithRidgesList() {
			for _, r := range vr.Ridges {
				vertices = append(vertices, vr.Vertex)
				dirs = append(dirs, r)
				counts[name]++
			}
		}
	}
	return names, counts, vertices, dirs
}

// GraspMatrix returns the 6xN matrix mapping ridge force scales to the wrench about momentOrigin, with
// rows ordered moment then force.
func GraspMatrix(vertices, dirs []r3.Vector, momentOrigin r3.Vector) *mat.Dense {
	g := mat.NewDense(6, max(len(dirs), 1), nil)
	for j := range dirs {
		m := vertices[j].Sub(momentOrigin).Cross(dirs[j])
		g.Set(0, j, m.X)
		g.Set(1, j, m.Y)
		g.Set(2, j, m.Z)
		g.Set(3, j, dirs[j].X)
		g.Set(4, j, dirs[j].Y)
		g.Set(5, j, dirs[j].Z)
	}
	return g
}

// Run implements Distributor. An empty contact set yields a zero result.
func (ls *LeastSquares) Run(
	contacts map[string]contact.Constraint,
	desired spatialmath.ForceVec,
	momentOrigin r3.Vector,
) (Result, error) {
	res := Result{Ratios: map[string][]float64{}, Wrenches: map[string]spatialmath.ForceVec{}}
	names, counts, vertices, dirs := Ridges(contacts)
	n := len(dirs)
	if n == 0 {
		for _, name := range names {
			res.Wrenches[name] = spatialmath.ForceVec{}
		}
		return res, nil
	}

	g := GraspMatrix(vertices, dirs, momentOrigin)
	w := mat.NewVecDense(6, desired.Vector())

	// shift to l = mu + ridgeForceMin, then append the regularization rows
	lmin := mat.NewVecDense(n, nil)
	for j := 0; j < n; j++ {
		lmin.SetVec(j, ls.cfg.RidgeForceMin)
	}
	var gl mat.VecDense
	gl.MulVec(g, lmin)

	sqrtReg := math.Sqrt(ls.cfg.RegularWeight)
	a := mat.NewDense(6+n, n, nil)
	b := mat.NewVecDense(6+n, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, g.At(i, j))
		}
		b.SetVec(i, w.AtVec(i)-gl.AtVec(i))
	}
	for j := 0; j < n; j++ {
		a.Set(6+j, j, sqrtReg)
		b.SetVec(6+j, -sqrtReg*ls.cfg.RidgeForceMin)
	}

	mu, err := NNLS(a, b, ls.cfg.MaxIter)
	if err != nil {
		return res, errors.Wrap(err, "wrench distribution")
	}
	scales := make([]float64, n)
	for j := range scales {
		scales[j] = mu.AtVec(j) + ls.cfg.RidgeForceMin
	}

	offset := 0
	for _, name := range names {
		cnt := counts[name]
		res.Ratios[name] = scales[offset : offset+cnt]
		res.Wrenches[name] = TotalWrench(vertices[offset:offset+cnt], dirs[offset:offset+cnt],
			res.Ratios[name], contacts[name].Pose().Point)
		offset += cnt
	}
	res.TotalWrench = TotalWrench(vertices, dirs, scales, momentOrigin)
	return res, nil
}

// TotalWrench sums ridge forces into a wrench about momentOrigin.
func TotalWrench(vertices, dirs []r3.Vector, scales []float64, momentOrigin r3.Vector) spatialmath.ForceVec {
	var w spatialmath.ForceVec
	for j := range dirs {
		f := dirs[j].Mul(scales[j])
		w.Force = w.Force.Add(f)
		w.Moment = w.Moment.Add(vertices[j].Sub(momentOrigin).Cross(f))
	}
	return w
}
