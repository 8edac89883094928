package centroidal

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/isri-aist/MultiContactController/forcedist"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

const (
	dareMaxIter = 100
	dareTol     = 1e-12
)

// previewGain is the LQ preview controller of one jerk-driven axis with state [pos, vel, acc].
type previewGain struct {
	// k is the state feedback gain.
	k [3]float64
	// f[i] weights the reference i+1 horizon steps ahead.
	f []float64
}

func (g *previewGain) input(x [3]float64, ref []float64) float64 {
	u := -(g.k[0]*x[0] + g.k[1]*x[1] + g.k[2]*x[2])
	for i, r := range ref {
		u += g.f[i] * r
	}
	return u
}

// solveDARE solves the discrete algebraic Riccati equation
// X = A'XA - A'XB (R + B'XB)^-1 B'XA + Q with the structure-preserving doubling algorithm.
func solveDARE(a, b, q *mat.Dense, r float64) (*mat.Dense, error) {
	n, _ := a.Dims()
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1)
	}

	ak := mat.DenseCopyOf(a)
	gk := mat.NewDense(n, n, nil)
	gk.Mul(b, b.T())
	gk.Scale(1/r, gk)
	hk := mat.DenseCopyOf(q)

	for iter := 0; iter < dareMaxIter; iter++ {
		var w, winv mat.Dense
		w.Mul(gk, hk)
		w.Add(&w, eye)
		if err := winv.Inverse(&w); err != nil {
			return nil, errors.Wrap(err, "riccati doubling step")
		}

		var aw, aNext mat.Dense
		aw.Mul(ak, &winv)
		aNext.Mul(&aw, ak)

		var gTmp, gNext mat.Dense
		gTmp.Mul(&aw, gk)
		gNext.Mul(&gTmp, ak.T())
		gNext.Add(gk, &gNext)

		var hw, hTmp, hNext mat.Dense
		hw.Mul(hk, &winv)
		hTmp.Mul(ak.T(), &hw)
		hNext.Mul(&hTmp, ak)
		hNext.Add(hk, &hNext)

		var diff mat.Dense
		diff.Sub(&hNext, hk)
		converged := mat.Norm(&diff, 1) <= dareTol*math.Max(1, mat.Norm(&hNext, 1))
		ak, gk, hk = &aNext, &gNext, &hNext
		if converged {
			return hk, nil
		}
	}
	return nil, errors.New("riccati equation did not converge")
}

// newPreviewGain computes the preview controller of a triple integrator sampled every dt, penalizing
// position error, acceleration and jerk.
func newPreviewGain(dt, posWeight, accWeight, jerkWeight float64, steps int) (previewGain, error) {
	a := mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})
	bData := []float64{dt * dt * dt / 6, dt * dt / 2, dt}
	b := mat.NewDense(3, 1, bData)
	bVec := mat.NewVecDense(3, bData)
	q := mat.NewDense(3, 3, nil)
	q.Set(0, 0, posWeight)
	q.Set(2, 2, accWeight)

	x, err := solveDARE(a, b, q, jerkWeight)
	if err != nil {
		return previewGain{}, err
	}

	// s = R + B'XB, k = s^-1 B'XA
	var bx mat.Dense
	bx.Mul(b.T(), x)
	var bxb, bxa mat.Dense
	bxb.Mul(&bx, b)
	bxa.Mul(&bx, a)
	s := jerkWeight + bxb.At(0, 0)

	g := previewGain{f: make([]float64, steps)}
	for j := 0; j < 3; j++ {
		g.k[j] = bxa.At(0, j) / s
	}

	var kMat, ac mat.Dense
	kMat.Mul(b, mat.NewDense(1, 3, g.k[:]))
	ac.Sub(a, &kMat)

	// f_i = s^-1 B' (Ac')^(i-1) C' posWeight
	v := mat.NewVecDense(3, []float64{posWeight, 0, 0})
	for i := 0; i < steps; i++ {
		g.f[i] = mat.Dot(bVec, v) / s
		var next mat.VecDense
		next.MulVec(ac.T(), v)
		v = &next
	}
	return g, nil
}

// previewControl plans the centroidal motion with an independent preview controller per axis: roll,
// pitch and yaw, then x, y and z.
type previewControl struct {
	cfg     PCConfig
	mass    float64
	inertia r3.Vector
	steps   int
	gains   [6]previewGain
	dist    forcedist.Distributor
	logger  logging.Logger
}

func newPreviewControl(cfg PCConfig, mass float64, inertia r3.Vector, logger logging.Logger) (*previewControl, error) {
	if inertia.X <= 0 || inertia.Y <= 0 || inertia.Z <= 0 {
		return nil, errors.Errorf("moment of inertia must be positive, got %v", inertia)
	}
	dist, err := forcedist.NewLeastSquares(cfg.WrenchDist)
	if err != nil {
		return nil, err
	}
	pc := &previewControl{
		cfg:     cfg,
		mass:    mass,
		inertia: inertia,
		steps:   horizonSteps(cfg.HorizonDuration, cfg.HorizonDt),
		dist:    dist,
		logger:  logger,
	}
	pos, acc, jerk := cfg.PosWeight.Vector(), cfg.AccWeight.Vector(), cfg.JerkWeight.Vector()
	for i := range pc.gains {
		if pc.gains[i], err = newPreviewGain(cfg.HorizonDt, pos[i], acc[i], jerk[i], pc.steps); err != nil {
			return nil, errors.Wrapf(err, "preview gain of axis %d", i)
		}
	}
	return pc, nil
}

func (pc *previewControl) Method() Method { return MethodPC }

func (pc *previewControl) Plan(p *Problem) (PlannedStep, error) {
	rpy := spatialmath.RPYFromQuat(p.Pose.Orientation)
	pos := []float64{rpy.X, rpy.Y, rpy.Z, p.Pose.Point.X, p.Pose.Point.Y, p.Pose.Point.Z}
	vel := p.Vel.Vector()
	acc := p.PlannedAccel.Vector()

	refs := make([][]float64, 6)
	for i := range refs {
		refs[i] = make([]float64, pc.steps)
	}
	prevRpy := rpy
	for i := 0; i < pc.steps; i++ {
		ref := p.Ref(p.T + float64(i+1)*pc.cfg.HorizonDt)
		refRpy := unwrapAngles(spatialmath.RPYFromQuat(ref.Orientation), prevRpy)
		prevRpy = refRpy
		for j, v := range []float64{refRpy.X, refRpy.Y, refRpy.Z, ref.Point.X, ref.Point.Y, ref.Point.Z} {
			refs[j][i] = v
		}
	}

	var next [6]float64
	for j := range pc.gains {
		jerk := pc.gains[j].input([3]float64{pos[j], vel[j], acc[j]}, refs[j])
		next[j] = acc[j] + p.Dt*jerk
	}
	desiredAccel := spatialmath.MotionVec{
		Angular: r3.Vector{X: next[0], Y: next[1], Z: next[2]},
		Linear:  r3.Vector{X: next[3], Y: next[4], Z: next[5]},
	}
	desired := spatialmath.ForceVec{
		Moment: spatialmath.MulElem(pc.inertia, desiredAccel.Angular),
		Force:  desiredAccel.Linear.Add(gravityVec).Mul(pc.mass),
	}

	var wrench spatialmath.ForceVec
	if contacts := p.Contacts(p.T); len(contacts) > 0 {
		res, err := pc.dist.Run(contacts, desired, p.Pose.Point)
		if err != nil {
			return PlannedStep{}, err
		}
		wrench = res.TotalWrench
	}

	return PlannedStep{
		Wrench: wrench,
		Momentum: spatialmath.ForceVec{
			Moment: p.PlannedMomentum.Moment.Add(wrench.Moment.Mul(p.Dt)),
			Force:  p.PlannedMomentum.Force.Add(wrench.Force.Sub(gravityVec.Mul(pc.mass)).Mul(p.Dt)),
		},
		Accel: spatialmath.MotionVec{
			Angular: spatialmath.DivElem(wrench.Moment, pc.inertia),
			Linear:  wrench.Force.Mul(1 / pc.mass).Sub(gravityVec),
		},
	}, nil
}
