package ddp

import (
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

// doubleIntegrator drives a unit mass from its initial state to the origin with a force input.
type doubleIntegrator struct {
	dt         float64
	inputDim   func(t float64) int
	finiteDiff bool
}

func (p *doubleIntegrator) StateDim() int          { return 2 }
func (p *doubleIntegrator) InputDim(t float64) int { return p.inputDim(t) }
func (p *doubleIntegrator) Dt() float64            { return p.dt }

func (p *doubleIntegrator) force(u *mat.VecDense) float64 {
	if u == nil {
		return 0
	}
	f := 0.0
	for i := 0; i < u.Len(); i++ {
		f += u.AtVec(i)
	}
	return f
}

func (p *doubleIntegrator) StateEq(_ float64, x, u *mat.VecDense) *mat.VecDense {
	pos, vel := x.AtVec(0), x.AtVec(1)
	acc := p.force(u)
	return mat.NewVecDense(2, []float64{pos + p.dt*vel + 0.5*p.dt*p.dt*acc, vel + p.dt*acc})
}

func (p *doubleIntegrator) StateEqDeriv(t float64, x, u *mat.VecDense) (*mat.Dense, *mat.Dense) {
	if p.finiteDiff {
		return FiniteDiff(p, t, x, u)
	}
	fx := mat.NewDense(2, 2, []float64{1, p.dt, 0, 1})
	if u == nil {
		return fx, nil
	}
	fu := mat.NewDense(2, u.Len(), nil)
	for j := 0; j < u.Len(); j++ {
		fu.Set(0, j, 0.5*p.dt*p.dt)
		fu.Set(1, j, p.dt)
	}
	return fx, fu
}

const (
	posWeight   = 10.0
	velWeight   = 1.0
	inputWeight = 1e-3
)

func (p *doubleIntegrator) RunningCost(_ float64, x, u *mat.VecDense) float64 {
	c := 0.5*posWeight*x.AtVec(0)*x.AtVec(0) + 0.5*velWeight*x.AtVec(1)*x.AtVec(1)
	if u != nil {
		c += 0.5 * inputWeight * mat.Dot(u, u)
	}
	return c
}

func (p *doubleIntegrator) RunningCostDeriv(_ float64, x, u *mat.VecDense) CostDeriv {
	d := CostDeriv{
		Lx:  mat.NewVecDense(2, []float64{posWeight * x.AtVec(0), velWeight * x.AtVec(1)}),
		Lxx: mat.NewDense(2, 2, []float64{posWeight, 0, 0, velWeight}),
	}
	if u != nil {
		m := u.Len()
		d.Lu = mat.NewVecDense(m, nil)
		d.Lu.ScaleVec(inputWeight, u)
		d.Luu = mat.NewDense(m, m, nil)
		for i := 0; i < m; i++ {
			d.Luu.Set(i, i, inputWeight)
		}
	}
	return d
}

func (p *doubleIntegrator) TerminalCost(t float64, x *mat.VecDense) float64 {
	return 10 * p.RunningCost(t, x, nil)
}

func (p *doubleIntegrator) TerminalCostDeriv(t float64, x *mat.VecDense) (*mat.VecDense, *mat.Dense) {
	d := p.RunningCostDeriv(t, x, nil)
	d.Lx.ScaleVec(10, d.Lx)
	d.Lxx.Scale(10, d.Lxx)
	return d.Lx, d.Lxx
}

func TestSolverDrivesToOrigin(t *testing.T) {
	for _, finiteDiff := range []bool{false, true} {
		p := &doubleIntegrator{dt: 0.05, inputDim: func(float64) int { return 1 }, finiteDiff: finiteDiff}
		cfg := DefaultConfig(40)
		cfg.MaxIter = 5
		solver, err := NewSolver(p, cfg)
		test.That(t, err, test.ShouldBeNil)

		x0 := mat.NewVecDense(2, []float64{1, 0})
		test.That(t, solver.Solve(0, x0, nil), test.ShouldBeNil)
		xs := solver.StateList()
		test.That(t, xs, test.ShouldHaveLength, 41)
		test.That(t, xs[40].AtVec(0), test.ShouldAlmostEqual, 0, 0.05)
		test.That(t, solver.InputList()[0].AtVec(0), test.ShouldBeLessThan, 0.0)
		test.That(t, solver.TraceDataList(), test.ShouldNotBeEmpty)
		// linear-quadratic problems converge in one step
		test.That(t, solver.TraceDataList()[0].Alpha, test.ShouldEqual, 1.0)
	}
}

func TestSolverInputLowerBound(t *testing.T) {
	p := &doubleIntegrator{dt: 0.05, inputDim: func(float64) int { return 2 }}
	cfg := DefaultConfig(20)
	cfg.MaxIter = 3
	cfg.HasInputLowerBound = true
	solver, err := NewSolver(p, cfg)
	test.That(t, err, test.ShouldBeNil)

	// pushing towards the origin needs a negative force, which the bound forbids
	test.That(t, solver.Solve(0, mat.NewVecDense(2, []float64{1, 0}), nil), test.ShouldBeNil)
	for _, u := range solver.InputList() {
		for i := 0; i < u.Len(); i++ {
			test.That(t, u.AtVec(i), test.ShouldBeGreaterThanOrEqualTo, 0.0)
		}
	}
}

func TestSolverVaryingInputDim(t *testing.T) {
	p := &doubleIntegrator{dt: 0.05, inputDim: func(t float64) int {
		if t < 0.5 {
			return 0
		}
		return 3
	}}
	cfg := DefaultConfig(20)
	cfg.MaxIter = 3
	solver, err := NewSolver(p, cfg)
	test.That(t, err, test.ShouldBeNil)

	warm := make([]*mat.VecDense, 20)
	warm[15] = mat.NewVecDense(2, []float64{1, 1})
	test.That(t, solver.Solve(0, mat.NewVecDense(2, []float64{1, 0}), warm), test.ShouldBeNil)
	us := solver.InputList()
	test.That(t, us[0], test.ShouldBeNil)
	test.That(t, us[15].Len(), test.ShouldEqual, 3)

	_, err = NewSolver(p, Config{HorizonSteps: 0, MaxIter: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, solver.Solve(0, mat.NewVecDense(3, nil), nil), test.ShouldNotBeNil)
}
