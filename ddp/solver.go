package ddp

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Config configures the solver.
type Config struct {
	HorizonSteps int
	MaxIter      int
	// InputLowerBound clamps every input entry from below when HasInputLowerBound is set.
	InputLowerBound    float64
	HasInputLowerBound bool
	// InitialLambda is the initial Levenberg-Marquardt regularization of the backward pass.
	InitialLambda float64
	// ConvergenceTol stops iterating when the relative cost decrease falls below it.
	ConvergenceTol float64
}

// DefaultConfig returns a solver configuration for horizonSteps steps.
func DefaultConfig(horizonSteps int) Config {
	return Config{
		HorizonSteps:   horizonSteps,
		MaxIter:        1,
		InitialLambda:  1e-6,
		ConvergenceTol: 1e-6,
	}
}

// TraceData records one solver iteration.
type TraceData struct {
	Iter   int
	Cost   float64
	Lambda float64
	Alpha  float64
}

// Solver runs iLQR on a Problem, keeping its last solution as the warm start of the next call.
type Solver struct {
	cfg     Config
	problem Problem

	xList []*mat.VecDense
	uList []*mat.VecDense
	kList []*mat.VecDense
	bigK  []*mat.Dense

	trace           []TraceData
	computeDuration time.Duration
}

// NewSolver returns a solver for problem.
func NewSolver(problem Problem, cfg Config) (*Solver, error) {
	if cfg.HorizonSteps <= 0 {
		return nil, errors.Errorf("horizon steps must be positive, got %d", cfg.HorizonSteps)
	}
	if cfg.MaxIter <= 0 {
		return nil, errors.Errorf("max iteration must be positive, got %d", cfg.MaxIter)
	}
	return &Solver{cfg: cfg, problem: problem}, nil
}

// Config returns the solver configuration.
func (s *Solver) Config() Config { return s.cfg }

// StateList returns the planned states x_0..x_N of the last solve.
func (s *Solver) StateList() []*mat.VecDense { return s.xList }

// InputList returns the planned inputs u_0..u_{N-1} of the last solve. Entries are nil where the input
// dimension is zero.
func (s *Solver) InputList() []*mat.VecDense { return s.uList }

// TraceDataList returns the per-iteration trace of the last solve.
func (s *Solver) TraceDataList() []TraceData { return s.trace }

// ComputationDuration returns the wall time of the last solve.
func (s *Solver) ComputationDuration() time.Duration { return s.computeDuration }

// Solve plans from x0 at t0. initialU, when given, warm-starts the inputs; entries whose dimension no
// longer matches the problem are replaced by zeros.
func (s *Solver) Solve(t0 float64, x0 *mat.VecDense, initialU []*mat.VecDense) error {
	start := time.Now()
	defer func() { s.computeDuration = time.Since(start) }()

	if x0.Len() != s.problem.StateDim() {
		return errors.Errorf("initial state has dimension %d, want %d", x0.Len(), s.problem.StateDim())
	}
	n := s.cfg.HorizonSteps
	dt := s.problem.Dt()
	s.trace = s.trace[:0]

	s.uList = make([]*mat.VecDense, n)
	for k := 0; k < n; k++ {
		dim := s.problem.InputDim(t0 + float64(k)*dt)
		if dim == 0 {
			continue
		}
		if k < len(initialU) && initialU[k] != nil && initialU[k].Len() == dim {
			s.uList[k] = mat.VecDenseCopyOf(initialU[k])
		} else {
			s.uList[k] = mat.NewVecDense(dim, nil)
		}
		s.clampInput(s.uList[k])
	}
	s.kList = make([]*mat.VecDense, n)
	s.bigK = make([]*mat.Dense, n)

	var cost float64
	s.xList, cost = s.rollout(t0, x0, s.uList)
	lambda := s.cfg.InitialLambda

	for iter := 1; iter <= s.cfg.MaxIter; iter++ {
		if !s.backwardPass(t0, lambda) {
			lambda = math.Max(lambda*10, 1e-6)
			s.trace = append(s.trace, TraceData{Iter: iter, Cost: cost, Lambda: lambda})
			continue
		}
		newX, newU, newCost, alpha := s.forwardPass(t0, x0, cost)
		s.trace = append(s.trace, TraceData{Iter: iter, Cost: newCost, Lambda: lambda, Alpha: alpha})
		if alpha == 0 {
			lambda = math.Max(lambda*10, 1e-6)
			continue
		}
		decrease := cost - newCost
		s.xList, s.uList = newX, newU
		cost = newCost
		lambda = math.Max(lambda/10, 1e-12)
		if decrease <= s.cfg.ConvergenceTol*math.Max(math.Abs(cost), 1) {
			break
		}
	}
	return nil
}

func (s *Solver) clampInput(u *mat.VecDense) {
	if u == nil || !s.cfg.HasInputLowerBound {
		return
	}
	for i := 0; i < u.Len(); i++ {
		if u.AtVec(i) < s.cfg.InputLowerBound {
			u.SetVec(i, s.cfg.InputLowerBound)
		}
	}
}

func (s *Solver) rollout(t0 float64, x0 *mat.VecDense, uList []*mat.VecDense) ([]*mat.VecDense, float64) {
	dt := s.problem.Dt()
	xList := make([]*mat.VecDense, len(uList)+1)
	xList[0] = mat.VecDenseCopyOf(x0)
	cost := 0.0
	for k, u := range uList {
		t := t0 + float64(k)*dt
		cost += s.problem.RunningCost(t, xList[k], u)
		xList[k+1] = s.problem.StateEq(t, xList[k], u)
	}
	cost += s.problem.TerminalCost(t0+float64(len(uList))*dt, xList[len(uList)])
	return xList, cost
}

// backwardPass computes the feedforward and feedback gains. It returns false when Quu is not positive
// definite.
func (s *Solver) backwardPass(t0 float64, lambda float64) bool {
	n := len(s.uList)
	dt := s.problem.Dt()
	lx, lxx := s.problem.TerminalCostDeriv(t0+float64(n)*dt, s.xList[n])
	vx := mat.VecDenseCopyOf(lx)
	var vxx mat.Matrix = symmetrize(lxx)

	for k := n - 1; k >= 0; k-- {
		t := t0 + float64(k)*dt
		x, u := s.xList[k], s.uList[k]
		fx, fu := s.problem.StateEqDeriv(t, x, u)
		d := s.problem.RunningCostDeriv(t, x, u)

		// Qx = lx + fx' Vx, Qxx = lxx + fx' Vxx fx
		var qx mat.VecDense
		qx.MulVec(fx.T(), vx)
		qx.AddVec(&qx, d.Lx)
		var vxxFx, qxx mat.Dense
		vxxFx.Mul(vxx, fx)
		qxx.Mul(fx.T(), &vxxFx)
		qxx.Add(&qxx, d.Lxx)

		if u == nil || fu == nil {
			s.kList[k], s.bigK[k] = nil, nil
			vx = &qx
			vxx = symmetrize(&qxx)
			continue
		}
		m := u.Len()

		var qu mat.VecDense
		qu.MulVec(fu.T(), vx)
		qu.AddVec(&qu, d.Lu)
		var vxxFu, quu, qux mat.Dense
		vxxFu.Mul(vxx, fu)
		quu.Mul(fu.T(), &vxxFu)
		quu.Add(&quu, d.Luu)
		for i := 0; i < m; i++ {
			quu.Set(i, i, quu.At(i, i)+lambda)
		}
		qux.Mul(fu.T(), &vxxFx)
		if d.Lux != nil {
			qux.Add(&qux, d.Lux)
		}

		var chol mat.Cholesky
		if !chol.Factorize(symmetrize(&quu)) {
			return false
		}
		kff := mat.NewVecDense(m, nil)
		if err := chol.SolveVecTo(kff, &qu); err != nil {
			return false
		}
		kff.ScaleVec(-1, kff)
		kfb := mat.NewDense(m, x.Len(), nil)
		if err := chol.SolveTo(kfb, &qux); err != nil {
			return false
		}
		kfb.Scale(-1, kfb)
		s.kList[k], s.bigK[k] = kff, kfb

		// Vx = Qx + K' Quu k + K' Qu + Qux' k
		var quuk, tmp, nvx mat.VecDense
		nvx.CloneFromVec(&qx)
		quuk.MulVec(&quu, kff)
		tmp.MulVec(kfb.T(), &quuk)
		nvx.AddVec(&nvx, &tmp)
		tmp.Reset()
		tmp.MulVec(kfb.T(), &qu)
		nvx.AddVec(&nvx, &tmp)
		tmp.Reset()
		tmp.MulVec(qux.T(), kff)
		nvx.AddVec(&nvx, &tmp)

		// Vxx = Qxx + K' Quu K + K' Qux + Qux' K
		var nvxx, quuK, m1 mat.Dense
		nvxx.CloneFrom(&qxx)
		quuK.Mul(&quu, kfb)
		m1.Mul(kfb.T(), &quuK)
		nvxx.Add(&nvxx, &m1)
		m1.Reset()
		m1.Mul(kfb.T(), &qux)
		nvxx.Add(&nvxx, &m1)
		m1.Reset()
		m1.Mul(qux.T(), kfb)
		nvxx.Add(&nvxx, &m1)

		vx = &nvx
		vxx = symmetrize(&nvxx)
	}
	return true
}

var lineSearchAlphas = []float64{1, 0.5, 0.25, 0.125, 0.0625, 0.03125}

// forwardPass applies the gains with a backtracking line search. alpha is zero when no step improved
// the cost.
func (s *Solver) forwardPass(t0 float64, x0 *mat.VecDense, cost float64) ([]*mat.VecDense, []*mat.VecDense, float64, float64) {
	dt := s.problem.Dt()
	n := len(s.uList)
	for _, alpha := range lineSearchAlphas {
		xList := make([]*mat.VecDense, n+1)
		uList := make([]*mat.VecDense, n)
		xList[0] = mat.VecDenseCopyOf(x0)
		newCost := 0.0
		for k := 0; k < n; k++ {
			t := t0 + float64(k)*dt
			if s.uList[k] != nil {
				u := mat.VecDenseCopyOf(s.uList[k])
				var dx, fb mat.VecDense
				dx.SubVec(xList[k], s.xList[k])
				fb.MulVec(s.bigK[k], &dx)
				u.AddScaledVec(u, alpha, s.kList[k])
				u.AddVec(u, &fb)
				s.clampInput(u)
				uList[k] = u
			}
			newCost += s.problem.RunningCost(t, xList[k], uList[k])
			xList[k+1] = s.problem.StateEq(t, xList[k], uList[k])
		}
		newCost += s.problem.TerminalCost(t0+float64(n)*dt, xList[n])
		if newCost < cost {
			return xList, uList, newCost, alpha
		}
	}
	return nil, nil, cost, 0
}

func symmetrize(a mat.Matrix) *mat.SymDense {
	r, _ := a.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return sym
}
