package centroidal

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/isri-aist/MultiContactController/ddp"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

// horizonData caches the contact ridges and references over one horizon.
type horizonData struct {
	t0       float64
	dt       float64
	vertices [][]r3.Vector
	dirs     [][]r3.Vector
	refs     []spatialmath.Pose
}

func newHorizonData(p *Problem, dt float64, steps int) *horizonData {
	h := &horizonData{
		t0:       p.T,
		dt:       dt,
		vertices: make([][]r3.Vector, steps+1),
		dirs:     make([][]r3.Vector, steps+1),
		refs:     make([]spatialmath.Pose, steps+1),
	}
	for k := 0; k <= steps; k++ {
		t := p.T + float64(k)*dt
		h.vertices[k], h.dirs[k] = contactRidges(p.Contacts(t))
		h.refs[k] = p.Ref(t)
	}
	return h
}

func (h *horizonData) index(t float64) int {
	k := int(math.Round((t - h.t0) / h.dt))
	if k < 0 {
		return 0
	}
	if k >= len(h.refs) {
		return len(h.refs) - 1
	}
	return k
}

// totalForce returns the summed ridge force and its moment about origin.
func totalForce(vertices, dirs []r3.Vector, u *mat.VecDense, origin r3.Vector) (force, moment r3.Vector) {
	for j := range dirs {
		f := dirs[j].Mul(u.AtVec(j))
		force = force.Add(f)
		moment = moment.Add(vertices[j].Sub(origin).Cross(f))
	}
	return force, moment
}

func vec3At(x *mat.VecDense, offset int) r3.Vector {
	return r3.Vector{X: x.AtVec(offset), Y: x.AtVec(offset + 1), Z: x.AtVec(offset + 2)}
}

func setVec3(x *mat.VecDense, offset int, v r3.Vector) {
	x.SetVec(offset, v.X)
	x.SetVec(offset+1, v.Y)
	x.SetVec(offset+2, v.Z)
}

func setBlock3(m *mat.Dense, row, col int, v r3.Vector) {
	m.Set(row, col, v.X)
	m.Set(row+1, col, v.Y)
	m.Set(row+2, col, v.Z)
}

// addDiag3 adds the weighted squared error w*(v-ref) to the gradient and w to the Hessian.
func addDiag3(lx *mat.VecDense, lxx *mat.Dense, offset int, w, v, ref r3.Vector) {
	e := v.Sub(ref)
	lx.SetVec(offset, lx.AtVec(offset)+w.X*e.X)
	lx.SetVec(offset+1, lx.AtVec(offset+1)+w.Y*e.Y)
	lx.SetVec(offset+2, lx.AtVec(offset+2)+w.Z*e.Z)
	lxx.Set(offset, offset, lxx.At(offset, offset)+w.X)
	lxx.Set(offset+1, offset+1, lxx.At(offset+1, offset+1)+w.Y)
	lxx.Set(offset+2, offset+2, lxx.At(offset+2, offset+2)+w.Z)
}

func weightedSq(w, v r3.Vector) float64 {
	return 0.5 * (w.X*v.X*v.X + w.Y*v.Y*v.Y + w.Z*v.Z*v.Z)
}

// centroidalProblem has the state [CoM position, linear momentum, angular momentum] and ridge force
// scales as input.
type centroidalProblem struct {
	cfg     DDPConfig
	mass    float64
	horizon *horizonData
}

const centroidalStateDim = 9

func (cp *centroidalProblem) StateDim() int { return centroidalStateDim }

func (cp *centroidalProblem) InputDim(t float64) int {
	return len(cp.horizon.dirs[cp.horizon.index(t)])
}

func (cp *centroidalProblem) Dt() float64 { return cp.cfg.HorizonDt }

func (cp *centroidalProblem) StateEq(t float64, x, u *mat.VecDense) *mat.VecDense {
	k := cp.horizon.index(t)
	dt := cp.cfg.HorizonDt
	pos, linMom, angMom := vec3At(x, 0), vec3At(x, 3), vec3At(x, 6)
	var force, moment r3.Vector
	if u != nil {
		force, moment = totalForce(cp.horizon.vertices[k], cp.horizon.dirs[k], u, pos)
	}
	next := mat.NewVecDense(centroidalStateDim, nil)
	setVec3(next, 0, pos.Add(linMom.Mul(dt/cp.mass)))
	setVec3(next, 3, linMom.Add(force.Sub(gravityVec.Mul(cp.mass)).Mul(dt)))
	setVec3(next, 6, angMom.Add(moment.Mul(dt)))
	return next
}

func (cp *centroidalProblem) StateEqDeriv(t float64, x, u *mat.VecDense) (*mat.Dense, *mat.Dense) {
	k := cp.horizon.index(t)
	dt := cp.cfg.HorizonDt
	pos := vec3At(x, 0)

	fx := mat.NewDense(centroidalStateDim, centroidalStateDim, nil)
	for i := 0; i < centroidalStateDim; i++ {
		fx.Set(i, i, 1)
	}
	for i := 0; i < 3; i++ {
		fx.Set(i, 3+i, dt/cp.mass)
	}
	if u == nil {
		return fx, nil
	}

	vertices, dirs := cp.horizon.vertices[k], cp.horizon.dirs[k]
	force, _ := totalForce(vertices, dirs, u, pos)
	// d/dpos of sum (v - pos) x f is the skew matrix of the total force
	skew := [3][3]float64{
		{0, -force.Z, force.Y},
		{force.Z, 0, -force.X},
		{-force.Y, force.X, 0},
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			fx.Set(6+i, j, dt*skew[i][j])
		}
	}

	fu := mat.NewDense(centroidalStateDim, len(dirs), nil)
	for j := range dirs {
		setBlock3(fu, 3, j, dirs[j].Mul(dt))
		setBlock3(fu, 6, j, vertices[j].Sub(pos).Cross(dirs[j]).Mul(dt))
	}
	return fx, fu
}

func (cp *centroidalProblem) RunningCost(t float64, x, u *mat.VecDense) float64 {
	ref := cp.horizon.refs[cp.horizon.index(t)].Point
	cost := weightedSq(cp.cfg.RunningPos, vec3At(x, 0).Sub(ref)) +
		weightedSq(cp.cfg.RunningLinearMomentum, vec3At(x, 3)) +
		weightedSq(cp.cfg.RunningAngularMomentum, vec3At(x, 6))
	if u != nil {
		cost += 0.5 * cp.cfg.RunningForce * mat.Dot(u, u)
	}
	return cost
}

func (cp *centroidalProblem) RunningCostDeriv(t float64, x, u *mat.VecDense) ddp.CostDeriv {
	ref := cp.horizon.refs[cp.horizon.index(t)].Point
	d := ddp.CostDeriv{
		Lx:  mat.NewVecDense(centroidalStateDim, nil),
		Lxx: mat.NewDense(centroidalStateDim, centroidalStateDim, nil),
	}
	addDiag3(d.Lx, d.Lxx, 0, cp.cfg.RunningPos, vec3At(x, 0), ref)
	addDiag3(d.Lx, d.Lxx, 3, cp.cfg.RunningLinearMomentum, vec3At(x, 3), r3.Vector{})
	addDiag3(d.Lx, d.Lxx, 6, cp.cfg.RunningAngularMomentum, vec3At(x, 6), r3.Vector{})
	if u != nil {
		n := u.Len()
		d.Lu = mat.NewVecDense(n, nil)
		d.Lu.ScaleVec(cp.cfg.RunningForce, u)
		d.Luu = mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			d.Luu.Set(i, i, cp.cfg.RunningForce)
		}
	}
	return d
}

func (cp *centroidalProblem) TerminalCost(t float64, x *mat.VecDense) float64 {
	ref := cp.horizon.refs[cp.horizon.index(t)].Point
	return weightedSq(cp.cfg.TerminalPos, vec3At(x, 0).Sub(ref)) +
		weightedSq(cp.cfg.TerminalLinearMomentum, vec3At(x, 3)) +
		weightedSq(cp.cfg.TerminalAngularMomentum, vec3At(x, 6))
}

func (cp *centroidalProblem) TerminalCostDeriv(t float64, x *mat.VecDense) (*mat.VecDense, *mat.Dense) {
	ref := cp.horizon.refs[cp.horizon.index(t)].Point
	lx := mat.NewVecDense(centroidalStateDim, nil)
	lxx := mat.NewDense(centroidalStateDim, centroidalStateDim, nil)
	addDiag3(lx, lxx, 0, cp.cfg.TerminalPos, vec3At(x, 0), ref)
	addDiag3(lx, lxx, 3, cp.cfg.TerminalLinearMomentum, vec3At(x, 3), r3.Vector{})
	addDiag3(lx, lxx, 6, cp.cfg.TerminalAngularMomentum, vec3At(x, 6), r3.Vector{})
	return lx, lxx
}

// ddpCentroidal plans the CoM and momentum over contact forces. It does not plan the orientation, whose
// acceleration comes from a PD law toward the reference.
type ddpCentroidal struct {
	cfg     DDPConfig
	mass    float64
	steps   int
	problem *centroidalProblem
	solver  *ddp.Solver
	logger  logging.Logger
}

func newDdpCentroidal(cfg DDPConfig, mass float64, logger logging.Logger) (*ddpCentroidal, error) {
	steps := horizonSteps(cfg.HorizonDuration, cfg.HorizonDt)
	problem := &centroidalProblem{cfg: cfg, mass: mass}
	solverCfg := ddp.DefaultConfig(steps)
	solverCfg.MaxIter = cfg.MaxIter
	solverCfg.HasInputLowerBound = true
	solver, err := ddp.NewSolver(problem, solverCfg)
	if err != nil {
		return nil, err
	}
	return &ddpCentroidal{cfg: cfg, mass: mass, steps: steps, problem: problem, solver: solver, logger: logger}, nil
}

func (d *ddpCentroidal) Method() Method { return MethodDDP }

// Solver exposes the solver for monitoring.
func (d *ddpCentroidal) Solver() *ddp.Solver { return d.solver }

func (d *ddpCentroidal) Plan(p *Problem) (PlannedStep, error) {
	d.problem.horizon = newHorizonData(p, d.cfg.HorizonDt, d.steps)

	x0 := mat.NewVecDense(centroidalStateDim, nil)
	setVec3(x0, 0, p.Pose.Point)
	setVec3(x0, 3, p.Vel.Linear.Mul(d.mass))
	setVec3(x0, 6, p.Momentum.Moment)
	if err := d.solver.Solve(p.T, x0, d.solver.InputList()); err != nil {
		return PlannedStep{}, err
	}

	var wrench spatialmath.ForceVec
	if u0 := d.solver.InputList()[0]; u0 != nil {
		h := d.problem.horizon
		wrench.Force, wrench.Moment = totalForce(h.vertices[0], h.dirs[0], u0, p.Pose.Point)
	}
	x1 := d.solver.StateList()[1]

	ref := d.problem.horizon.refs[0]
	angAccel := spatialmath.RelativeRotation(p.Pose.Orientation, ref.Orientation).Mul(d.cfg.OrientationGainP).
		Sub(p.Vel.Angular.Mul(d.cfg.OrientationGainD))

	return PlannedStep{
		Wrench:   wrench,
		Momentum: spatialmath.ForceVec{Moment: vec3At(x1, 6), Force: vec3At(x1, 3)},
		Accel: spatialmath.MotionVec{
			Angular: angAccel,
			Linear:  wrench.Force.Mul(1 / d.mass).Sub(gravityVec),
		},
	}, nil
}
