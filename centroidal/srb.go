package centroidal

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/isri-aist/MultiContactController/ddp"
	"github.com/isri-aist/MultiContactController/logging"
	"github.com/isri-aist/MultiContactController/spatialmath"
)

const srbStateDim = 12

// eulerRates maps a world angular velocity to ZYX Euler angle rates. Angles are ordered roll, pitch,
// yaw as returned by spatialmath.RPYFromQuat.
func eulerRates(rpy, omega r3.Vector) r3.Vector {
	sy, cy := math.Sincos(rpy.Z)
	sp, cp := math.Sincos(rpy.Y)
	if math.Abs(cp) < 1e-6 {
		cp = math.Copysign(1e-6, cp)
	}
	rollRate := (cy*omega.X + sy*omega.Y) / cp
	return r3.Vector{
		X: rollRate,
		Y: -sy*omega.X + cy*omega.Y,
		Z: omega.Z + sp*rollRate,
	}
}

// srbProblem has the state [CoM position, roll/pitch/yaw, linear velocity, angular velocity] of a
// single rigid body and ridge force scales as input. The inertia is diagonal in the world frame.
type srbProblem struct {
	cfg     SRBConfig
	mass    float64
	inertia r3.Vector
	horizon *horizonData
	// refRpy are the reference angles unwrapped along the horizon.
	refRpy []r3.Vector
}

func (sp *srbProblem) StateDim() int { return srbStateDim }

func (sp *srbProblem) InputDim(t float64) int {
	return len(sp.horizon.dirs[sp.horizon.index(t)])
}

func (sp *srbProblem) Dt() float64 { return sp.cfg.HorizonDt }

func (sp *srbProblem) StateEq(t float64, x, u *mat.VecDense) *mat.VecDense {
	k := sp.horizon.index(t)
	dt := sp.cfg.HorizonDt
	pos, rpy, vel, omega := vec3At(x, 0), vec3At(x, 3), vec3At(x, 6), vec3At(x, 9)
	var force, moment r3.Vector
	if u != nil {
		force, moment = totalForce(sp.horizon.vertices[k], sp.horizon.dirs[k], u, pos)
	}
	iw := spatialmath.MulElem(sp.inertia, omega)
	angAccel := spatialmath.DivElem(moment.Sub(omega.Cross(iw)), sp.inertia)

	next := mat.NewVecDense(srbStateDim, nil)
	setVec3(next, 0, pos.Add(vel.Mul(dt)))
	setVec3(next, 3, rpy.Add(eulerRates(rpy, omega).Mul(dt)))
	setVec3(next, 6, vel.Add(force.Mul(1/sp.mass).Sub(gravityVec).Mul(dt)))
	setVec3(next, 9, omega.Add(angAccel.Mul(dt)))
	return next
}

func (sp *srbProblem) StateEqDeriv(t float64, x, u *mat.VecDense) (*mat.Dense, *mat.Dense) {
	return ddp.FiniteDiff(sp, t, x, u)
}

func (sp *srbProblem) RunningCost(t float64, x, u *mat.VecDense) float64 {
	k := sp.horizon.index(t)
	cost := weightedSq(sp.cfg.RunningPos, vec3At(x, 0).Sub(sp.horizon.refs[k].Point)) +
		weightedSq(sp.cfg.RunningOri, vec3At(x, 3).Sub(sp.refRpy[k])) +
		weightedSq(sp.cfg.RunningLinearVel, vec3At(x, 6)) +
		weightedSq(sp.cfg.RunningAngularVel, vec3At(x, 9))
	if u != nil {
		cost += 0.5 * sp.cfg.RunningForce * mat.Dot(u, u)
	}
	return cost
}

func (sp *srbProblem) RunningCostDeriv(t float64, x, u *mat.VecDense) ddp.CostDeriv {
	k := sp.horizon.index(t)
	d := ddp.CostDeriv{
		Lx:  mat.NewVecDense(srbStateDim, nil),
		Lxx: mat.NewDense(srbStateDim, srbStateDim, nil),
	}
	addDiag3(d.Lx, d.Lxx, 0, sp.cfg.RunningPos, vec3At(x, 0), sp.horizon.refs[k].Point)
	addDiag3(d.Lx, d.Lxx, 3, sp.cfg.RunningOri, vec3At(x, 3), sp.refRpy[k])
	addDiag3(d.Lx, d.Lxx, 6, sp.cfg.RunningLinearVel, vec3At(x, 6), r3.Vector{})
	addDiag3(d.Lx, d.Lxx, 9, sp.cfg.RunningAngularVel, vec3At(x, 9), r3.Vector{})
	if u != nil {
		n := u.Len()
		d.Lu = mat.NewVecDense(n, nil)
		d.Lu.ScaleVec(sp.cfg.RunningForce, u)
		d.Luu = mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			d.Luu.Set(i, i, sp.cfg.RunningForce)
		}
	}
	return d
}

func (sp *srbProblem) TerminalCost(t float64, x *mat.VecDense) float64 {
	k := sp.horizon.index(t)
	return weightedSq(sp.cfg.TerminalPos, vec3At(x, 0).Sub(sp.horizon.refs[k].Point)) +
		weightedSq(sp.cfg.TerminalOri, vec3At(x, 3).Sub(sp.refRpy[k])) +
		weightedSq(sp.cfg.TerminalLinearVel, vec3At(x, 6)) +
		weightedSq(sp.cfg.TerminalAngularVel, vec3At(x, 9))
}

func (sp *srbProblem) TerminalCostDeriv(t float64, x *mat.VecDense) (*mat.VecDense, *mat.Dense) {
	k := sp.horizon.index(t)
	lx := mat.NewVecDense(srbStateDim, nil)
	lxx := mat.NewDense(srbStateDim, srbStateDim, nil)
	addDiag3(lx, lxx, 0, sp.cfg.TerminalPos, vec3At(x, 0), sp.horizon.refs[k].Point)
	addDiag3(lx, lxx, 3, sp.cfg.TerminalOri, vec3At(x, 3), sp.refRpy[k])
	addDiag3(lx, lxx, 6, sp.cfg.TerminalLinearVel, vec3At(x, 6), r3.Vector{})
	addDiag3(lx, lxx, 9, sp.cfg.TerminalAngularVel, vec3At(x, 9), r3.Vector{})
	return lx, lxx
}

// singleRigidBody plans the CoM and the base orientation of the robot lumped into one rigid body.
type singleRigidBody struct {
	cfg     SRBConfig
	mass    float64
	inertia r3.Vector
	steps   int
	problem *srbProblem
	solver  *ddp.Solver
	logger  logging.Logger
}

func newSingleRigidBody(cfg SRBConfig, mass float64, inertia r3.Vector, logger logging.Logger) (*singleRigidBody, error) {
	if inertia.X <= 0 || inertia.Y <= 0 || inertia.Z <= 0 {
		return nil, errors.Errorf("moment of inertia must be positive, got %v", inertia)
	}
	steps := horizonSteps(cfg.HorizonDuration, cfg.HorizonDt)
	problem := &srbProblem{cfg: cfg, mass: mass, inertia: inertia}
	solverCfg := ddp.DefaultConfig(steps)
	solverCfg.MaxIter = cfg.MaxIter
	solverCfg.HasInputLowerBound = true
	solver, err := ddp.NewSolver(problem, solverCfg)
	if err != nil {
		return nil, err
	}
	return &singleRigidBody{
		cfg:     cfg,
		mass:    mass,
		inertia: inertia,
		steps:   steps,
		problem: problem,
		solver:  solver,
		logger:  logger,
	}, nil
}

func (s *singleRigidBody) Method() Method { return MethodSRB }

// Solver exposes the solver for monitoring.
func (s *singleRigidBody) Solver() *ddp.Solver { return s.solver }

func (s *singleRigidBody) Plan(p *Problem) (PlannedStep, error) {
	h := newHorizonData(p, s.cfg.HorizonDt, s.steps)
	rpy0 := spatialmath.RPYFromQuat(p.Pose.Orientation)
	s.problem.horizon = h
	s.problem.refRpy = make([]r3.Vector, len(h.refs))
	prev := rpy0
	for k, ref := range h.refs {
		s.problem.refRpy[k] = unwrapAngles(spatialmath.RPYFromQuat(ref.Orientation), prev)
		prev = s.problem.refRpy[k]
	}

	x0 := mat.NewVecDense(srbStateDim, nil)
	setVec3(x0, 0, p.Pose.Point)
	setVec3(x0, 3, rpy0)
	setVec3(x0, 6, p.Vel.Linear)
	setVec3(x0, 9, p.Vel.Angular)
	if err := s.solver.Solve(p.T, x0, s.solver.InputList()); err != nil {
		return PlannedStep{}, err
	}

	var wrench spatialmath.ForceVec
	if u0 := s.solver.InputList()[0]; u0 != nil {
		wrench.Force, wrench.Moment = totalForce(h.vertices[0], h.dirs[0], u0, p.Pose.Point)
	}
	omega := p.PlannedVel.Angular
	momentum := spatialmath.ForceVec{
		Moment: spatialmath.MulElem(s.inertia, omega),
		Force:  p.PlannedVel.Linear.Mul(s.mass),
	}
	return PlannedStep{
		Wrench:   wrench,
		Momentum: momentum,
		Accel: spatialmath.MotionVec{
			Angular: spatialmath.DivElem(wrench.Moment.Sub(omega.Cross(momentum.Moment)), s.inertia),
			Linear:  wrench.Force.Mul(1 / s.mass).Sub(gravityVec),
		},
	}, nil
}
