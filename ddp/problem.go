// Package ddp implements a bounded-iteration iterative LQR (differential dynamic programming) solver over
// a time-varying input dimension.
package ddp

import (
	"gonum.org/v1/gonum/mat"
)

// CostDeriv holds the first and second derivatives of a running cost. Lux may be nil when the cost has no
// cross term.
type CostDeriv struct {
	Lx  *mat.VecDense
	Lu  *mat.VecDense
	Lxx *mat.Dense
	Luu *mat.Dense
	Lux *mat.Dense
}

// Problem is a discrete-time optimal control problem. Times are absolute; step k of a horizon starting
// at t0 is at t0 + k*Dt(). When InputDim(t) is zero the input vector is nil and input derivatives are
// ignored.
type Problem interface {
	StateDim() int
	// InputDim may change over time, for instance with the number of active contacts.
	InputDim(t float64) int
	Dt() float64

	StateEq(t float64, x, u *mat.VecDense) *mat.VecDense
	// StateEqDeriv returns the Jacobians of StateEq. Implementations without analytic derivatives can
	// return FiniteDiff(p, t, x, u).
	StateEqDeriv(t float64, x, u *mat.VecDense) (fx, fu *mat.Dense)

	RunningCost(t float64, x, u *mat.VecDense) float64
	RunningCostDeriv(t float64, x, u *mat.VecDense) CostDeriv
	TerminalCost(t float64, x *mat.VecDense) float64
	TerminalCostDeriv(t float64, x *mat.VecDense) (lx *mat.VecDense, lxx *mat.Dense)
}

const finiteDiffEps = 1e-6

// FiniteDiff returns central-difference Jacobians of p.StateEq.
func FiniteDiff(p Problem, t float64, x, u *mat.VecDense) (fx, fu *mat.Dense) {
	n := x.Len()
	fx = mat.NewDense(n, n, nil)

	xp := mat.VecDenseCopyOf(x)
	for j := 0; j < n; j++ {
		orig := xp.AtVec(j)
		xp.SetVec(j, orig+finiteDiffEps)
		plus := p.StateEq(t, xp, u)
		xp.SetVec(j, orig-finiteDiffEps)
		minus := p.StateEq(t, xp, u)
		xp.SetVec(j, orig)
		for i := 0; i < n; i++ {
			fx.Set(i, j, (plus.AtVec(i)-minus.AtVec(i))/(2*finiteDiffEps))
		}
	}
	if u == nil || u.Len() == 0 {
		return fx, nil
	}
	m := u.Len()
	fu = mat.NewDense(n, m, nil)
	up := mat.VecDenseCopyOf(u)
	for j := 0; j < m; j++ {
		orig := up.AtVec(j)
		up.SetVec(j, orig+finiteDiffEps)
		plus := p.StateEq(t, x, up)
		up.SetVec(j, orig-finiteDiffEps)
		minus := p.StateEq(t, x, up)
		up.SetVec(j, orig)
		for i := 0; i < n; i++ {
			fu.Set(i, j, (plus.AtVec(i)-minus.AtVec(i))/(2*finiteDiffEps))
		}
	}
	return fx, fu
}
