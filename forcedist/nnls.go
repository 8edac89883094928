package forcedist

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// NNLS solves min ||A x - b||^2 subject to x >= 0 with the Lawson-Hanson active set method.
func NNLS(a *mat.Dense, b *mat.VecDense, maxIter int) (*mat.VecDense, error) {
	rows, cols := a.Dims()
	if b.Len() != rows {
		return nil, errors.Errorf("nnls dimension mismatch: A is %dx%d, b has %d rows", rows, cols, b.Len())
	}
	if maxIter <= 0 {
		maxIter = 3 * cols
	}
	const tol = 1e-10

	x := mat.NewVecDense(cols, nil)
	passive := make([]bool, cols)
	grad := mat.NewVecDense(cols, nil)
	resid := mat.NewVecDense(rows, nil)

	updateGrad := func() {
		resid.MulVec(a, x)
		resid.SubVec(b, resid)
		grad.MulVec(a.T(), resid)
	}

	for iter := 0; ; iter++ {
		updateGrad()
		best, bestIdx := tol, -1
		for j := 0; j < cols; j++ {
			if !passive[j] && grad.AtVec(j) > best {
				best, bestIdx = grad.AtVec(j), j
			}
		}
		if bestIdx < 0 {
			return x, nil
		}
		if iter >= maxIter {
			return x, errors.Errorf("nnls did not converge in %d iterations", maxIter)
		}
		passive[bestIdx] = true

		for {
			z, err := solvePassive(a, b, passive)
			if err != nil {
				return x, err
			}
			alpha := math.Inf(1)
			for j := 0; j < cols; j++ {
				if passive[j] && z.AtVec(j) <= tol {
					if denom := x.AtVec(j) - z.AtVec(j); denom > 0 {
						alpha = math.Min(alpha, x.AtVec(j)/denom)
					} else {
						alpha = 0
					}
				}
			}
			if math.IsInf(alpha, 1) {
				x.CopyVec(z)
				break
			}
			for j := 0; j < cols; j++ {
				if passive[j] {
					x.SetVec(j, x.AtVec(j)+alpha*(z.AtVec(j)-x.AtVec(j)))
					if x.AtVec(j) <= tol {
						x.SetVec(j, 0)
						passive[j] = false
					}
				}
			}
		}
	}
}

// solvePassive solves the unconstrained least squares problem over the passive columns and returns
// a full-length vector that is zero on the active columns.
func solvePassive(a *mat.Dense, b *mat.VecDense, passive []bool) (*mat.VecDense, error) {
	rows, cols := a.Dims()
	var idx []int
	for j, p := range passive {
		if p {
			idx = append(idx, j)
		}
	}
	z := mat.NewVecDense(cols, nil)
	if len(idx) == 0 {
		return z, nil
	}
	sub := mat.NewDense(rows, len(idx), nil)
	for k, j := range idx {
		for i := 0; i < rows; i++ {
			sub.Set(i, k, a.At(i, j))
		}
	}
	var sol mat.VecDense
	if err := sol.SolveVec(sub, b); err != nil {
		return nil, errors.Wrap(err, "nnls least squares step")
	}
	for k, j := range idx {
		z.SetVec(j, sol.AtVec(k))
	}
	return z, nil
}
