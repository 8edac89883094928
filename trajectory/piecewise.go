package trajectory

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

type piece struct {
	end float64
	fn  VectorFunc
}

// PiecewiseFunc chains VectorFuncs, each valid up to its end time. Evaluation selects the first
// piece whose end time is not before t; times past the last end use the last piece.
type PiecewiseFunc struct {
	pieces []piece
}

// NewPiecewiseFunc returns an empty piecewise function.
func NewPiecewiseFunc() *PiecewiseFunc {
	return &PiecewiseFunc{}
}

// Append adds fn as the piece ending at end. Pieces may be appended in any order.
func (p *PiecewiseFunc) Append(end float64, fn VectorFunc) {
	idx := sort.Search(len(p.pieces), func(i int) bool { return p.pieces[i].end >= end })
	if idx < len(p.pieces) && p.pieces[idx].end == end {
		p.pieces[idx].fn = fn
		return
	}
	p.pieces = append(p.pieces, piece{})
	copy(p.pieces[idx+1:], p.pieces[idx:])
	p.pieces[idx] = piece{end: end, fn: fn}
}

func (p *PiecewiseFunc) at(t float64) VectorFunc {
	idx := sort.Search(len(p.pieces), func(i int) bool { return p.pieces[i].end >= t })
	if idx == len(p.pieces) {
		idx--
	}
	return p.pieces[idx].fn
}

// Value evaluates the active piece. It panics when no piece was appended.
func (p *PiecewiseFunc) Value(t float64) r3.Vector {
	return p.at(t).Value(t)
}

// Derivative evaluates the derivative of the active piece.
func (p *PiecewiseFunc) Derivative(t float64, order int) r3.Vector {
	return p.at(t).Derivative(t, order)
}

// Domain spans from the first piece's start to the last end.
func (p *PiecewiseFunc) Domain() (float64, float64) {
	if len(p.pieces) == 0 {
		return posInf, negInf
	}
	start, _ := p.pieces[0].fn.Domain()
	return start, p.pieces[len(p.pieces)-1].end
}
