package optimization

import (
	"gonum.org/v1/gonum/mat"
)

// Backtrack finds the first alpha in 1, r, r², … with
//
//	f(x + alpha·p) <= f(x) + c·alpha·∇f(x)ᵀp
//
// where c is wolfe and r is shrink. It reports the number of shrinks taken.
// A maxBacktracks of zero leaves the search unbounded: p must then be a
// descent direction or the search never returns. With a positive bound the
// search gives up with ErrLineSearchFailed.
func Backtrack(ev Evaluator, x, p mat.Vector, wolfe, shrink float64, maxBacktracks int) (float64, int, error) {
	g := ev.Gradient(x)
	if g == nil {
		return 0, 0, NewError("gradient unavailable").WithOperation("Backtrack").WithComponent("line_search")
	}
	alpha, shrinks, ok := backtrack(ev, x, p, ev.Value(x), g, wolfe, shrink, maxBacktracks)
	if !ok {
		return alpha, shrinks, ErrLineSearchFailed
	}
	return alpha, shrinks, nil
}

// backtrack is the search proper, given f(x) and ∇f(x) already computed by
// the caller.
func backtrack(ev Evaluator, x, p mat.Vector, fx float64, g mat.Vector, wolfe, shrink float64, maxBacktracks int) (float64, int, bool) {
	slope := mat.Dot(g, p)
	trial := mat.NewVecDense(x.Len(), nil)

	alpha := 1.0
	for shrinks := 0; ; shrinks++ {
		trial.AddScaledVec(x, alpha, p)
		if ev.Value(trial) <= fx+wolfe*alpha*slope {
			return alpha, shrinks, true
		}
		if maxBacktracks > 0 && shrinks >= maxBacktracks {
			return alpha, shrinks, false
		}
		alpha *= shrink
	}
}
