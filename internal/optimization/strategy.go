package optimization

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// State is the engine's current iterate together with its evaluation.
// Strategies must treat it as read-only.
type State struct {
	X *mat.VecDense
	Evaluation
}

// Strategy supplies descent directions and a strategy-specific stopping test.
// Implementations hold no state across iterations.
type Strategy interface {
	// Name identifies the strategy in run results.
	Name() string

	// NextDirection returns a descent direction at s, or false when the
	// strategy cannot proceed from this point.
	NextDirection(s State) (*mat.VecDense, bool)

	// ShouldTerminate reports whether the step from s.X to next along p is
	// small enough, by the strategy's own measure, to stop.
	ShouldTerminate(ev Evaluator, s State, next, p *mat.VecDense, objTol float64) bool
}

// SecondOrder is implemented by strategies that need the Hessian.
type SecondOrder interface {
	RequiresHessian() bool
}

// GradientDescent steps along the negative gradient.
type GradientDescent struct{}

func (GradientDescent) Name() string { return "GradientDescent" }

func (GradientDescent) NextDirection(s State) (*mat.VecDense, bool) {
	if s.Gradient == nil || !finiteVec(s.Gradient) {
		return nil, false
	}
	p := mat.NewVecDense(s.Gradient.Len(), nil)
	p.ScaleVec(-1, s.Gradient)
	return p, true
}

// ShouldTerminate measures the actual decrease, which costs one extra
// objective evaluation at next.
func (GradientDescent) ShouldTerminate(ev Evaluator, s State, next, _ *mat.VecDense, objTol float64) bool {
	return math.Abs(s.Value-ev.Value(next)) < objTol
}

// Newton steps along the solution of H·p = -g.
type Newton struct{}

func (Newton) Name() string { return "Newton" }

func (Newton) RequiresHessian() bool { return true }

// NextDirection solves the Newton system with a Cholesky factorisation and
// falls back to LU when the Hessian is not positive definite. A singular or
// ill-conditioned system, or a solution that is not a descent direction,
// yields no direction.
func (Newton) NextDirection(s State) (*mat.VecDense, bool) {
	if s.Hessian == nil || s.Gradient == nil {
		return nil, false
	}
	n := s.Gradient.Len()
	if r, _ := s.Hessian.Dims(); r != n {
		return nil, false
	}

	rhs := mat.NewVecDense(n, nil)
	rhs.ScaleVec(-1, s.Gradient)
	p := mat.NewVecDense(n, nil)

	var chol mat.Cholesky
	if chol.Factorize(s.Hessian) {
		if err := chol.SolveVecTo(p, rhs); err != nil {
			return nil, false
		}
	} else {
		var lu mat.LU
		lu.Factorize(s.Hessian)
		if err := lu.SolveVecTo(p, false, rhs); err != nil {
			return nil, false
		}
	}

	if !finiteVec(p) {
		return nil, false
	}
	// A zero gradient gives p = 0, which is a valid (stationary) step.
	if mat.Dot(s.Gradient, p) >= 0 && mat.Norm(p, 2) > 0 {
		return nil, false
	}
	return p, true
}

// ShouldTerminate tests the Newton decrement ½·pᵀHp, which needs no extra
// evaluation.
func (Newton) ShouldTerminate(_ Evaluator, s State, _, p *mat.VecDense, objTol float64) bool {
	if s.Hessian == nil {
		return false
	}
	return 0.5*mat.Inner(p, s.Hessian, p) < objTol
}

// StrategyByName resolves a strategy from its name or short alias.
func StrategyByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gd", "gradient-descent", "gradientdescent", "gradient_descent":
		return GradientDescent{}, nil
	case "newton":
		return Newton{}, nil
	default:
		return nil, &ErrInvalidArgument{
			Name:    "strategy",
			Value:   name,
			Message: "expected one of gd, newton",
		}
	}
}

func requiresHessian(s Strategy) bool {
	so, ok := s.(SecondOrder)
	return ok && so.RequiresHessian()
}

func finiteVec(v *mat.VecDense) bool {
	raw := v.RawVector()
	if raw.Inc == 1 {
		return finiteSlice(raw.Data[:v.Len()])
	}
	return finiteSlice(toSlice(v))
}

func finiteSlice(s []float64) bool {
	sum := floats.Sum(s)
	if !math.IsNaN(sum) && !math.IsInf(sum, 0) {
		return true
	}
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
