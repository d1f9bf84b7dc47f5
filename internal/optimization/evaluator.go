package optimization

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Evaluation is the objective's value, gradient and Hessian at one point.
// Hessian is nil when it was not requested or the evaluator cannot supply it.
type Evaluation struct {
	Value    float64
	Gradient *mat.VecDense
	Hessian  *mat.SymDense
}

// Evaluator is the objective function as seen by the engine. Implementations
// must be deterministic and free of side effects.
type Evaluator interface {
	// Evaluate returns value and gradient at x, and the Hessian when
	// hessian is true and the objective provides one.
	Evaluate(x mat.Vector, hessian bool) Evaluation

	// Value returns the objective value at x.
	Value(x mat.Vector) float64

	// Gradient returns the gradient at x, or nil if unavailable.
	Gradient(x mat.Vector) *mat.VecDense
}

// Dimensioned is implemented by evaluators that accept a fixed dimension.
// A Dim of zero means any dimension is accepted.
type Dimensioned interface {
	Dim() int
}

// Function adapts plain closures over []float64 to the Evaluator interface.
// Grad and Hess may be nil.
type Function struct {
	Func func(x []float64) float64
	Grad func(grad, x []float64)
	Hess func(hess *mat.SymDense, x []float64)
}

// FromProblem adapts a gonum optimize.Problem.
func FromProblem(p optimize.Problem) Function {
	return Function{Func: p.Func, Grad: p.Grad, Hess: p.Hess}
}

// Validate reports whether f can be evaluated.
func (f Function) Validate() error {
	if f.Func == nil {
		return NewError("objective function is nil").WithComponent("evaluator")
	}
	return nil
}

func (f Function) Value(x mat.Vector) float64 {
	return f.Func(toSlice(x))
}

func (f Function) Gradient(x mat.Vector) *mat.VecDense {
	if f.Grad == nil {
		return nil
	}
	xs := toSlice(x)
	grad := make([]float64, len(xs))
	f.Grad(grad, xs)
	return mat.NewVecDense(len(grad), grad)
}

func (f Function) Evaluate(x mat.Vector, hessian bool) Evaluation {
	xs := toSlice(x)
	eval := Evaluation{Value: f.Func(xs)}
	if f.Grad != nil {
		grad := make([]float64, len(xs))
		f.Grad(grad, xs)
		eval.Gradient = mat.NewVecDense(len(grad), grad)
	}
	if hessian && f.Hess != nil {
		eval.Hessian = mat.NewSymDense(len(xs), nil)
		f.Hess(eval.Hessian, xs)
	}
	return eval
}

// countingEvaluator tallies calls into a run's Stats.
type countingEvaluator struct {
	Evaluator
	stats *Stats
}

func (c *countingEvaluator) Evaluate(x mat.Vector, hessian bool) Evaluation {
	c.stats.FullEvaluations++
	return c.Evaluator.Evaluate(x, hessian)
}

func (c *countingEvaluator) Value(x mat.Vector) float64 {
	c.stats.ValueEvaluations++
	return c.Evaluator.Value(x)
}

func (c *countingEvaluator) Gradient(x mat.Vector) *mat.VecDense {
	c.stats.GradientEvaluations++
	return c.Evaluator.Gradient(x)
}

// toSlice copies a vector into a fresh slice so evaluators can never alias
// the engine's iterate.
func toSlice(x mat.Vector) []float64 {
	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out
}
