// Package functions provides analytic test objectives with exact gradients
// and Hessians.
package functions

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// Objective is an Evaluator that also describes itself.
type Objective interface {
	optimization.Evaluator
	optimization.Dimensioned
	Name() string
}

// Quadratic is f(x) = xᵀAx for a symmetric matrix A.
type Quadratic struct {
	A *mat.SymDense
}

// NewQuadratic returns the quadratic form of a.
func NewQuadratic(a *mat.SymDense) *Quadratic {
	return &Quadratic{A: a}
}

func (q *Quadratic) Name() string { return "quadratic" }

func (q *Quadratic) Dim() int { return q.A.SymmetricDim() }

func (q *Quadratic) Value(x mat.Vector) float64 {
	return mat.Inner(x, q.A, x)
}

func (q *Quadratic) Gradient(x mat.Vector) *mat.VecDense {
	g := mat.NewVecDense(x.Len(), nil)
	g.MulVec(q.A, x)
	g.ScaleVec(2, g)
	return g
}

func (q *Quadratic) Evaluate(x mat.Vector, hessian bool) optimization.Evaluation {
	eval := optimization.Evaluation{Value: q.Value(x), Gradient: q.Gradient(x)}
	if hessian {
		n := q.Dim()
		h := mat.NewSymDense(n, nil)
		h.ScaleSym(2, q.A)
		eval.Hessian = h
	}
	return eval
}

// Rosenbrock is f(x, y) = 100(y − x²)² + (1 − x)², minimised at (1, 1).
type Rosenbrock struct{}

func (Rosenbrock) Name() string { return "rosenbrock" }

func (Rosenbrock) Dim() int { return 2 }

func (Rosenbrock) Value(v mat.Vector) float64 {
	x, y := v.AtVec(0), v.AtVec(1)
	a := y - x*x
	b := 1 - x
	return 100*a*a + b*b
}

func (Rosenbrock) Gradient(v mat.Vector) *mat.VecDense {
	x, y := v.AtVec(0), v.AtVec(1)
	a := y - x*x
	return mat.NewVecDense(2, []float64{
		-400*x*a - 2*(1-x),
		200 * a,
	})
}

func (r Rosenbrock) Evaluate(v mat.Vector, hessian bool) optimization.Evaluation {
	eval := optimization.Evaluation{Value: r.Value(v), Gradient: r.Gradient(v)}
	if hessian {
		x, y := v.AtVec(0), v.AtVec(1)
		eval.Hessian = mat.NewSymDense(2, []float64{
			1200*x*x - 400*y + 2, -400 * x,
			-400 * x, 200,
		})
	}
	return eval
}

// Linear is f(x) = cᵀx. It has no minimum; its Hessian is zero.
type Linear struct {
	C *mat.VecDense
}

// NewLinear returns the linear function with coefficients c.
func NewLinear(c []float64) *Linear {
	return &Linear{C: mat.NewVecDense(len(c), append([]float64(nil), c...))}
}

func (l *Linear) Name() string { return "linear" }

func (l *Linear) Dim() int { return l.C.Len() }

func (l *Linear) Value(x mat.Vector) float64 {
	return mat.Dot(l.C, x)
}

func (l *Linear) Gradient(mat.Vector) *mat.VecDense {
	return mat.VecDenseCopyOf(l.C)
}

func (l *Linear) Evaluate(x mat.Vector, hessian bool) optimization.Evaluation {
	eval := optimization.Evaluation{Value: l.Value(x), Gradient: l.Gradient(x)}
	if hessian {
		eval.Hessian = mat.NewSymDense(l.Dim(), nil)
	}
	return eval
}

// Exponential is f(x, y) = e^(x+3y−0.1) + e^(x−3y−0.1) + e^(−x−0.1), a smooth
// strictly convex function minimised at (−ln2/2, 0).
type Exponential struct{}

func (Exponential) Name() string { return "exponential" }

func (Exponential) Dim() int { return 2 }

func (Exponential) terms(v mat.Vector) (a, b, c float64) {
	x, y := v.AtVec(0), v.AtVec(1)
	return math.Exp(x + 3*y - 0.1), math.Exp(x - 3*y - 0.1), math.Exp(-x - 0.1)
}

func (e Exponential) Value(v mat.Vector) float64 {
	a, b, c := e.terms(v)
	return a + b + c
}

func (e Exponential) Gradient(v mat.Vector) *mat.VecDense {
	a, b, c := e.terms(v)
	return mat.NewVecDense(2, []float64{a + b - c, 3*a - 3*b})
}

func (e Exponential) Evaluate(v mat.Vector, hessian bool) optimization.Evaluation {
	a, b, c := e.terms(v)
	eval := optimization.Evaluation{
		Value:    a + b + c,
		Gradient: mat.NewVecDense(2, []float64{a + b - c, 3*a - 3*b}),
	}
	if hessian {
		eval.Hessian = mat.NewSymDense(2, []float64{
			a + b + c, 3*a - 3*b,
			3*a - 3*b, 9*a + 9*b,
		})
	}
	return eval
}

// builders construct an objective of dimension dim from optional params.
var builders = map[string]func(params []float64, dim int) (Objective, error){
	"quadratic": func(params []float64, dim int) (Objective, error) {
		if len(params) == 0 {
			a := mat.NewSymDense(dim, nil)
			for i := 0; i < dim; i++ {
				a.SetSym(i, i, 1)
			}
			return NewQuadratic(a), nil
		}
		if len(params) != dim*dim {
			return nil, &optimization.ErrInvalidArgument{
				Name:    "params",
				Value:   params,
				Message: "quadratic expects a row-major n×n matrix matching x0",
			}
		}
		for i := 0; i < dim; i++ {
			for j := i + 1; j < dim; j++ {
				if params[i*dim+j] != params[j*dim+i] {
					return nil, &optimization.ErrInvalidArgument{
						Name:    "params",
						Value:   params,
						Message: "quadratic matrix must be symmetric",
					}
				}
			}
		}
		return NewQuadratic(mat.NewSymDense(dim, append([]float64(nil), params...))), nil
	},
	"rosenbrock": func(_ []float64, _ int) (Objective, error) {
		return Rosenbrock{}, nil
	},
	"linear": func(params []float64, dim int) (Objective, error) {
		if len(params) == 0 {
			c := make([]float64, dim)
			for i := range c {
				c[i] = 1
			}
			return NewLinear(c), nil
		}
		if len(params) != dim {
			return nil, &optimization.ErrInvalidArgument{
				Name:    "params",
				Value:   params,
				Message: "linear expects one coefficient per dimension",
			}
		}
		return NewLinear(params), nil
	},
	"exponential": func(_ []float64, _ int) (Objective, error) {
		return Exponential{}, nil
	},
}

// Lookup builds the named objective for points of dimension dim.
func Lookup(name string, params []float64, dim int) (Objective, error) {
	build, ok := builders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, &optimization.ErrInvalidArgument{
			Name:    "objective",
			Value:   name,
			Message: "expected one of " + strings.Join(Names(), ", "),
		}
	}
	if dim < 1 {
		return nil, &optimization.ErrInvalidArgument{Name: "dim", Value: dim, Message: "must be positive"}
	}
	obj, err := build(params, dim)
	if err != nil {
		return nil, err
	}
	if obj.Dim() != dim {
		return nil, &optimization.ErrInvalidArgument{
			Name:    "x0",
			Value:   dim,
			Message: obj.Name() + " is defined on dimension " + strconv.Itoa(obj.Dim()),
		}
	}
	return obj, nil
}

// Names lists the catalogue in sorted order.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
