package functions

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

func checkDerivatives(t *testing.T, obj Objective, points [][]float64) {
	t.Helper()

	f := func(x []float64) float64 { return obj.Value(mat.NewVecDense(len(x), x)) }
	for _, pt := range points {
		x := mat.NewVecDense(len(pt), append([]float64(nil), pt...))
		eval := obj.Evaluate(x, true)

		assert.InDelta(t, obj.Value(x), eval.Value, 1e-12)

		grad := fd.Gradient(nil, f, pt, &fd.Settings{Formula: fd.Central})
		for i, want := range grad {
			assert.InDelta(t, want, eval.Gradient.AtVec(i), 1e-4*math.Max(1, math.Abs(want)),
				"%s gradient[%d] at %v", obj.Name(), i, pt)
		}

		hess := mat.NewSymDense(len(pt), nil)
		fd.Hessian(hess, f, pt, nil)
		n := len(pt)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := hess.At(i, j)
				assert.InDelta(t, want, eval.Hessian.At(i, j), 1e-2*math.Max(1, math.Abs(want)),
					"%s hessian[%d,%d] at %v", obj.Name(), i, j, pt)
			}
		}
	}
}

func TestDerivatives(t *testing.T) {
	points := [][]float64{{-1, 2}, {0.3, -0.4}, {1, 1}}

	checkDerivatives(t, Rosenbrock{}, points)
	checkDerivatives(t, Exponential{}, points)
	checkDerivatives(t, NewLinear([]float64{3, -1}), points)
	checkDerivatives(t, NewQuadratic(mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})), points)
}

func TestKnownValues(t *testing.T) {
	x := mat.NewVecDense(2, []float64{-1, 2})
	assert.Equal(t, 104.0, Rosenbrock{}.Value(x))

	assert.Equal(t, 0.0, Rosenbrock{}.Value(mat.NewVecDense(2, []float64{1, 1})))

	xmin := mat.NewVecDense(2, []float64{-math.Ln2 / 2, 0})
	g := Exponential{}.Gradient(xmin)
	assert.InDelta(t, 0, g.AtVec(0), 1e-12)
	assert.InDelta(t, 0, g.AtVec(1), 1e-12)
	assert.InDelta(t, 2*math.Sqrt(2)*math.Exp(-0.1), Exponential{}.Value(xmin), 1e-12)

	q := NewQuadratic(mat.NewSymDense(2, []float64{1, 0, 0, 1}))
	assert.Equal(t, 25.0, q.Value(mat.NewVecDense(2, []float64{3, 4})))
}

func TestEvaluateWithoutHessian(t *testing.T) {
	objectives := []Objective{
		Rosenbrock{},
		Exponential{},
		NewLinear([]float64{1, 1}),
		NewQuadratic(mat.NewSymDense(2, []float64{1, 0, 0, 1})),
	}
	x := mat.NewVecDense(2, []float64{0.5, 0.5})
	for _, obj := range objectives {
		eval := obj.Evaluate(x, false)
		assert.Nil(t, eval.Hessian, obj.Name())
		assert.NotNil(t, eval.Gradient, obj.Name())
	}
}

func TestLinearHessianIsZero(t *testing.T) {
	l := NewLinear([]float64{1, 2, 3})
	eval := l.Evaluate(mat.NewVecDense(3, nil), true)
	require.NotNil(t, eval.Hessian)
	assert.Equal(t, 3, eval.Hessian.SymmetricDim())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Zero(t, eval.Hessian.At(i, j))
		}
	}
}

func TestNewLinearCopiesCoefficients(t *testing.T) {
	c := []float64{1, 2}
	l := NewLinear(c)
	c[0] = 99
	assert.Equal(t, 1.0, l.C.AtVec(0))
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		obj     string
		params  []float64
		dim     int
		wantArg string
		wantDim int
	}{
		{name: "rosenbrock", obj: "rosenbrock", dim: 2, wantDim: 2},
		{name: "case and space insensitive", obj: "  Rosenbrock ", dim: 2, wantDim: 2},
		{name: "exponential", obj: "exponential", dim: 2, wantDim: 2},
		{name: "identity quadratic", obj: "quadratic", dim: 3, wantDim: 3},
		{name: "explicit quadratic", obj: "quadratic", params: []float64{2, 1, 1, 2}, dim: 2, wantDim: 2},
		{name: "default linear", obj: "linear", dim: 4, wantDim: 4},
		{name: "explicit linear", obj: "linear", params: []float64{1, -1}, dim: 2, wantDim: 2},
		{name: "unknown objective", obj: "himmelblau", dim: 2, wantArg: "objective"},
		{name: "zero dimension", obj: "quadratic", dim: 0, wantArg: "dim"},
		{name: "rosenbrock wrong dimension", obj: "rosenbrock", dim: 3, wantArg: "x0"},
		{name: "quadratic wrong size", obj: "quadratic", params: []float64{1, 0, 0}, dim: 2, wantArg: "params"},
		{name: "quadratic asymmetric", obj: "quadratic", params: []float64{1, 2, 3, 4}, dim: 2, wantArg: "params"},
		{name: "linear wrong size", obj: "linear", params: []float64{1}, dim: 2, wantArg: "params"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := Lookup(tt.obj, tt.params, tt.dim)
			if tt.wantArg != "" {
				require.Error(t, err)
				var argErr *optimization.ErrInvalidArgument
				require.True(t, errors.As(err, &argErr))
				assert.Equal(t, tt.wantArg, argErr.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDim, obj.Dim())
		})
	}
}

func TestLookupDefaults(t *testing.T) {
	obj, err := Lookup("quadratic", nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 13.0, obj.Value(mat.NewVecDense(2, []float64{2, 3})))

	obj, err = Lookup("linear", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 6.0, obj.Value(mat.NewVecDense(3, []float64{1, 2, 3})))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"exponential", "linear", "quadratic", "rosenbrock"}, Names())
}

func TestNewtonReachesClosedFormMinimum(t *testing.T) {
	engine := optimization.MustNewEngine(optimization.DefaultSettings())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	result, err := engine.Minimize(ctx, Exponential{}, optimization.Newton{}, []float64{1, 1}, 100)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.InDelta(t, -math.Ln2/2, result.X[0], 1e-6)
	assert.InDelta(t, 0, result.X[1], 1e-6)
}
