package optimization_test

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/descent/internal/optimization"
)

// assertFloat64SlicesEqual checks if two float64 slices are approximately equal
func assertFloat64SlicesEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Fatalf("at index %d: got %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// assertArmijo checks the sufficient-decrease condition at alpha.
func assertArmijo(t *testing.T, ev optimization.Evaluator, x, p *mat.VecDense, alpha, c float64) {
	t.Helper()

	trial := mat.NewVecDense(x.Len(), nil)
	trial.AddScaledVec(x, alpha, p)
	lhs := ev.Value(trial)
	rhs := ev.Value(x) + c*alpha*mat.Dot(ev.Gradient(x), p)
	if lhs > rhs {
		t.Fatalf("armijo condition violated at alpha=%v: %v > %v", alpha, lhs, rhs)
	}
}

// fixedStrategy returns a preset direction and never terminates on its own.
type fixedStrategy struct {
	direction []float64
}

func (s fixedStrategy) Name() string { return "Fixed" }

func (s fixedStrategy) NextDirection(optimization.State) (*mat.VecDense, bool) {
	return mat.NewVecDense(len(s.direction), append([]float64(nil), s.direction...)), true
}

func (s fixedStrategy) ShouldTerminate(optimization.Evaluator, optimization.State, *mat.VecDense, *mat.VecDense, float64) bool {
	return false
}

// failingAfter delegates to gradient descent and gives up on call k.
type failingAfter struct {
	k     int
	calls *int
}

func (s failingAfter) Name() string { return "FailingAfter" }

func (s failingAfter) NextDirection(st optimization.State) (*mat.VecDense, bool) {
	defer func() { *s.calls++ }()
	if *s.calls == s.k {
		return nil, false
	}
	return optimization.GradientDescent{}.NextDirection(st)
}

func (s failingAfter) ShouldTerminate(ev optimization.Evaluator, st optimization.State, next, p *mat.VecDense, tol float64) bool {
	return optimization.GradientDescent{}.ShouldTerminate(ev, st, next, p, tol)
}

func symmetric(n int, data ...float64) *mat.SymDense {
	return mat.NewSymDense(n, data)
}
