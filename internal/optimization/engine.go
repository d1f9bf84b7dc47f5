package optimization

import (
	"context"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const component = "engine"

// Settings holds the tolerances and line-search constants fixed for the
// lifetime of an Engine.
type Settings struct {
	// ObjTol is the absolute tolerance of the strategy's termination test.
	ObjTol float64
	// ParamTol is the absolute tolerance on the Euclidean step norm.
	ParamTol float64
	// WolfeConst is the sufficient-decrease constant, in (0, 1).
	WolfeConst float64
	// BacktrackingConst is the step shrink factor, in (0, 1).
	BacktrackingConst float64
	// MaxBacktracks bounds the line search; zero means unbounded.
	MaxBacktracks int
}

// DefaultSettings returns the settings used when none are supplied.
func DefaultSettings() Settings {
	return Settings{
		ObjTol:            1e-12,
		ParamTol:          1e-8,
		WolfeConst:        0.01,
		BacktrackingConst: 0.5,
	}
}

// Validate checks every field against its allowed range.
func (s Settings) Validate() error {
	if !(s.ObjTol > 0) || math.IsInf(s.ObjTol, 1) {
		return &ErrInvalidArgument{Name: "ObjTol", Value: s.ObjTol, Message: "must be positive and finite"}
	}
	if !(s.ParamTol > 0) || math.IsInf(s.ParamTol, 1) {
		return &ErrInvalidArgument{Name: "ParamTol", Value: s.ParamTol, Message: "must be positive and finite"}
	}
	if !(s.WolfeConst > 0 && s.WolfeConst < 1) {
		return &ErrInvalidArgument{Name: "WolfeConst", Value: s.WolfeConst, Message: "outside allowed range (0, 1)"}
	}
	if !(s.BacktrackingConst > 0 && s.BacktrackingConst < 1) {
		return &ErrInvalidArgument{Name: "BacktrackingConst", Value: s.BacktrackingConst, Message: "outside allowed range (0, 1)"}
	}
	if s.MaxBacktracks < 0 {
		return &ErrInvalidArgument{Name: "MaxBacktracks", Value: s.MaxBacktracks, Message: "must not be negative"}
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-iteration tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.Named(component)
		}
	}
}

// Engine runs descent strategies with a backtracking line search. It keeps
// no per-run state, so one Engine may serve concurrent Minimize calls.
type Engine struct {
	settings Settings
	logger   *zap.Logger
}

var _ Minimizer = (*Engine)(nil)

// NewEngine creates an Engine after validating settings.
func NewEngine(settings Settings, opts ...Option) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, WrapError(err, "invalid settings").WithOperation("NewEngine").WithComponent(component)
	}
	e := &Engine{
		settings: settings,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustNewEngine is like NewEngine but panics on invalid settings.
func MustNewEngine(settings Settings, opts ...Option) *Engine {
	e, err := NewEngine(settings, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Settings returns the engine's settings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Minimize runs strategy from x0 until it converges, the strategy cannot
// produce a direction, the bounded line search fails, or maxIterations update
// steps have been taken. Every such outcome is reported through the Result;
// an error is returned only for invalid arguments or when ctx is done.
//
// When a step meets a stopping test the loop evaluates and records the new
// point once more before exiting, so a converged trajectory ends at the
// accepted iterate and has Iterations+1 entries. An exhausted run reports
// maxIterations and its trajectory has maxIterations+1 entries; the step
// computed on the last pass is discarded.
func (e *Engine) Minimize(ctx context.Context, ev Evaluator, strategy Strategy, x0 []float64, maxIterations int) (*Result, error) {
	const op = "Engine.Minimize"

	if err := validateRun(ev, strategy, x0, maxIterations); err != nil {
		return nil, WrapError(err, "invalid arguments").WithOperation(op).WithComponent(component)
	}

	n := len(x0)
	stats := &Stats{}
	counted := &countingEvaluator{Evaluator: ev, stats: stats}
	hessian := requiresHessian(strategy)
	log := e.logger.With(zap.String("strategy", strategy.Name()))

	x := mat.NewVecDense(n, append([]float64(nil), x0...))
	capHint := 1024
	if maxIterations < capHint-2 {
		capHint = maxIterations + 2
	}
	trajectory := make([]Record, 0, capHint)

	var (
		iterations int
		status     Status
		converged  bool
		value      float64
	)

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return nil, WrapError(err, "minimization cancelled").WithOperation(op).WithComponent(component)
		}

		eval := counted.Evaluate(x, hessian)
		if i == 0 && eval.Gradient != nil && eval.Gradient.Len() != n {
			return nil, NewErrorf("gradient has length %d, initial point has length %d", eval.Gradient.Len(), n).
				WithOperation(op).WithComponent(component)
		}
		value = eval.Value
		trajectory = append(trajectory, Record{Iteration: i, X: vecData(x), Value: value})

		if converged {
			iterations, status = i, Converged
			break
		}

		state := State{X: x, Evaluation: eval}
		p, ok := strategy.NextDirection(state)
		if !ok || p == nil || p.Len() != n || eval.Gradient == nil {
			iterations, status = i, InvalidDirection
			break
		}

		alpha, shrinks, ok := backtrack(counted, x, p, eval.Value, eval.Gradient, e.settings.WolfeConst, e.settings.BacktrackingConst, e.settings.MaxBacktracks)
		stats.Backtracks += shrinks
		if !ok {
			iterations, status = i, LineSearchFailed
			break
		}

		next := mat.NewVecDense(n, nil)
		next.AddScaledVec(x, alpha, p)
		stepNorm := floats.Distance(next.RawVector().Data, x.RawVector().Data, 2)

		log.Debug("iteration",
			zap.Int("iteration", i),
			zap.Float64("value", value),
			zap.Float64("alpha", alpha),
			zap.Int("backtracks", shrinks),
			zap.Float64("step_norm", stepNorm),
		)

		converged = stepNorm < e.settings.ParamTol ||
			strategy.ShouldTerminate(counted, state, next, p, e.settings.ObjTol)
		if !converged && i >= maxIterations {
			iterations, status = maxIterations, IterationLimit
			break
		}
		x = next
	}

	last := trajectory[len(trajectory)-1]
	result := &Result{
		Strategy:   strategy.Name(),
		Iterations: iterations,
		X:          append([]float64(nil), last.X...),
		Value:      value,
		Success:    status == Converged,
		Valid:      status != InvalidDirection,
		Status:     status,
		Stats:      *stats,
		Trajectory: trajectory,
	}

	log.Info("minimization finished",
		zap.String("status", string(status)),
		zap.Int("iterations", iterations),
		zap.Float64("value", value),
		zap.Int("evaluations", stats.FullEvaluations+stats.ValueEvaluations+stats.GradientEvaluations),
	)

	return result, nil
}

func validateRun(ev Evaluator, strategy Strategy, x0 []float64, maxIterations int) error {
	if ev == nil {
		return &ErrInvalidArgument{Name: "evaluator", Value: nil, Message: "must not be nil"}
	}
	if v, ok := ev.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if strategy == nil {
		return &ErrInvalidArgument{Name: "strategy", Value: nil, Message: "must not be nil"}
	}
	if len(x0) == 0 {
		return &ErrInvalidArgument{Name: "x0", Value: x0, Message: "must not be empty"}
	}
	if !finiteSlice(x0) {
		return &ErrInvalidArgument{Name: "x0", Value: x0, Message: "must be finite"}
	}
	if d, ok := ev.(Dimensioned); ok && d.Dim() != 0 && d.Dim() != len(x0) {
		return &ErrInvalidArgument{Name: "x0", Value: x0, Message: "dimension does not match objective"}
	}
	if maxIterations < 0 {
		return &ErrInvalidArgument{Name: "maxIterations", Value: maxIterations, Message: "must not be negative"}
	}
	return nil
}

func vecData(v *mat.VecDense) []float64 {
	return append([]float64(nil), v.RawVector().Data[:v.Len()]...)
}
