package optimization

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
)

// Minimizer defines the interface for unconstrained minimization engines.
type Minimizer interface {
	// Minimize runs strategy from x0 for at most maxIterations update steps.
	Minimize(ctx context.Context, ev Evaluator, strategy Strategy, x0 []float64, maxIterations int) (*Result, error)
}

// Status describes how a run ended.
type Status string

const (
	// Converged means the parameter-step or strategy tolerance was met.
	Converged Status = "converged"
	// IterationLimit means the iteration bound was exhausted first.
	IterationLimit Status = "iteration_limit"
	// InvalidDirection means the strategy could not produce a direction,
	// e.g. a missing or singular Hessian for Newton's method.
	InvalidDirection Status = "invalid_direction"
	// LineSearchFailed means the bounded backtracking search found no
	// acceptable step.
	LineSearchFailed Status = "line_search_failed"
)

// Record is one trajectory entry: the iterate and its objective value.
type Record struct {
	Iteration int       `json:"iteration"`
	X         []float64 `json:"x"`
	Value     float64   `json:"value"`
}

// Stats counts evaluator calls made during a run.
type Stats struct {
	FullEvaluations     int `json:"full_evaluations"`
	ValueEvaluations    int `json:"value_evaluations"`
	GradientEvaluations int `json:"gradient_evaluations"`
	Backtracks          int `json:"backtracks"`
}

// Result is the terminal record of a minimization run.
type Result struct {
	Strategy   string    `json:"strategy"`
	Iterations int       `json:"iterations"`
	X          []float64 `json:"x"`
	Value      float64   `json:"value"`
	Success    bool      `json:"success"`
	Valid      bool      `json:"is_valid"`
	Status     Status    `json:"status"`
	Stats      Stats     `json:"stats"`
	Trajectory []Record  `json:"-"`
}

// WriteTrajectory writes records to w as JSON lines, one record per line.
func WriteTrajectory(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return WrapError(err, "failed to encode trajectory record").WithOperation("WriteTrajectory")
		}
	}
	return bw.Flush()
}
