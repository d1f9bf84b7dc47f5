package server

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// RunStatus is the lifecycle state of a minimization run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether s is a final state.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// MinimizeRequest describes one run. Optional fields override the server's
// configured defaults for this run only.
type MinimizeRequest struct {
	Objective     string    `json:"objective"`
	Params        []float64 `json:"params,omitempty"`
	Strategy      string    `json:"strategy"`
	X0            []float64 `json:"x0"`
	MaxIterations *int      `json:"max_iterations,omitempty"`

	ObjTol            *float64 `json:"obj_tol,omitempty"`
	ParamTol          *float64 `json:"param_tol,omitempty"`
	WolfeConst        *float64 `json:"wolfe_const,omitempty"`
	BacktrackingConst *float64 `json:"backtracking_const,omitempty"`
	MaxBacktracks     *int     `json:"max_backtracks,omitempty"`
}

// settings applies the request's overrides to base.
func (r *MinimizeRequest) settings(base optimization.Settings) optimization.Settings {
	if r.ObjTol != nil {
		base.ObjTol = *r.ObjTol
	}
	if r.ParamTol != nil {
		base.ParamTol = *r.ParamTol
	}
	if r.WolfeConst != nil {
		base.WolfeConst = *r.WolfeConst
	}
	if r.BacktrackingConst != nil {
		base.BacktrackingConst = *r.BacktrackingConst
	}
	if r.MaxBacktracks != nil {
		base.MaxBacktracks = *r.MaxBacktracks
	}
	return base
}

// RunState tracks one run. All fields are guarded by Server.mu.
type RunState struct {
	ID        string
	Status    RunStatus
	Request   MinimizeRequest
	Strategy  string
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Result    *optimization.Result
	Err       string

	cancel context.CancelFunc
}

// RunView is the client-facing snapshot of a RunState.
type RunView struct {
	RunID     string               `json:"run_id"`
	Status    RunStatus            `json:"status"`
	Objective string               `json:"objective"`
	Strategy  string               `json:"strategy"`
	CreatedAt time.Time            `json:"created_at"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
	Result    *optimization.Result `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (r *RunState) view() RunView {
	return RunView{
		RunID:     r.ID,
		Status:    r.Status,
		Objective: r.Request.Objective,
		Strategy:  r.Strategy,
		CreatedAt: r.CreatedAt,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Result:    r.Result,
		Error:     r.Err,
	}
}

// job is a validated request ready to execute.
type job struct {
	engine        *optimization.Engine
	objective     functions.Objective
	strategy      optimization.Strategy
	x0            []float64
	maxIterations int
}

func (s *Server) prepare(req MinimizeRequest) (*job, error) {
	objective, err := functions.Lookup(req.Objective, req.Params, len(req.X0))
	if err != nil {
		return nil, err
	}
	strategy, err := optimization.StrategyByName(req.Strategy)
	if err != nil {
		return nil, err
	}

	maxIterations := s.cfg.Optimization.MaxIterations
	if req.MaxIterations != nil {
		maxIterations = *req.MaxIterations
	}
	if maxIterations < 0 {
		return nil, &optimization.ErrInvalidArgument{
			Name:    "max_iterations",
			Value:   maxIterations,
			Message: "must not be negative",
		}
	}

	engine, err := optimization.NewEngine(req.settings(s.cfg.EngineSettings()), optimization.WithLogger(s.zap))
	if err != nil {
		return nil, err
	}

	return &job{
		engine:        engine,
		objective:     objective,
		strategy:      strategy,
		x0:            append([]float64(nil), req.X0...),
		maxIterations: maxIterations,
	}, nil
}

// startRun validates req and schedules it. The run waits for a free worker
// slot before executing.
func (s *Server) startRun(req MinimizeRequest) (RunView, error) {
	const op = "Server.startRun"

	j, err := s.prepare(req)
	if err != nil {
		return RunView{}, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid minimize request").WithOperation(op)
	}
	return s.schedule(req, j)
}

func (s *Server) schedule(req MinimizeRequest, j *job) (RunView, error) {
	const op = "Server.schedule"

	ctx, cancel := context.WithCancel(context.Background())
	run := &RunState{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Request:   req,
		Strategy:  j.strategy.Name(),
		CreatedAt: s.now(),
		cancel:    cancel,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return RunView{}, apperrors.New(apperrors.Conflict, "server is shutting down").WithOperation(op)
	}
	s.pruneLocked()
	s.runs[run.ID] = run
	s.wg.Add(1)
	view := run.view()
	s.mu.Unlock()

	s.logger.Info("Run scheduled", map[string]interface{}{
		"run_id":    run.ID,
		"objective": req.Objective,
		"strategy":  run.Strategy,
	})

	go s.execute(ctx, run, j)
	return view, nil
}

func (s *Server) execute(ctx context.Context, run *RunState, j *job) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.finish(run, nil, apperrors.Newf(apperrors.Internal, "run panicked: %v", r))
		}
	}()

	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		s.finish(run, nil, ctx.Err())
		return
	}
	defer func() { <-s.workers }()

	s.metrics.activeRuns.Inc()
	defer s.metrics.activeRuns.Dec()

	s.mu.Lock()
	if run.Status == StatusPending {
		started := s.now()
		run.Status = StatusRunning
		run.StartedAt = &started
	}
	s.mu.Unlock()

	result, err := j.engine.Minimize(ctx, j.objective, j.strategy, j.x0, j.maxIterations)
	s.finish(run, result, err)
}

// finish records the outcome. A run already cancelled keeps that status and
// any late result is discarded.
func (s *Server) finish(run *RunState, result *optimization.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.Status.Terminal() {
		return
	}
	run.cancel()

	ended := s.now()
	run.EndedAt = &ended
	fields := map[string]interface{}{"run_id": run.ID}

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		run.Status = StatusCancelled
		s.metrics.recordTerminal(run.Strategy, StatusCancelled)
	case err != nil:
		run.Status = StatusFailed
		run.Err = err.Error()
		s.metrics.recordTerminal(run.Strategy, StatusFailed)
		s.logger.WithError(err).Error("Run failed", fields)
		return
	default:
		run.Status = StatusCompleted
		run.Result = result
		s.metrics.recordResult(result)
		fields["status"] = string(result.Status)
		fields["iterations"] = result.Iterations
		fields["value"] = result.Value
	}

	s.logger.Info("Run finished", fields)
	s.zap.Debug("run finished", zap.String("run_id", run.ID), zap.String("state", string(run.Status)))
}

func (s *Server) lookup(id string) (*RunState, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.NotFound, "run %q not found", id)
	}
	return run, nil
}

// runView returns a snapshot of the run.
func (s *Server) runView(id string) (RunView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := s.lookup(id)
	if err != nil {
		return RunView{}, err
	}
	return run.view(), nil
}

// trajectory returns the recorded iterates of a completed run.
func (s *Server) trajectory(id string) ([]optimization.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if run.Result == nil {
		return nil, apperrors.Newf(apperrors.Conflict, "run %q has no trajectory in status %s", id, run.Status)
	}
	return run.Result.Trajectory, nil
}

// cancelRun stops a pending or running run.
func (s *Server) cancelRun(id string) (RunView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := s.lookup(id)
	if err != nil {
		return RunView{}, err
	}
	if run.Status.Terminal() {
		return RunView{}, apperrors.Newf(apperrors.Conflict, "cannot cancel run with status %s", run.Status)
	}

	run.cancel()
	ended := s.now()
	run.Status = StatusCancelled
	run.EndedAt = &ended
	s.metrics.recordTerminal(run.Strategy, StatusCancelled)

	s.logger.Info("Run cancelled", map[string]interface{}{"run_id": id})
	return run.view(), nil
}

// pruneLocked drops terminal runs that ended before the retention window.
func (s *Server) pruneLocked() {
	cutoff := s.now().Add(-s.cfg.Optimization.JobRetention)
	for id, run := range s.runs {
		if run.Status.Terminal() && run.EndedAt != nil && run.EndedAt.Before(cutoff) {
			run.cancel()
			delete(s.runs, id)
		}
	}
}
