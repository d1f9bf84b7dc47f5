package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// app holds state shared by all subcommands.
type app struct {
	logLevel  string
	logFormat string
	logger    *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "minimize",
		Short: "Unconstrained minimization with gradient descent and Newton's method",
		Long: `minimize runs descent strategies with a backtracking line search on the
built-in test objectives and reports the result and the iterate trajectory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseFormat(a.logFormat)
			if err != nil {
				return err
			}
			a.logger = logging.New(parseLevel(a.logLevel), cmd.ErrOrStderr()).WithFormat(format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newRunCmd(a), newCompareCmd(a), newObjectivesCmd())
	return root
}

func parseLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.DebugLevel
	case "info":
		return logging.InfoLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.WarnLevel
	}
}

func parseFormat(format string) (logging.Format, error) {
	switch format {
	case "text":
		return logging.TextFormat, nil
	case "json":
		return logging.JSONFormat, nil
	default:
		return "", &optimization.ErrInvalidArgument{Name: "log-format", Value: format, Message: "expected text or json"}
	}
}

// problemFlags are the flags every minimizing subcommand shares.
type problemFlags struct {
	objective     string
	params        []float64
	x0            []float64
	maxIterations int
	settings      optimization.Settings
}

func (f *problemFlags) register(fs *pflag.FlagSet) {
	defaults := optimization.DefaultSettings()

	fs.StringVar(&f.objective, "objective", "rosenbrock", "Objective to minimize (see 'minimize objectives')")
	fs.Float64SliceVar(&f.params, "params", nil, "Objective parameters (quadratic: row-major matrix, linear: coefficients)")
	fs.Float64SliceVar(&f.x0, "x0", nil, "Initial point, comma separated (required)")
	fs.IntVar(&f.maxIterations, "max-iter", 100, "Maximum number of update steps")
	fs.Float64Var(&f.settings.ObjTol, "obj-tol", defaults.ObjTol, "Tolerance of the strategy's termination test")
	fs.Float64Var(&f.settings.ParamTol, "param-tol", defaults.ParamTol, "Tolerance on the step norm")
	fs.Float64Var(&f.settings.WolfeConst, "wolfe", defaults.WolfeConst, "Sufficient-decrease constant in (0, 1)")
	fs.Float64Var(&f.settings.BacktrackingConst, "backtrack", defaults.BacktrackingConst, "Step shrink factor in (0, 1)")
	fs.IntVar(&f.settings.MaxBacktracks, "max-backtracks", 64, "Shrinks per line search before giving up (0 = unbounded)")
}

// build resolves the objective and an engine logging through a.
func (f *problemFlags) build(a *app) (functions.Objective, *optimization.Engine, error) {
	objective, err := functions.Lookup(f.objective, f.params, len(f.x0))
	if err != nil {
		return nil, nil, err
	}
	engine, err := optimization.NewEngine(f.settings, optimization.WithLogger(a.zap()))
	if err != nil {
		return nil, nil, err
	}
	return objective, engine, nil
}

func (a *app) zap() *zap.Logger {
	return logging.NewZapLogger(a.logger)
}
