package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/descent/internal/optimization"
)

type runOptions struct {
	problemFlags
	strategy string
	trace    string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one minimization",
		Long: `Runs one strategy on one objective and prints the result as JSON.
With --trace the trajectory is written as JSON Lines, one record per iterate.`,
		Example: `  minimize run --objective rosenbrock --strategy gd --x0=-1,2 --max-iter 10000
  minimize run --objective quadratic --params 2,0,0,1 --strategy newton --x0 3,4 --trace out.jsonl`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, a)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().StringVar(&opts.strategy, "strategy", "gd", "Descent strategy: gd or newton")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "Write the trajectory as JSON Lines to this file")
	_ = cmd.MarkFlagRequired("x0")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, a *app) error {
	strategy, err := optimization.StrategyByName(o.strategy)
	if err != nil {
		return err
	}
	objective, engine, err := o.build(a)
	if err != nil {
		return err
	}

	a.logger.Info("Starting minimization", map[string]interface{}{
		"objective": objective.Name(),
		"strategy":  strategy.Name(),
		"max_iter":  o.maxIterations,
	})

	result, err := engine.Minimize(cmd.Context(), objective, strategy, o.x0, o.maxIterations)
	if err != nil {
		return err
	}

	if o.trace != "" {
		if err := writeTrace(o.trace, result.Trajectory); err != nil {
			return err
		}
		a.logger.Info("Wrote trajectory", map[string]interface{}{
			"path":    o.trace,
			"records": len(result.Trajectory),
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeTrace(path string, records []optimization.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace: %w", err)
	}
	defer f.Close()

	if err := optimization.WriteTrajectory(f, records); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	return f.Close()
}
