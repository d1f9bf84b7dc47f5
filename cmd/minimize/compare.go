package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/descent/internal/optimization"
)

type compareOptions struct {
	problemFlags
	strategies []string
}

func newCompareCmd(a *app) *cobra.Command {
	opts := &compareOptions{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run several strategies on the same problem and tabulate the results",
		Example: `  minimize compare --objective exponential --x0 1,1
  minimize compare --objective rosenbrock --x0=-1,2 --max-iter 10000 --strategies gd,newton`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, a)
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().StringSliceVar(&opts.strategies, "strategies", []string{"gd", "newton"}, "Strategies to compare")
	_ = cmd.MarkFlagRequired("x0")

	return cmd
}

func (o *compareOptions) run(cmd *cobra.Command, a *app) error {
	strategies := make([]optimization.Strategy, len(o.strategies))
	for i, name := range o.strategies {
		s, err := optimization.StrategyByName(name)
		if err != nil {
			return err
		}
		strategies[i] = s
	}
	objective, engine, err := o.build(a)
	if err != nil {
		return err
	}

	// Runs are independent; the engine keeps no per-run state.
	results := make([]*optimization.Result, len(strategies))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, s := range strategies {
		i, s := i, s
		g.Go(func() error {
			r, err := engine.Minimize(ctx, objective, s, o.x0, o.maxIterations)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tSTATUS\tITERATIONS\tVALUE\tX\tEVALUATIONS\tBACKTRACKS")
	for _, r := range results {
		evals := r.Stats.FullEvaluations + r.Stats.ValueEvaluations + r.Stats.GradientEvaluations
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6g\t%.6g\t%d\t%d\n",
			r.Strategy, r.Status, r.Iterations, r.Value, r.X, evals, r.Stats.Backtracks)
	}
	return tw.Flush()
}
