package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/logging"
)

func newEnsembleCommand(e *env) *cobra.Command {
	var (
		arm     armFlags
		trials  int
		workers int
		points  int
		length  float64
	)
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "Draw an ensemble of arm lengths and print its statistics",
		Long: "Draws --trials arm lengths over --workers goroutines and prints the\n" +
			"moments as JSON. With --points it instead places that many sorted\n" +
			"branch points on a backbone of --length per trial.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			if !fs.Changed("trials") {
				trials = e.params.Trials
			}
			if !fs.Changed("workers") {
				workers = e.params.Workers
			}
			runner := ensemble.NewRunner(logging.GetLogger(e.logger, "ensemble"), nil)

			var out interface{}
			if points > 0 {
				st, err := runner.RunPoints(cmd.Context(), ensemble.PointParams{
					Length: length,
					N:      points,
					Trials: trials,
					Source: e.params.Generator,
					Seed:   e.params.Seed,
				})
				if err != nil {
					return err
				}
				out = st
			} else {
				kind, p, err := arm.resolve(fs, e.params.Presets)
				if err != nil {
					return err
				}
				st, err := runner.Run(cmd.Context(), ensemble.Params{
					Kind:       kind,
					Arm:        p,
					Source:     e.params.Generator,
					Seed:       e.params.Seed,
					Trials:     trials,
					Workers:    workers,
					MaxRetries: e.params.MaxRetries,
				})
				if err != nil {
					return err
				}
				out = st
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	fs := cmd.Flags()
	arm.register(fs)
	fs.IntVar(&trials, "trials", 0, "number of draws (default from config)")
	fs.IntVar(&workers, "workers", 0, "worker goroutines (default from config)")
	fs.IntVar(&points, "points", 0, "branch points per backbone; switches to point placement")
	fs.Float64Var(&length, "length", 1, "backbone length for --points")
	return cmd
}
