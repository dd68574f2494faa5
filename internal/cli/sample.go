package cli

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xtding233/bob-variates/internal/variate"
)

var sampleDists = []string{"uniform", "gaussian", "poisson", "arm", "flory", "points"}

func newSampleCommand(e *env) *cobra.Command {
	var (
		arm     armFlags
		n       int
		logProb float64
		length  float64
	)
	cmd := &cobra.Command{
		Use:       "sample <uniform|gaussian|poisson|arm|flory|points>",
		Short:     "Print n values of a distribution, one per line",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: sampleDists,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 0 {
				return fmt.Errorf("%w: n = %d, want >= 0", variate.ErrInvalidParam, n)
			}
			s, err := e.sampler()
			if err != nil {
				return err
			}
			fs := cmd.Flags()

			var next func() (float64, error)
			switch args[0] {
			case "uniform":
				next = func() (float64, error) { return s.Uniform(), nil }
			case "gaussian":
				next = s.Gaussian
			case "poisson":
				if !fs.Changed("mean") {
					return fmt.Errorf("--mean is required")
				}
				next = func() (float64, error) { return s.Poisson(arm.mean) }
			case "arm":
				kind, p, err := arm.resolve(fs, e.params.Presets)
				if err != nil {
					return err
				}
				next = func() (float64, error) { return s.ArmLength(kind, p) }
			case "flory":
				if !fs.Changed("log-prob") {
					return fmt.Errorf("--log-prob is required")
				}
				next = func() (float64, error) { return s.Flory(logProb) }
			case "points":
				pts, err := s.SortedPoints(length, n)
				if err != nil {
					return err
				}
				i := 0
				next = func() (float64, error) { i++; return pts[i-1], nil }
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for i := 0; i < n; i++ {
				v, err := next()
				if err != nil {
					return err
				}
				w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
				w.WriteByte('\n')
			}
			return w.Flush()
		},
	}
	fs := cmd.Flags()
	arm.register(fs)
	fs.IntVarP(&n, "n", "n", 1, "number of values")
	fs.Float64Var(&logProb, "log-prob", 0, "log propagation probability for flory, < 0")
	fs.Float64Var(&length, "length", 1, "backbone length for points")
	return cmd
}
