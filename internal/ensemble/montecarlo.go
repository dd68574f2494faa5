package ensemble

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/xtding233/bob-variates/internal/variate"
)

// Params describes one ensemble run.
type Params struct {
	Kind variate.Kind
	Arm  variate.ArmParams

	Source  variate.SourceKind
	Seed    int64
	Trials  int // number of arm lengths drawn in total
	Workers int // <=1 runs on the calling goroutine

	MaxRetries int // 0 means variate.DefaultMaxRetries

	// KeepSamples keeps the raw draws in Stats.Samples.
	KeepSamples bool
}

// Upper bounds on Params and PointParams.
const (
	MaxTrials  = 1000000
	MaxWorkers = 64
)

func checkLimits(trials, workers int) error {
	if trials > MaxTrials {
		return fmt.Errorf("%w: trials = %d, want <= %d", variate.ErrInvalidParam, trials, MaxTrials)
	}
	if workers < 0 || workers > MaxWorkers {
		return fmt.Errorf("%w: workers = %d, want 0..%d", variate.ErrInvalidParam, workers, MaxWorkers)
	}
	return nil
}

// Stats summarizes an ensemble of arm lengths.
type Stats struct {
	Trials int     `json:"trials"`
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`

	// polymer averages
	Mn  float64 `json:"mn"`  // number average, equal to Mean
	Mw  float64 `json:"mw"`  // weight average, sum(x^2)/sum(x)
	PDI float64 `json:"pdi"` // Mw/Mn

	// Optional: raw samples, sorted ascending, if KeepSamples was set
	Samples []float64 `json:"-"`
}

// calcStats computes moments and percentiles of xs. xs is sorted in place.
func calcStats(xs []float64) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	sort.Float64s(xs)

	mean, variance := stat.PopMeanVariance(xs, nil)
	var sum, sumSq float64
	for _, v := range xs {
		sum += v
		sumSq += v * v
	}
	st := Stats{
		Trials: n,
		Mean:   mean,
		Var:    variance,
		StdDev: math.Sqrt(variance),
		Min:    xs[0],
		Max:    xs[n-1],
		P50:    stat.Quantile(0.50, stat.LinInterp, xs, nil),
		P90:    stat.Quantile(0.90, stat.LinInterp, xs, nil),
		P99:    stat.Quantile(0.99, stat.LinInterp, xs, nil),
		Mn:     mean,
	}
	if sum > 0 {
		st.Mw = sumSq / sum
		st.PDI = st.Mw / st.Mn
	}
	return st
}

// Runner executes ensembles.
type Runner struct {
	logger log.Logger
	obs    variate.Observer
}

// NewRunner creates a runner. logger and obs may be nil; obs is shared by
// all workers and must be safe for concurrent use.
func NewRunner(logger log.Logger, obs variate.Observer) *Runner {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Runner{logger: log.With(logger, "module", "ensemble"), obs: obs}
}

// Run draws p.Trials arm lengths and returns their statistics.
//
// Worker w owns a private Sampler seeded p.Seed+w and draws a contiguous
// share of the trials, so the result depends only on (Seed, Workers, Trials).
func (r *Runner) Run(ctx context.Context, p Params) (Stats, error) {
	if err := checkLimits(p.Trials, p.Workers); err != nil {
		return Stats{}, err
	}
	if p.Trials <= 0 {
		return Stats{}, nil
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > p.Trials {
		workers = p.Trials
	}

	samples := make([]float64, p.Trials)
	share := (p.Trials + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * share
		hi := lo + share
		if hi > p.Trials {
			hi = p.Trials
		}
		if lo >= hi {
			break
		}
		seed := p.Seed + int64(w)
		out := samples[lo:hi]
		g.Go(func() error {
			return r.fill(ctx, p, seed, out)
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	st := calcStats(samples)
	if p.KeepSamples {
		st.Samples = samples
	}
	level.Info(r.logger).Log(
		"msg", "ensemble complete",
		"kind", p.Kind,
		"trials", p.Trials,
		"workers", workers,
		"seed", p.Seed,
		"mn", st.Mn,
		"pdi", st.PDI,
	)
	return st, nil
}

// cancelCheckEvery is how many draws a worker makes between context checks.
const cancelCheckEvery = 4096

func (r *Runner) fill(ctx context.Context, p Params, seed int64, out []float64) error {
	opts := []variate.Option{
		variate.WithMaxRetries(p.MaxRetries),
		variate.WithLogger(r.logger),
	}
	if r.obs != nil {
		opts = append(opts, variate.WithObserver(r.obs))
	}
	s, err := variate.NewSeeded(p.Source, seed, opts...)
	if err != nil {
		return err
	}
	for i := range out {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		v, err := s.ArmLength(p.Kind, p.Arm)
		if err != nil {
			return fmt.Errorf("ensemble seed %d draw %d: %w", seed, i, err)
		}
		out[i] = v
	}
	return nil
}
