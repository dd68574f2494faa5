package ensemble

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/xtding233/bob-variates/internal/variate"
)

// PointParams describes repeated branch-point placement on one backbone.
type PointParams struct {
	Length float64 // backbone length
	N      int     // branch points per backbone
	Trials int

	Source variate.SourceKind
	Seed   int64
}

// PointStats averages the ordered positions over all trials. For uniform
// placement the k-th of n points sits at k*Length/(n+1) on average.
type PointStats struct {
	Trials    int       `json:"trials"`
	MeanFirst float64   `json:"mean_first"`
	MeanLast  float64   `json:"mean_last"`
	MeanGap   float64   `json:"mean_gap"` // mean distance between neighbouring points
	MeanAt    []float64 `json:"mean_at"`  // mean position of the k-th point
}

// RunPoints draws p.Trials sets of sorted points from a single stream.
func (r *Runner) RunPoints(ctx context.Context, p PointParams) (PointStats, error) {
	if err := checkLimits(p.Trials, 0); err != nil {
		return PointStats{}, err
	}
	if p.N < 0 || p.N > variate.MaxPoints {
		return PointStats{}, fmt.Errorf("%w: n = %d, want 0..%d", variate.ErrInvalidParam, p.N, variate.MaxPoints)
	}
	if p.Trials <= 0 {
		return PointStats{}, nil
	}
	s, err := variate.NewSeeded(p.Source, p.Seed, variate.WithLogger(r.logger))
	if err != nil {
		return PointStats{}, err
	}

	sums := make([]float64, p.N)
	var gapSum float64
	gaps := 0
	for i := 0; i < p.Trials; i++ {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return PointStats{}, err
			}
		}
		pts, err := s.SortedPoints(p.Length, p.N)
		if err != nil {
			return PointStats{}, err
		}
		for k, v := range pts {
			sums[k] += v
			if k > 0 {
				gapSum += v - pts[k-1]
				gaps++
			}
		}
	}

	st := PointStats{Trials: p.Trials, MeanAt: make([]float64, len(sums))}
	for k, v := range sums {
		st.MeanAt[k] = v / float64(p.Trials)
	}
	if len(st.MeanAt) > 0 {
		st.MeanFirst = st.MeanAt[0]
		st.MeanLast = st.MeanAt[len(st.MeanAt)-1]
	}
	if gaps > 0 {
		st.MeanGap = gapSum / float64(gaps)
	}
	level.Debug(r.logger).Log("msg", "point placement complete", "trials", p.Trials, "n", p.N)
	return st, nil
}
