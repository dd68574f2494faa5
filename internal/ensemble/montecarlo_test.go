package ensemble

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtding233/bob-variates/internal/variate"
)

func TestCalcStats(t *testing.T) {
	st := calcStats([]float64{4, 1, 3, 2})
	assert.Equal(t, 4, st.Trials)
	assert.Equal(t, 2.5, st.Mean)
	assert.Equal(t, 1.25, st.Var)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 4.0, st.Max)
	assert.Equal(t, st.Mean, st.Mn)
	assert.InDelta(t, 30.0/10.0, st.Mw, 1e-12)
	assert.InDelta(t, 1.2, st.PDI, 1e-12)

	assert.Equal(t, Stats{}, calcStats(nil))
}

func TestRunLognormalEnsemble(t *testing.T) {
	r := NewRunner(nil, nil)
	p := Params{
		Kind:    variate.KindLognormal,
		Arm:     variate.ArmParams{Mean: 100, PDI: 2},
		Source:  variate.SourceLaggedFibonacci,
		Seed:    11,
		Trials:  100000,
		Workers: 4,
	}
	st, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 100000, st.Trials)
	assert.InEpsilon(t, 100, st.Mn, 0.02)
	assert.InDelta(t, 2, st.PDI, 0.1)
	assert.Nil(t, st.Samples)
	assert.True(t, st.P50 <= st.P90 && st.P90 <= st.P99)

	again, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, st, again, "same seed and worker count must reproduce")
}

func TestRunIsIndependentOfScheduling(t *testing.T) {
	r := NewRunner(nil, nil)
	p := Params{
		Kind:        variate.KindLognormal,
		Arm:         variate.ArmParams{Mean: 50, PDI: 1.3},
		Seed:        3,
		Trials:      1001,
		Workers:     3,
		KeepSamples: true,
	}
	all, err := r.Run(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, all.Samples, 1001)

	// worker 0 drew the first 334 trials from seed 3; a lone worker with
	// that seed must produce exactly those values
	first, err := r.Run(context.Background(), Params{
		Kind: p.Kind, Arm: p.Arm, Seed: 3, Trials: 334, KeepSamples: true,
	})
	require.NoError(t, err)
	assert.Subset(t, all.Samples, first.Samples)

	other, err := r.Run(context.Background(), Params{
		Kind: p.Kind, Arm: p.Arm, Seed: 100, Trials: 334, KeepSamples: true,
	})
	require.NoError(t, err)
	assert.NotSubset(t, all.Samples, other.Samples)
}

func TestRunPropagatesInvalidParams(t *testing.T) {
	r := NewRunner(nil, nil)
	_, err := r.Run(context.Background(), Params{
		Kind:    variate.KindSemiLiving,
		Arm:     variate.ArmParams{Mean: 50, PDI: 1},
		Trials:  10,
		Workers: 2,
	})
	assert.True(t, errors.Is(err, variate.ErrInvalidParam), "got %v", err)

	st, err := r.Run(context.Background(), Params{Trials: 0})
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestRunHonoursCancellation(t *testing.T) {
	r := NewRunner(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Run(ctx, Params{
		Kind:   variate.KindMonodisperse,
		Arm:    variate.ArmParams{Mean: 1, PDI: 1},
		Trials: 10,
	})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestRunPoints(t *testing.T) {
	r := NewRunner(nil, nil)
	st, err := r.RunPoints(context.Background(), PointParams{Length: 12, N: 5, Trials: 20000, Seed: 8})
	require.NoError(t, err)
	require.Len(t, st.MeanAt, 5)
	for k, v := range st.MeanAt {
		assert.InDelta(t, float64(k+1)*2, v, 0.1, "k=%d", k)
	}
	assert.InDelta(t, 2, st.MeanGap, 0.05)
	assert.Equal(t, st.MeanAt[0], st.MeanFirst)
	assert.Equal(t, st.MeanAt[4], st.MeanLast)

	st, err = r.RunPoints(context.Background(), PointParams{Length: 12, N: 0, Trials: 10})
	require.NoError(t, err)
	assert.Empty(t, st.MeanAt)
	assert.Zero(t, st.MeanGap)

	_, err = r.RunPoints(context.Background(), PointParams{Length: -1, N: 2, Trials: 1})
	assert.True(t, errors.Is(err, variate.ErrInvalidParam))
}

func TestRunRejectsOversizedRequests(t *testing.T) {
	r := NewRunner(nil, nil)
	arm := variate.ArmParams{Mean: 1, PDI: 1}
	for _, p := range []Params{
		{Kind: variate.KindMonodisperse, Arm: arm, Trials: math.MaxInt},
		{Kind: variate.KindMonodisperse, Arm: arm, Trials: MaxTrials + 1},
		{Kind: variate.KindMonodisperse, Arm: arm, Trials: 10, Workers: MaxWorkers + 1},
		{Kind: variate.KindMonodisperse, Arm: arm, Trials: 10, Workers: -1},
	} {
		var err error
		require.NotPanics(t, func() { _, err = r.Run(context.Background(), p) })
		assert.True(t, errors.Is(err, variate.ErrInvalidParam), "trials=%d workers=%d: %v", p.Trials, p.Workers, err)
	}

	st, err := r.Run(context.Background(), Params{Kind: variate.KindMonodisperse, Arm: arm, Trials: 3, Workers: MaxWorkers})
	require.NoError(t, err)
	assert.Equal(t, 3, st.Trials)

	for _, p := range []PointParams{
		{Length: 1, N: 1, Trials: MaxTrials + 1},
		{Length: 1, N: variate.MaxPoints + 1, Trials: 1},
		{Length: 1, N: -1, Trials: 1},
	} {
		_, err := r.RunPoints(context.Background(), p)
		assert.True(t, errors.Is(err, variate.ErrInvalidParam), "%+v: %v", p, err)
	}
}
