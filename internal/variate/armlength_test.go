package variate

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func newTestSampler(t *testing.T, seed int64) *Sampler {
	t.Helper()
	s, err := NewSeeded(SourceLaggedFibonacci, seed)
	require.NoError(t, err)
	return s
}

// drawArms draws n arm lengths and returns them with their Mw/Mn ratio.
func drawArms(t *testing.T, s *Sampler, kind Kind, p ArmParams, n int) ([]float64, float64) {
	t.Helper()
	xs := make([]float64, n)
	var sum, sumSq float64
	for i := range xs {
		v, err := s.ArmLength(kind, p)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, 0.0)
		xs[i] = v
		sum += v
		sumSq += v * v
	}
	mn := sum / float64(n)
	mw := sumSq / sum
	return xs, mw / mn
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"0":            KindMonodisperse,
		"mono":         KindMonodisperse,
		"1":            KindGaussian,
		"Gaussian":     KindGaussian,
		"2":            KindLognormal,
		"lognormal":    KindLognormal,
		"3":            KindSemiLiving,
		"semi-living":  KindSemiLiving,
		"4":            KindFlory,
		" flory ":      KindFlory,
		"geometric":    KindFlory,
		"monodisperse": KindMonodisperse,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"5", "-1", "weibull"} {
		_, err := ParseKind(bad)
		assert.True(t, errors.Is(err, ErrUnknownKind), bad)
	}

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("lognormal")))
	assert.Equal(t, KindLognormal, k)
	b, err := KindSemiLiving.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "semiliving", string(b))
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestMonodisperseArm(t *testing.T) {
	s := newTestSampler(t, 1)
	v, err := s.ArmLength(KindMonodisperse, ArmParams{Mean: 42, PDI: 1})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = s.ArmLength(KindMonodisperse, ArmParams{Mean: 42, PDI: 0.5})
	assert.True(t, errors.Is(err, ErrInvalidParam))
}

func TestLognormalArmPreservesMoments(t *testing.T) {
	s := newTestSampler(t, 11)
	xs, pdi := drawArms(t, s, KindLognormal, ArmParams{Mean: 100, PDI: 2}, 100000)
	assert.InEpsilon(t, 100, stat.Mean(xs, nil), 0.01)
	assert.InDelta(t, 2, pdi, 0.05)
}

func TestGaussianArm(t *testing.T) {
	s := newTestSampler(t, 11)
	xs, _ := drawArms(t, s, KindGaussian, ArmParams{Mean: 100, PDI: 1.2}, 100000)
	assert.InEpsilon(t, 100, stat.Mean(xs, nil), 0.01)
}

func TestGaussianArmFloor(t *testing.T) {
	// sqrt(pdi-1) = 3 puts a third of the raw draws below zero
	s := newTestSampler(t, 11)
	floored := 0
	for i := 0; i < 10000; i++ {
		v, err := s.GaussianArm(100, 10)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, GaussianFloor)
		if v == GaussianFloor {
			floored++
		}
	}
	assert.Greater(t, floored, 0)
}

func TestSemiLivingArm(t *testing.T) {
	s := newTestSampler(t, 11)
	xs, pdi := drawArms(t, s, KindSemiLiving, ArmParams{Mean: 100, PDI: 1.5}, 100000)
	assert.InEpsilon(t, 100, stat.Mean(xs, nil), 0.01)
	assert.InDelta(t, 1.5, pdi, 0.02)
	for _, v := range xs {
		// whole numbers of 50-long blocks
		require.Equal(t, math.Round(v/50)*50, v)
	}
}

func TestFloryCounts(t *testing.T) {
	s := newTestSampler(t, 11)
	xs := make([]float64, 100000)
	for i := range xs {
		v, err := s.Flory(-0.5)
		require.NoError(t, err)
		require.GreaterOrEqual(t, v, 1.0)
		require.Equal(t, math.Floor(v), v)
		xs[i] = v
	}
	assert.InEpsilon(t, 1/(1-math.Exp(-0.5)), stat.Mean(xs, nil), 0.01)
}

func TestFloryArm(t *testing.T) {
	s := newTestSampler(t, 11)
	xs, pdi := drawArms(t, s, KindFlory, ArmParams{Mean: 50}, 100000)
	assert.InEpsilon(t, 50, stat.Mean(xs, nil), 0.01)
	assert.InDelta(t, 2, pdi, 0.05)

	xs, _ = drawArms(t, s, KindFlory, ArmParams{Mean: 280, MonomerMass: 28}, 1000)
	for _, v := range xs {
		require.Equal(t, 0.0, math.Mod(v, 28), "flory arm must be whole monomers")
	}
}

func TestArmLengthInvalidParams(t *testing.T) {
	s := newTestSampler(t, 1)
	cases := []struct {
		name string
		kind Kind
		p    ArmParams
	}{
		{"gaussian pdi 1", KindGaussian, ArmParams{Mean: 10, PDI: 1}},
		{"gaussian pdi below 1", KindGaussian, ArmParams{Mean: 10, PDI: 0.9}},
		{"lognormal pdi 1", KindLognormal, ArmParams{Mean: 10, PDI: 1}},
		{"lognormal zero mean", KindLognormal, ArmParams{Mean: 0, PDI: 2}},
		{"semiliving pdi 1", KindSemiLiving, ArmParams{Mean: 10, PDI: 1}},
		{"semiliving nan", KindSemiLiving, ArmParams{Mean: math.NaN(), PDI: 2}},
		{"flory mean below monomer", KindFlory, ArmParams{Mean: 1, MonomerMass: 1}},
		{"flory negative monomer", KindFlory, ArmParams{Mean: 10, MonomerMass: -1}},
		{"monodisperse negative", KindMonodisperse, ArmParams{Mean: -1, PDI: 1}},
	}
	for _, tc := range cases {
		_, err := s.ArmLength(tc.kind, tc.p)
		assert.True(t, errors.Is(err, ErrInvalidParam), "%s: %v", tc.name, err)
	}

	_, err := s.ArmLength(Kind(7), ArmParams{Mean: 1, PDI: 1})
	assert.True(t, errors.Is(err, ErrUnknownKind))

	for _, lp := range []float64{0, 0.5, math.NaN()} {
		_, err := s.Flory(lp)
		assert.True(t, errors.Is(err, ErrInvalidParam), "log_prob=%v", lp)
	}
}
