package variate

import (
	"fmt"
	"math"
)

// poissonDirectLimit is the mean below which draws multiply uniforms
// directly instead of using the Lorentzian rejection method.
const poissonDirectLimit = 12.0

// Poisson draws integer-valued Poisson deviates, returned as float64.
//
// Quantities that only depend on the mean are kept from the previous call,
// which makes repeated draws at one mean (the common case) cheap.
type Poisson struct {
	src        RandomSource
	maxRetries int

	lastMean float64
	expNeg   float64 // exp(-mean), direct method
	sq       float64 // sqrt(2*mean)
	logMean  float64 // ln(mean)
	g        float64 // mean*ln(mean) - lnGamma(mean+1)
}

// NewPoisson returns a sampler reading from src. maxRetries <= 0 selects
// DefaultMaxRetries.
func NewPoisson(src RandomSource, maxRetries int) *Poisson {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Poisson{src: src, maxRetries: maxRetries, lastMean: -1}
}

// Next returns a deviate with the given mean. mean must be finite and >= 0.
func (p *Poisson) Next(mean float64) (float64, error) {
	if err := validateNonNegative("mean", mean); err != nil {
		return 0, err
	}
	if mean == 0 {
		return 0, nil
	}
	if mean < poissonDirectLimit {
		return p.direct(mean)
	}
	return p.rejection(mean)
}

func (p *Poisson) direct(mean float64) (float64, error) {
	if mean != p.lastMean {
		p.lastMean = mean
		p.expNeg = math.Exp(-mean)
	}
	em := -1.0
	t := 1.0
	for try := 0; try < p.maxRetries; try++ {
		em++
		t *= p.src.Float64()
		if t <= p.expNeg {
			return em, nil
		}
	}
	return 0, fmt.Errorf("poisson(mean=%v): %w after %d steps", mean, ErrRetryLimit, p.maxRetries)
}

func (p *Poisson) rejection(mean float64) (float64, error) {
	if mean != p.lastMean {
		p.lastMean = mean
		p.sq = math.Sqrt(2 * mean)
		p.logMean = math.Log(mean)
		p.g = mean*p.logMean - LogGamma(mean+1)
	}
	for try := 0; try < p.maxRetries; try++ {
		var y, em float64
		// the Lorentzian can propose negative counts; draw again until it does not
		for {
			y = math.Tan(math.Pi * p.src.Float64())
			em = p.sq*y + mean
			if em >= 0 {
				break
			}
			try++
			if try >= p.maxRetries {
				return 0, fmt.Errorf("poisson(mean=%v): %w after %d tries", mean, ErrRetryLimit, p.maxRetries)
			}
		}
		em = math.Floor(em)
		t := 0.9 * (1 + y*y) * math.Exp(em*p.logMean-LogGamma(em+1)-p.g)
		if p.src.Float64() <= t {
			return em, nil
		}
	}
	return 0, fmt.Errorf("poisson(mean=%v): %w after %d tries", mean, ErrRetryLimit, p.maxRetries)
}

// Reset forgets the cached per-mean quantities.
func (p *Poisson) Reset() { p.lastMean = -1 }

var lanczosCoefficients = [6]float64{
	76.18009172947146,
	-86.50532032941677,
	24.01409824083091,
	-1.231739572450155,
	0.1208650973866179e-2,
	-0.5395239384953e-5,
}

// LogGamma returns ln(Gamma(x)) for x > 0 using the six-term Lanczos series.
// The absolute error is below 2e-10 over that range.
func LogGamma(x float64) float64 {
	y := x
	tmp := x + 5.5
	tmp -= (x + 0.5) * math.Log(tmp)
	ser := 1.000000000190015
	for _, c := range lanczosCoefficients {
		y++
		ser += c / y
	}
	return -tmp + math.Log(2.5066282746310005*ser/x)
}
