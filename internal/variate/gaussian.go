package variate

import (
	"fmt"
	"math"
)

// Gaussian draws standard normal deviates with the polar Box-Muller method.
//
// Every accepted point in the unit disk yields two deviates. The first is
// returned and the second is cached for the next call, so calls alternate
// between computing a pair and returning the cached half. The pairing is
// only correct for a single caller; a Gaussian is not safe for concurrent use.
type Gaussian struct {
	src        RandomSource
	maxRetries int

	spare    float64
	hasSpare bool
}

// NewGaussian returns a sampler reading from src. maxRetries <= 0 selects
// DefaultMaxRetries.
func NewGaussian(src RandomSource, maxRetries int) *Gaussian {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Gaussian{src: src, maxRetries: maxRetries}
}

// Next returns a deviate with zero mean and unit variance.
func (g *Gaussian) Next() (float64, error) {
	if g.hasSpare {
		g.hasSpare = false
		return g.spare, nil
	}
	for try := 0; try < g.maxRetries; try++ {
		v1 := 2*g.src.Float64() - 1
		v2 := 2*g.src.Float64() - 1
		rsq := v1*v1 + v2*v2
		if rsq <= 0 || rsq > 1 {
			continue
		}
		r := math.Sqrt(-2 * math.Log(rsq) / rsq)
		g.spare = v2 * r
		g.hasSpare = true
		return v1 * r, nil
	}
	return 0, fmt.Errorf("gaussian: %w after %d tries", ErrRetryLimit, g.maxRetries)
}

// Cached reports whether the next call returns the stored half of a pair.
func (g *Gaussian) Cached() bool { return g.hasSpare }

// Reset drops the cached deviate. Call it whenever the source is reseeded.
func (g *Gaussian) Reset() {
	g.hasSpare = false
	g.spare = 0
}
