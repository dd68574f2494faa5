package variate

import (
	"errors"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DefaultMaxRetries caps every rejection loop. Typical inputs accept
// within a handful of tries; the cap only turns a pathological input into
// an error instead of a hang.
const DefaultMaxRetries = 1000000

// Observer is told about every successful draw and every exhausted
// rejection loop, keyed by distribution name.
type Observer interface {
	Drew(dist string)
	Exhausted(dist string)
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithMaxRetries sets the rejection loop cap. n <= 0 is ignored.
func WithMaxRetries(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithLogger sets the logger. nil is ignored.
func WithLogger(l log.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver attaches draw accounting, e.g. metrics. nil is ignored.
func WithObserver(o Observer) Option {
	return func(s *Sampler) {
		if o != nil {
			s.obs = o
		}
	}
}

// Sampler is one logical simulation stream: a uniform source together with
// the Gaussian pair cache and Poisson per-mean cache that depend on it.
//
// A Sampler is not safe for concurrent use. Concurrent workers each own
// one, seeded independently.
type Sampler struct {
	src        RandomSource
	gauss      *Gaussian
	pois       *Poisson
	maxRetries int
	logger     log.Logger
	obs        Observer
}

// New returns a Sampler drawing from src.
func New(src RandomSource, opts ...Option) *Sampler {
	s := &Sampler{
		src:        src,
		maxRetries: DefaultMaxRetries,
		logger:     log.NewNopLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.gauss = NewGaussian(src, s.maxRetries)
	s.pois = NewPoisson(src, s.maxRetries)
	return s
}

// NewSeeded returns a Sampler over a fresh generator of the given kind.
func NewSeeded(kind SourceKind, seed int64, opts ...Option) (*Sampler, error) {
	src, err := NewSource(kind, seed)
	if err != nil {
		return nil, err
	}
	s := New(src, opts...)
	level.Debug(s.logger).Log("msg", "sampler created", "source", kind, "seed", seed)
	return s, nil
}

// Source returns the underlying uniform source.
func (s *Sampler) Source() RandomSource { return s.src }

// Reseed restarts the stream and clears the Gaussian and Poisson caches.
func (s *Sampler) Reseed(seed int64) error {
	r, ok := s.src.(Reseeder)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotReseedable, s.src)
	}
	r.Reseed(seed)
	s.gauss.Reset()
	s.pois.Reset()
	level.Debug(s.logger).Log("msg", "sampler reseeded", "seed", seed)
	return nil
}

// Uniform returns the next value in [0, 1).
func (s *Sampler) Uniform() float64 {
	s.observe("uniform")
	return s.src.Float64()
}

// Gaussian returns a standard normal deviate.
func (s *Sampler) Gaussian() (float64, error) {
	z, err := s.gauss.Next()
	if err != nil {
		return 0, s.exhausted("gaussian", err)
	}
	s.observe("gaussian")
	return z, nil
}

// Poisson returns a Poisson deviate with the given mean as a float64.
func (s *Sampler) Poisson(mean float64) (float64, error) {
	v, err := s.pois.Next(mean)
	if err != nil {
		return 0, s.exhausted("poisson", err)
	}
	s.observe("poisson")
	return v, nil
}

func (s *Sampler) observe(dist string) {
	if s.obs != nil {
		s.obs.Drew(dist)
	}
}

func (s *Sampler) exhausted(dist string, err error) error {
	if !errors.Is(err, ErrRetryLimit) {
		return err
	}
	level.Warn(s.logger).Log("msg", "rejection loop gave up", "dist", dist, "max_retries", s.maxRetries)
	if s.obs != nil {
		s.obs.Exhausted(dist)
	}
	return err
}
