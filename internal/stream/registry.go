// Package stream keeps named, independently seeded Samplers shared by the
// HTTP and gRPC front ends.
package stream

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/go-kit/log"

	"github.com/xtding233/bob-variates/internal/variate"
)

// Default is the stream used when a request names none.
const Default = "default"

// DefaultMaxStreams is the stream cap used when Config.MaxStreams is 0.
const DefaultMaxStreams = 1024

// ErrTooManyStreams is returned when a new stream would exceed the cap.
var ErrTooManyStreams = errors.New("stream limit reached")

// Config is how new streams are created.
type Config struct {
	Source     variate.SourceKind
	Seed       int64 // seed of Default; other streams derive from it
	MaxRetries int
	MaxStreams int // named streams kept besides Default; 0 means DefaultMaxStreams
}

// entry is one Sampler. Draws on an entry are serialised so the Gaussian
// pairing stays intact.
type entry struct {
	mu      sync.Mutex
	seed    int64
	sampler *variate.Sampler
}

// Registry is a set of named streams, created on first use.
type Registry struct {
	cfg    Config
	logger log.Logger
	obs    variate.Observer

	mu  sync.Mutex
	all map[string]*entry
}

// NewRegistry creates an empty registry. logger and obs may be nil.
func NewRegistry(cfg Config, logger log.Logger, obs variate.Observer) *Registry {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Registry{cfg: cfg, logger: logger, obs: obs, all: make(map[string]*entry)}
}

// Config returns the settings streams are created with.
func (r *Registry) Config() Config { return r.cfg }

// Observer returns the draw observer shared by all streams, or nil.
func (r *Registry) Observer() variate.Observer { return r.obs }

// SeedFor derives a stream's initial seed from the configured seed and the
// stream name, so a restarted server hands out the same streams.
func (r *Registry) SeedFor(name string) int64 {
	if name == "" || name == Default {
		return r.cfg.Seed
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return r.cfg.Seed + int64(h.Sum32())
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.all[name]; ok {
		return e, nil
	}
	limit := r.cfg.MaxStreams
	if limit <= 0 {
		limit = DefaultMaxStreams
	}
	// Default is always available
	if name != Default {
		named := len(r.all)
		if _, ok := r.all[Default]; ok {
			named--
		}
		if named >= limit {
			return nil, fmt.Errorf("%w: cannot open %q beyond %d streams", ErrTooManyStreams, name, limit)
		}
	}
	seed := r.SeedFor(name)
	opts := []variate.Option{
		variate.WithMaxRetries(r.cfg.MaxRetries),
		variate.WithLogger(log.With(r.logger, "stream", name)),
	}
	if r.obs != nil {
		opts = append(opts, variate.WithObserver(r.obs))
	}
	s, err := variate.NewSeeded(r.cfg.Source, seed, opts...)
	if err != nil {
		return nil, err
	}
	e := &entry{seed: seed, sampler: s}
	r.all[name] = e
	return e, nil
}

// Name normalises a requested stream name.
func Name(name string) string {
	if name == "" {
		return Default
	}
	return name
}

// With runs fn on the named stream while holding its lock.
func (r *Registry) With(name string, fn func(s *variate.Sampler) error) error {
	e, err := r.get(Name(name))
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sampler)
}

// Reseed restarts the named stream from seed.
func (r *Registry) Reseed(name string, seed int64) error {
	e, err := r.get(Name(name))
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sampler.Reseed(seed); err != nil {
		return err
	}
	e.seed = seed
	return nil
}

// Seed returns the seed the named stream was last started from.
func (r *Registry) Seed(name string) (int64, bool) {
	r.mu.Lock()
	e, ok := r.all[Name(name)]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seed, true
}
