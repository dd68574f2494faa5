package variate

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mathext/prng"
)

// RandomSource abstract
type RandomSource interface {
	Float64() float64 // [0, 1)
}

// Reseeder is a RandomSource whose stream can be restarted from a seed.
// The same seed always yields the same stream.
type Reseeder interface {
	RandomSource
	Reseed(seed int64)
}

// SourceKind names a uniform generator implementation.
type SourceKind string

const (
	SourceLaggedFibonacci SourceKind = "lfg"
	SourceMT19937         SourceKind = "mt19937"
	SourcePCG             SourceKind = "pcg"
)

// ParseSourceKind accepts the names used in config files and flags.
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceLaggedFibonacci, "lagged_fibonacci":
		return SourceLaggedFibonacci, nil
	case SourceMT19937, "mt":
		return SourceMT19937, nil
	case SourcePCG:
		return SourcePCG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// NewSource builds a reseedable generator of the given kind.
func NewSource(kind SourceKind, seed int64) (Reseeder, error) {
	switch kind {
	case SourceLaggedFibonacci, "":
		return NewLaggedFibonacci(seed), nil
	case SourceMT19937:
		return NewMT19937(seed), nil
	case SourcePCG:
		return NewPCG(seed), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
}

// EntropySeed returns a seed read from the OS entropy pool, for runs that
// are not pinned to a seed. Log it if the run must be reproducible later.
func EntropySeed() int64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		// backto math/rand/v2
		return rand.Int64()
	}
	// keep it non-negative so it reads well in logs and config files
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1)
}

// MT19937 is the high-quality uniform variant, a Mersenne Twister stream.
type MT19937 struct {
	mt *prng.MT19937
}

// NewMT19937 returns a private Mersenne Twister stream.
func NewMT19937(seed int64) *MT19937 {
	m := &MT19937{mt: prng.NewMT19937()}
	m.Reseed(seed)
	return m
}

func (m *MT19937) Reseed(seed int64) { m.mt.Seed(uint64(seed)) }

// Float64 maps the top 53 bits of the next output into [0, 1).
func (m *MT19937) Float64() float64 {
	return float64(m.mt.Uint64()>>11) / (1 << 53)
}

var (
	sharedOnce sync.Once
	sharedMT   *lockedSource
)

// lockedSource serialises access to a stream shared by several callers.
type lockedSource struct {
	mu  sync.Mutex
	src Reseeder
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

func (l *lockedSource) Reseed(seed int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.src.Reseed(seed)
}

// Shared returns the process-wide Mersenne Twister stream. It is safe for
// concurrent use, but callers interleave: a run that must be reproducible
// owns a private source instead.
func Shared() Reseeder {
	sharedOnce.Do(func() {
		sharedMT = &lockedSource{src: NewMT19937(EntropySeed())}
	})
	return sharedMT
}

// Replicable PCG stream (math/rand/v2).
type PCG struct {
	r *rand.Rand
}

func NewPCG(seed int64) *PCG {
	p := &PCG{}
	p.Reseed(seed)
	return p
}

func (p *PCG) Reseed(seed int64) { p.r = rand.New(rand.NewPCG(uint64(seed), 0)) }

func (p *PCG) Float64() float64 { return p.r.Float64() }
