package variate

import "errors"

var (
	// ErrInvalidParam reports a distribution parameter outside its domain.
	ErrInvalidParam = errors.New("invalid distribution parameter")
	// ErrRetryLimit reports a rejection loop that exceeded its retry cap.
	ErrRetryLimit = errors.New("rejection sampling retry limit exceeded")
	// ErrNotReseedable is returned by Sampler.Reseed when the source has no seed.
	ErrNotReseedable = errors.New("random source cannot be reseeded")
	// ErrUnknownKind reports an arm-length distribution name or code that is not recognised.
	ErrUnknownKind = errors.New("unknown arm length distribution")
	// ErrUnknownSource reports a generator name that is not recognised.
	ErrUnknownSource = errors.New("unknown random source")
)
