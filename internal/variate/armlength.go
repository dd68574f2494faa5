package variate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind selects the arm length distribution.
type Kind int

// The numeric values are the distribution codes used in rc and input files.
const (
	KindMonodisperse Kind = iota
	KindGaussian
	KindLognormal
	KindSemiLiving
	KindFlory
)

// GaussianFloor is the smallest length the Gaussian arm sampler returns.
// Raw draws below it are clamped, which biases the mean upward slightly
// when pdi is large.
const GaussianFloor = 1e-3

var kindNames = [...]string{
	KindMonodisperse: "monodisperse",
	KindGaussian:     "gaussian",
	KindLognormal:    "lognormal",
	KindSemiLiving:   "semiliving",
	KindFlory:        "flory",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind accepts a distribution name or its numeric code.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 0 && n < len(kindNames) {
			return Kind(n), nil
		}
		return 0, fmt.Errorf("%w: code %d", ErrUnknownKind, n)
	}
	switch s {
	case "mono":
		return KindMonodisperse, nil
	case "semi_living", "semi-living", "poisson":
		return KindSemiLiving, nil
	case "geometric":
		return KindFlory, nil
	}
	for i, name := range kindNames {
		if s == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ArmParams describes one arm length draw.
type ArmParams struct {
	Mean float64 `json:"mean"` // target number-average length
	PDI  float64 `json:"pdi"`  // polydispersity index, >= 1
	// MonomerMass is the length of one segment for the Flory distribution.
	// Zero means 1.
	MonomerMass float64 `json:"monomer_mass,omitempty"`
}

// ArmLength draws one arm length of the given kind.
//
// Monodisperse returns Mean and ignores PDI unless it is below 1. Flory
// ignores PDI and draws a segment count with number average
// Mean/MonomerMass, which requires Mean > MonomerMass.
func (s *Sampler) ArmLength(kind Kind, p ArmParams) (float64, error) {
	var (
		v   float64
		err error
	)
	switch kind {
	case KindMonodisperse:
		if err = validateNonNegative("mean", p.Mean); err == nil {
			err = validatePDI(p.PDI, false)
		}
		v = p.Mean
	case KindGaussian:
		v, err = s.GaussianArm(p.Mean, p.PDI)
	case KindLognormal:
		v, err = s.LognormalArm(p.Mean, p.PDI)
	case KindSemiLiving:
		v, err = s.SemiLivingArm(p.Mean, p.PDI)
	case KindFlory:
		v, err = s.FloryArm(p.Mean, p.MonomerMass)
	default:
		return 0, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	if err != nil {
		return 0, fmt.Errorf("%v arm: %w", kind, err)
	}
	s.observe("arm_" + kind.String())
	return v, nil
}

// GaussianArm returns mean*(1+sqrt(pdi-1)*z), floored at GaussianFloor.
func (s *Sampler) GaussianArm(mean, pdi float64) (float64, error) {
	if err := validatePositive("mean", mean); err != nil {
		return 0, err
	}
	if err := validatePDI(pdi, true); err != nil {
		return 0, err
	}
	z, err := s.Gaussian()
	if err != nil {
		return 0, err
	}
	v := mean * (1 + math.Sqrt(pdi-1)*z)
	if v < GaussianFloor {
		v = GaussianFloor
	}
	return v, nil
}

// LognormalArm draws from the lognormal law whose number average is mean
// and whose Mw/Mn is pdi.
func (s *Sampler) LognormalArm(mean, pdi float64) (float64, error) {
	if err := validatePositive("mean", mean); err != nil {
		return 0, err
	}
	if err := validatePDI(pdi, true); err != nil {
		return 0, err
	}
	z, err := s.Gaussian()
	if err != nil {
		return 0, err
	}
	mm := math.Log(mean) - 0.5*math.Log(pdi)
	ss := math.Sqrt(math.Log(pdi))
	return math.Exp(mm + ss*z), nil
}

// SemiLivingArm counts blocks of simultaneously added monomer: a Poisson
// number with mean 1/(pdi-1) of blocks, each mean*(pdi-1) long.
func (s *Sampler) SemiLivingArm(mean, pdi float64) (float64, error) {
	if err := validatePositive("mean", mean); err != nil {
		return 0, err
	}
	if err := validatePDI(pdi, true); err != nil {
		return 0, err
	}
	blocks, err := s.Poisson(1 / (pdi - 1))
	if err != nil {
		return 0, err
	}
	return blocks * mean * (pdi - 1), nil
}

// FloryArm draws a Flory (most probable) length with number average mean,
// built from segments of length monomerMass.
func (s *Sampler) FloryArm(mean, monomerMass float64) (float64, error) {
	if monomerMass == 0 {
		monomerMass = 1
	}
	if err := validatePositive("monomer_mass", monomerMass); err != nil {
		return 0, err
	}
	if err := validatePositive("mean", mean); err != nil {
		return 0, err
	}
	if mean <= monomerMass {
		return 0, invalid("mean", mean, fmt.Sprintf("> monomer_mass (%v) for a Flory arm", monomerMass))
	}
	n, err := s.Flory(math.Log(1 - monomerMass/mean))
	if err != nil {
		return 0, err
	}
	return n * monomerMass, nil
}

// Flory returns ceil(ln(u)/logProb), a geometric segment count >= 1, where
// logProb is the natural log of the per-segment propagation probability.
func (s *Sampler) Flory(logProb float64) (float64, error) {
	if err := validateFinite("log_prob", logProb); err != nil {
		return 0, err
	}
	if logProb >= 0 {
		return 0, invalid("log_prob", logProb, "< 0")
	}
	for try := 0; try < s.maxRetries; try++ {
		u := s.src.Float64()
		if u == 0 {
			// ln(0) has no finite count
			continue
		}
		n := math.Ceil(math.Log(u) / logProb)
		if n < 1 {
			// u == 1 cannot come from a [0,1) source, but keep the count positive
			n = 1
		}
		s.observe("flory")
		return n, nil
	}
	return 0, s.exhausted("flory", fmt.Errorf("flory: %w after %d tries", ErrRetryLimit, s.maxRetries))
}
