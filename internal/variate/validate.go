package variate

import (
	"fmt"
	"math"
)

func invalid(name string, v float64, want string) error {
	return fmt.Errorf("%w: %s=%v, must be %s", ErrInvalidParam, name, v, want)
}

func validateFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(name, v, "finite")
	}
	return nil
}

func validateNonNegative(name string, v float64) error {
	if err := validateFinite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return invalid(name, v, ">= 0")
	}
	return nil
}

func validatePositive(name string, v float64) error {
	if err := validateFinite(name, v); err != nil {
		return err
	}
	if v <= 0 {
		return invalid(name, v, "> 0")
	}
	return nil
}

// validatePDI checks pdi >= 1, or pdi > 1 when strict.
func validatePDI(pdi float64, strict bool) error {
	if err := validateFinite("pdi", pdi); err != nil {
		return err
	}
	if strict && pdi <= 1 {
		return invalid("pdi", pdi, "> 1")
	}
	if pdi < 1 {
		return invalid("pdi", pdi, ">= 1")
	}
	return nil
}
