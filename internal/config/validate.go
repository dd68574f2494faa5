package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/variate"
)

// ValidateRaw checks semantic constraints of a merged RawConfig and
// reports every violation at once.
func ValidateRaw(cfg RawConfig) error {
	var errs *multierror.Error

	if _, err := variate.ParseSourceKind(cfg.Generator); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("generator: %w", err))
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("max_retries must be >= 1"))
	}
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}
	switch cfg.Log.Format {
	case "", "logfmt", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("log.format must be one of: logfmt, json"))
	}

	if e := cfg.Ensemble; e != nil {
		if e.Trials != nil && (*e.Trials <= 0 || *e.Trials > ensemble.MaxTrials) {
			errs = multierror.Append(errs, fmt.Errorf("ensemble.trials must be in 1..%d", ensemble.MaxTrials))
		}
		if e.Workers != nil && (*e.Workers <= 0 || *e.Workers > ensemble.MaxWorkers) {
			errs = multierror.Append(errs, fmt.Errorf("ensemble.workers must be in 1..%d", ensemble.MaxWorkers))
		}
	}

	// sorted so the report is stable
	names := make([]string, 0, len(cfg.Presets))
	for name := range cfg.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, err := range validatePreset(cfg.Presets[name]) {
			errs = multierror.Append(errs, fmt.Errorf("presets.%s: %w", name, err))
		}
	}

	if errs != nil {
		errs.ErrorFormat = listFormat
	}
	return errs.ErrorOrNil()
}

func listFormat(es []error) string {
	s := fmt.Sprintf("config validation failed: %d problem(s)", len(es))
	for _, e := range es {
		s += "; " + e.Error()
	}
	return s
}

func validatePreset(pc PresetConfig) []error {
	var errs []error
	kind, err := variate.ParseKind(pc.Kind)
	if err != nil {
		return append(errs, fmt.Errorf("kind: %w", err))
	}
	if pc.Mean == nil {
		errs = append(errs, fmt.Errorf("mean is required"))
	} else if !(*pc.Mean > 0) || math.IsInf(*pc.Mean, 0) {
		errs = append(errs, fmt.Errorf("mean must be a finite number > 0"))
	}

	switch kind {
	case variate.KindGaussian, variate.KindLognormal, variate.KindSemiLiving:
		if pc.PDI == nil {
			errs = append(errs, fmt.Errorf("pdi is required for kind=%v", kind))
		} else if !(*pc.PDI > 1) || math.IsInf(*pc.PDI, 0) {
			errs = append(errs, fmt.Errorf("pdi must be > 1 for kind=%v", kind))
		}
	case variate.KindMonodisperse:
		if pc.PDI != nil && *pc.PDI != 1 {
			errs = append(errs, fmt.Errorf("pdi must be 1 (or unset) for kind=monodisperse"))
		}
	case variate.KindFlory:
		m := 1.0
		if pc.MonomerMass != nil {
			m = *pc.MonomerMass
		}
		if !(m > 0) {
			errs = append(errs, fmt.Errorf("monomer_mass must be > 0"))
		} else if pc.Mean != nil && *pc.Mean <= m {
			errs = append(errs, fmt.Errorf("mean must exceed monomer_mass for kind=flory"))
		}
	}
	return errs
}
