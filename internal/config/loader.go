package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/bob-variates/internal/variate"
)

// Paths helper for the defaults and per-run files.
type Paths struct {
	BaseDir string // base directory, e.g., /etc/bob
}

func (p Paths) DefaultPath() string {
	return filepath.Join(p.BaseDir, "defaults.yaml")
}

func (p Paths) RunPath(run string) string {
	return filepath.Join(p.BaseDir, "runs", run+".yaml")
}

// Loader reads YAML layers and merges defaults → run.
type Loader struct {
	paths Paths

	mu    sync.RWMutex
	cache map[string]RawConfig // key: run name, "" for defaults only
}

// NewLoader creates a config loader with the given base directory.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		paths: Paths{BaseDir: baseDir},
		cache: make(map[string]RawConfig),
	}
}

// Paths returns the files the loader reads for run, for watching.
func (l *Loader) Paths(run string) []string {
	out := []string{l.paths.DefaultPath()}
	if run != "" {
		out = append(out, l.paths.RunPath(run))
	}
	return out
}

// LoadMerged loads and merges defaults → run (run optional). Missing files
// count as empty layers.
func (l *Loader) LoadMerged(run string) (RawConfig, error) {
	l.mu.RLock()
	if cfg, ok := l.cache[run]; ok {
		l.mu.RUnlock()
		return cfg, nil
	}
	l.mu.RUnlock()

	defCfg, err := ReadFile(l.paths.DefaultPath())
	if err != nil {
		return RawConfig{}, fmt.Errorf("read defaults: %w", err)
	}
	merged := defCfg
	if run != "" {
		runCfg, err := ReadFile(l.paths.RunPath(run))
		if err != nil {
			return RawConfig{}, fmt.Errorf("read run %q: %w", run, err)
		}
		merged = Merge(defCfg, runCfg)
	}

	l.mu.Lock()
	l.cache[run] = merged
	l.mu.Unlock()
	return merged, nil
}

// Load merges, validates and normalizes the configuration for run.
func (l *Loader) Load(run string) (RunParams, error) {
	raw, err := l.LoadMerged(run)
	if err != nil {
		return RunParams{}, err
	}
	return Normalize(raw)
}

// Invalidate clears loader's cache. Call after the watcher detects changes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]RawConfig)
}

// ReadFile loads a YAML file into RawConfig. Missing files return zero cfg, no error.
func ReadFile(path string) (RawConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	return Parse(b)
}

// Parse decodes one YAML layer. Unknown keys are rejected.
func Parse(b []byte) (RawConfig, error) {
	var cfg RawConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// only comments or whitespace
			return RawConfig{}, nil
		}
		return RawConfig{}, err
	}
	return cfg, nil
}

// Merge performs a deep merge: 'b' overrides 'a' where set.
// Presets merge by name, a preset in 'b' replacing the same name in 'a'.
func Merge(a, b RawConfig) RawConfig {
	out := a

	if b.Version != "" {
		out.Version = b.Version
	}
	if b.Notes != "" {
		out.Notes = b.Notes
	}
	if b.Seed != nil {
		out.Seed = b.Seed
	}
	if b.Generator != "" {
		out.Generator = b.Generator
	}
	if b.MaxRetries != nil {
		out.MaxRetries = b.MaxRetries
	}

	if b.Log.Level != "" {
		out.Log.Level = b.Log.Level
	}
	if b.Log.Format != "" {
		out.Log.Format = b.Log.Format
	}
	if b.Server.HTTPAddr != "" {
		out.Server.HTTPAddr = b.Server.HTTPAddr
	}
	if b.Server.GRPCAddr != "" {
		out.Server.GRPCAddr = b.Server.GRPCAddr
	}

	switch {
	case out.Ensemble == nil && b.Ensemble != nil:
		c := *b.Ensemble
		out.Ensemble = &c
	case out.Ensemble != nil && b.Ensemble != nil:
		c := *out.Ensemble
		if b.Ensemble.Trials != nil {
			c.Trials = b.Ensemble.Trials
		}
		if b.Ensemble.Workers != nil {
			c.Workers = b.Ensemble.Workers
		}
		out.Ensemble = &c
	}

	if len(b.Presets) > 0 {
		presets := make(map[string]PresetConfig, len(a.Presets)+len(b.Presets))
		for k, v := range a.Presets {
			presets[k] = v
		}
		for k, v := range b.Presets {
			presets[k] = v
		}
		out.Presets = presets
	}
	return out
}

// Normalize validates raw and fills in defaults. A config without a seed
// gets one from the entropy pool and SeedPinned=false.
func Normalize(raw RawConfig) (RunParams, error) {
	if err := ValidateRaw(raw); err != nil {
		return RunParams{}, err
	}
	gen, _ := variate.ParseSourceKind(raw.Generator)

	p := RunParams{
		Generator:  gen,
		MaxRetries: variate.DefaultMaxRetries,
		LogLevel:   raw.Log.Level,
		LogFormat:  raw.Log.Format,
		HTTPAddr:   raw.Server.HTTPAddr,
		GRPCAddr:   raw.Server.GRPCAddr,
		Trials:     DefaultTrials,
		Workers:    DefaultWorkers,
		Presets:    make(map[string]Preset, len(raw.Presets)),
		Version:    raw.Version,
	}
	if raw.Seed != nil {
		p.Seed, p.SeedPinned = *raw.Seed, true
	} else {
		p.Seed = variate.EntropySeed()
	}
	if raw.MaxRetries != nil {
		p.MaxRetries = *raw.MaxRetries
	}
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
	if p.LogFormat == "" {
		p.LogFormat = "logfmt"
	}
	if p.HTTPAddr == "" {
		p.HTTPAddr = DefaultHTTPAddr
	}
	if p.GRPCAddr == "" {
		p.GRPCAddr = DefaultGRPCAddr
	}
	if e := raw.Ensemble; e != nil {
		if e.Trials != nil {
			p.Trials = *e.Trials
		}
		if e.Workers != nil {
			p.Workers = *e.Workers
		}
	}
	for name, pc := range raw.Presets {
		p.Presets[name] = toPreset(pc)
	}
	return p, nil
}

// toPreset assumes pc passed validatePreset.
func toPreset(pc PresetConfig) Preset {
	kind, _ := variate.ParseKind(pc.Kind)
	pr := Preset{Kind: kind, Arm: variate.ArmParams{Mean: *pc.Mean, PDI: 1}}
	if pc.PDI != nil {
		pr.Arm.PDI = *pc.PDI
	}
	if pc.MonomerMass != nil {
		pr.Arm.MonomerMass = *pc.MonomerMass
	}
	return pr
}
