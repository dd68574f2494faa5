package config

import "github.com/xtding233/bob-variates/internal/variate"

// RawConfig is one YAML layer as written on disk. Pointer fields
// distinguish "unset" from zero so layers can be merged.
type RawConfig struct {
	Version    string                  `yaml:"version"`
	Seed       *int64                  `yaml:"seed,omitempty"`
	Generator  string                  `yaml:"generator,omitempty"` // lfg | mt19937 | pcg
	MaxRetries *int                    `yaml:"max_retries,omitempty"`
	Log        LogConfig               `yaml:"log,omitempty"`
	Server     ServerConfig            `yaml:"server,omitempty"`
	Ensemble   *EnsembleConfig         `yaml:"ensemble,omitempty"`
	Presets    map[string]PresetConfig `yaml:"presets,omitempty"`
	Notes      string                  `yaml:"notes,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr,omitempty"`
	GRPCAddr string `yaml:"grpc_addr,omitempty"`
}

type EnsembleConfig struct {
	Trials  *int `yaml:"trials,omitempty"`
	Workers *int `yaml:"workers,omitempty"`
}

// PresetConfig is a named arm length distribution.
type PresetConfig struct {
	Kind        string   `yaml:"kind"` // name or numeric code
	Mean        *float64 `yaml:"mean"`
	PDI         *float64 `yaml:"pdi,omitempty"`
	MonomerMass *float64 `yaml:"monomer_mass,omitempty"`
}

// Preset is a validated PresetConfig.
type Preset struct {
	Kind variate.Kind      `json:"kind"`
	Arm  variate.ArmParams `json:"arm"`
}

// RunParams are the normalized settings consumed by the commands.
type RunParams struct {
	Seed       int64
	SeedPinned bool // false when Seed came from the entropy pool
	Generator  variate.SourceKind
	MaxRetries int

	LogLevel  string
	LogFormat string

	HTTPAddr string
	GRPCAddr string

	Trials  int
	Workers int

	Presets map[string]Preset
	Version string // effective config version for tracing
}

// Defaults used when no layer sets a value.
const (
	DefaultHTTPAddr = ":8080"
	DefaultGRPCAddr = ":9090"
	DefaultTrials   = 100000
	DefaultWorkers  = 1
)
