// Package cli implements the bobvar commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/xtding233/bob-variates/internal/config"
	"github.com/xtding233/bob-variates/internal/logging"
	"github.com/xtding233/bob-variates/internal/variate"
)

const (
	cfgConfigDir = "config"
	cfgRun       = "run"
	cfgSeed      = "seed"
	cfgGenerator = "generator"
	cfgLogLevel  = "log.level"
	cfgLogFormat = "log.format"

	envPrefix = "BOB"
)

// env is the state shared by the commands of one invocation.
type env struct {
	v      *viper.Viper
	loader *config.Loader
	run    string
	params config.RunParams
	logger log.Logger
}

// rootFlags are the flags every command accepts.
func rootFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.String(cfgConfigDir, "", "configuration directory holding defaults.yaml and runs/")
	fs.String(cfgRun, "", "run file under <config>/runs layered over the defaults")
	fs.Int64(cfgSeed, 0, "seed of the default stream; unset draws one from the OS")
	fs.String(cfgGenerator, "", "uniform generator [lfg,mt19937,pcg]")
	lvl, format := logging.LevelInfo, logging.FmtLogfmt
	fs.Var(&lvl, cfgLogLevel, "log level")
	fs.Var(&format, cfgLogFormat, "log format")
	return fs
}

// NewRootCommand returns the bobvar command tree.
func NewRootCommand() *cobra.Command {
	e := &env{v: viper.New()}
	root := &cobra.Command{
		Use:           "bobvar",
		Short:         "Random variates for branched polymer ensembles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd)
		},
	}
	fs := rootFlags()
	root.PersistentFlags().AddFlagSet(fs)
	_ = e.v.BindPFlags(fs)
	e.v.SetEnvPrefix(envPrefix)
	e.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	e.v.AutomaticEnv()

	root.AddCommand(
		newSampleCommand(e),
		newEnsembleCommand(e),
		newServeCommand(e),
	)
	return root
}

// setup loads the config layers and applies flag and environment overrides.
func (e *env) setup(cmd *cobra.Command) error {
	e.loader = config.NewLoader(e.v.GetString(cfgConfigDir))
	e.run = e.v.GetString(cfgRun)
	p, err := e.load()
	if err != nil {
		return err
	}
	logger, err := logging.Parse(cmd.ErrOrStderr(), p.LogFormat, p.LogLevel)
	if err != nil {
		return err
	}
	e.params, e.logger = p, logger
	if !p.SeedPinned {
		level.Info(logger).Log("msg", "no seed configured, using entropy seed", "seed", p.Seed)
	}
	return nil
}

func (e *env) load() (config.RunParams, error) {
	p, err := e.loader.Load(e.run)
	if err != nil {
		return config.RunParams{}, err
	}
	if e.v.IsSet(cfgSeed) {
		p.Seed, p.SeedPinned = e.v.GetInt64(cfgSeed), true
	}
	if e.v.IsSet(cfgGenerator) {
		kind, err := variate.ParseSourceKind(e.v.GetString(cfgGenerator))
		if err != nil {
			return config.RunParams{}, fmt.Errorf("--%s: %w", cfgGenerator, err)
		}
		p.Generator = kind
	}
	if e.v.IsSet(cfgLogLevel) {
		p.LogLevel = e.v.GetString(cfgLogLevel)
	}
	if e.v.IsSet(cfgLogFormat) {
		p.LogFormat = e.v.GetString(cfgLogFormat)
	}
	return p, nil
}

func (e *env) sampler() (*variate.Sampler, error) {
	return variate.NewSeeded(e.params.Generator, e.params.Seed,
		variate.WithMaxRetries(e.params.MaxRetries),
		variate.WithLogger(logging.GetLogger(e.logger, "variate")),
	)
}

// armFlags select an arm length distribution on the command line.
type armFlags struct {
	preset string
	kind   string
	mean   float64
	pdi    float64
	mass   float64
}

func (a *armFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&a.preset, "preset", "", "named distribution from the config presets")
	fs.StringVar(&a.kind, "kind", "", "arm length distribution [monodisperse,gaussian,lognormal,semiliving,flory] or 0..4")
	fs.Float64Var(&a.mean, "mean", 0, "mean (number average) arm length")
	fs.Float64Var(&a.pdi, "pdi", 1, "polydispersity index Mw/Mn")
	fs.Float64Var(&a.mass, "monomer-mass", 0, "segment length of a Flory arm (0 means 1)")
}

// resolve starts from the preset, if any, and applies the flags that were set.
func (a *armFlags) resolve(fs *pflag.FlagSet, presets map[string]config.Preset) (variate.Kind, variate.ArmParams, error) {
	var (
		kind variate.Kind
		arm  = variate.ArmParams{PDI: 1}
	)
	switch {
	case a.preset != "":
		p, ok := presets[a.preset]
		if !ok {
			return 0, arm, fmt.Errorf("unknown preset %q", a.preset)
		}
		kind, arm = p.Kind, p.Arm
	case a.kind == "":
		return 0, arm, fmt.Errorf("one of --kind or --preset is required")
	case !fs.Changed("mean"):
		return 0, arm, fmt.Errorf("--mean is required with --kind")
	}
	if a.kind != "" {
		k, err := variate.ParseKind(a.kind)
		if err != nil {
			return 0, arm, err
		}
		kind = k
	}
	if fs.Changed("mean") {
		arm.Mean = a.mean
	}
	if fs.Changed("pdi") {
		arm.PDI = a.pdi
	}
	if fs.Changed("monomer-mass") {
		arm.MonomerMass = a.mass
	}
	return kind, arm, nil
}
