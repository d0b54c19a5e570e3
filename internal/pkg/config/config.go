// Package config reads the hub configuration file. Any key can be
// overridden from the environment as ENERGYHUB_<SECTION>_<KEY>, e.g.
// ENERGYHUB_HUB_DISCOUNT_RATE; a .env file next to the configuration is
// loaded first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/mongodb"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/energyhub/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/energyhub/internal/pkg/dispatch/lpdispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/pareto"
	"github.com/ohowland/energyhub/internal/pkg/profile"
	"github.com/ohowland/energyhub/internal/pkg/scenario"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ENERGYHUB"

// Profile locates one hourly series. A solar profile without a path may
// instead be generated from a clear-sky site model.
type Profile struct {
	Path     string        `mapstructure:"path"`
	Column   string        `mapstructure:"column"`
	Scale    float64       `mapstructure:"scale"`
	Shift    int           `mapstructure:"shift"`
	ClearSky *profile.Site `mapstructure:"clear_sky"`
}

// clearSkyStart is the first hour of generated profiles, in a non-leap year.
var clearSkyStart = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC)

// Profiles locates the hub input series. Solar and wind speed are only
// needed when PV or wind is installed.
type Profiles struct {
	HeatDemand Profile `mapstructure:"heat_demand"`
	ElecDemand Profile `mapstructure:"elec_demand"`
	Solar      Profile `mapstructure:"solar"`
	WindSpeed  Profile `mapstructure:"wind_speed"`
}

// Solver tunes the numerical backend and the post-solve audit.
type Solver struct {
	Backend        string  `mapstructure:"backend"`
	Tolerance      float64 `mapstructure:"tolerance"`
	Gap            float64 `mapstructure:"gap"`
	AuditTolerance float64 `mapstructure:"audit_tolerance"`
}

// Options maps the section onto solver.New.
func (s Solver) Options() solver.Options {
	return solver.Options{Backend: s.Backend, Tolerance: s.Tolerance, Gap: s.Gap}
}

// Pareto configures the frontier scan.
type Pareto struct {
	A       string `mapstructure:"a"`
	B       string `mapstructure:"b"`
	Steps   int    `mapstructure:"steps"`
	Workers int    `mapstructure:"workers"`
	// InvestmentCeiling bounds every solve of the scan, if set.
	InvestmentCeiling *float64 `mapstructure:"investment_ceiling"`
}

// Scenario configures the investment ceiling analysis. Without explicit
// ceilings the base, income and government ceilings are derived from the
// hub and the community.
type Scenario struct {
	Community scenario.Community `mapstructure:"community"`
	Ceilings  []scenario.Ceiling `mapstructure:"ceilings"`
	Workers   int                `mapstructure:"workers"`
}

// Sinks selects where results are sent. Nil sinks are disabled.
type Sinks struct {
	MongoDB *mongodb.Config     `mapstructure:"mongodb"`
	MySQL   *sqldb.Config       `mapstructure:"mysql"`
	NATS    *natshandler.Config `mapstructure:"nats"`
	// HTTP is the listen address of the results service.
	HTTP string `mapstructure:"http"`
}

// Config is the full hub configuration.
type Config struct {
	Hub      hub.Params `mapstructure:"hub"`
	Assets   hub.Assets `mapstructure:"assets"`
	Profiles Profiles   `mapstructure:"profiles"`
	Solver   Solver     `mapstructure:"solver"`
	Pareto   Pareto     `mapstructure:"pareto"`
	Scenario Scenario   `mapstructure:"scenario"`
	Sinks    Sinks      `mapstructure:"sinks"`

	dir string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hub.horizon", profile.HoursPerYear)
	v.SetDefault("hub.years", hub.DefaultYears)
	v.SetDefault("solver.backend", solver.BackendAuto)
	v.SetDefault("solver.tolerance", solver.DefaultTolerance)
	v.SetDefault("solver.gap", solver.DefaultGap)
	v.SetDefault("solver.audit_tolerance", lpdispatch.DefaultAuditTolerance)
	v.SetDefault("pareto.a", hub.Cost.String())
	v.SetDefault("pareto.b", hub.Emissions.String())
	v.SetDefault("pareto.steps", pareto.DefaultSteps)
}

// Load reads the configuration file at path. The format follows the file
// extension (json, yaml, toml).
func Load(path string) (*Config, error) {
	dir := filepath.Dir(path)
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{dir: dir}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse hub config: %w", err)
	}
	if _, _, err := cfg.Objectives(); err != nil {
		return nil, err
	}
	if _, err := solver.New(cfg.Solver.Options()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Objectives parses the scan objectives.
func (c Config) Objectives() (a, b hub.Objective, err error) {
	if a, err = hub.ParseObjective(c.Pareto.A); err != nil {
		return a, b, profile.Invalid("pareto.a", "%v", err)
	}
	if b, err = hub.ParseObjective(c.Pareto.B); err != nil {
		return a, b, profile.Invalid("pareto.b", "%v", err)
	}
	return a, b, nil
}

// ParetoConfig is the scan configuration, without publisher or callback.
func (c Config) ParetoConfig() (pareto.Config, error) {
	a, b, err := c.Objectives()
	if err != nil {
		return pareto.Config{}, err
	}
	cfg := pareto.Config{A: a, B: b, Steps: c.Pareto.Steps, Workers: c.Pareto.Workers}
	if c.Pareto.InvestmentCeiling != nil {
		cfg.Bounds = []hub.Bound{{Objective: hub.Investment, Limit: *c.Pareto.InvestmentCeiling}}
	}
	return cfg, nil
}

// Inputs loads the configured profiles. Relative paths are resolved
// against the directory of the configuration file.
func (c Config) Inputs(quiet bool) (hub.Inputs, error) {
	var in hub.Inputs
	var err error
	if in.HeatDemand, err = c.load("heat_demand", c.Profiles.HeatDemand, quiet, true); err != nil {
		return in, err
	}
	if in.ElecDemand, err = c.load("elec_demand", c.Profiles.ElecDemand, quiet, true); err != nil {
		return in, err
	}
	if in.Solar, err = c.load("solar", c.Profiles.Solar, quiet, c.Assets.PV != nil); err != nil {
		return in, err
	}
	if in.WindSpeed, err = c.load("wind_speed", c.Profiles.WindSpeed, quiet, c.Assets.Wind != nil); err != nil {
		return in, err
	}
	return in, nil
}

func (c Config) load(name string, p Profile, quiet, required bool) ([]float64, error) {
	if p.Path == "" && p.ClearSky != nil {
		s := profile.ClearSky(*p.ClearSky, clearSkyStart, c.Hub.Horizon)
		if p.Scale != 0 && p.Scale != 1 {
			floats.Scale(p.Scale, s)
		}
		return s, nil
	}
	if p.Path == "" {
		if required {
			return nil, profile.Invalid("profiles."+name, "no path")
		}
		return nil, nil
	}
	path := p.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.dir, path)
	}
	return profile.LoadCSV(path, profile.Options{
		Column: p.Column,
		Scale:  p.Scale,
		Shift:  p.Shift,
		Quiet:  quiet,
	})
}
