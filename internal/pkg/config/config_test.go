package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ohowland/energyhub/internal/pkg/asset/ess"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/profile"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"gotest.tools/v3/assert"
)

const hubYAML = `
hub:
  horizon: 3
  discount_rate: 0.03
  gas:
    price: 0.06
    escalation: 0.02
  emissions:
    gas: 0.2
    electricity: 0.4
assets:
  boiler:
    efficiency: 0.9
    unit_cost: 110
  heat_pump:
    name: hp
    cop: 3
    unit_cost: 850
    max_capacity: 0
  storage:
    - name: tank
      kind: thermal
      self_discharge: 0.01
      charge_efficiency: 0.9
      discharge_efficiency: 0.9
      c_rate: 0.25
      unit_cost: 10
profiles:
  heat_demand:
    path: demand.csv
    column: heat
  elec_demand:
    path: demand.csv
    column: elec
    scale: 2
pareto:
  b: jobs
  investment_ceiling: 5000
scenario:
  community:
    population: 100
    income_share: 0.01
  ceilings:
    - name: tight
      limit: 10
sinks:
  mysql:
    database: results
  http: ":9090"
`

const demandCSV = `hour,heat,elec
0,1,0.5
1,2,0.5
2,3,1
`

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "demand.csv"), []byte(demandCSV), 0o644))
	path := filepath.Join(dir, "hub.yaml")
	assert.NilError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)

	assert.Equal(t, cfg.Hub.Horizon, 3)
	assert.Equal(t, cfg.Hub.Years, hub.DefaultYears)
	assert.Equal(t, cfg.Hub.Gas.Escalation, 0.02)
	assert.Equal(t, cfg.Hub.Emissions.Electricity, 0.4)

	assert.Assert(t, cfg.Assets.Boiler != nil)
	assert.Equal(t, cfg.Assets.Boiler.UnitCost, 110.0)
	assert.Equal(t, cfg.Assets.HeatPump.Name, "hp")
	assert.Equal(t, *cfg.Assets.HeatPump.MaxCapacity, 0.0)
	assert.Assert(t, cfg.Assets.CHP == nil)
	assert.Equal(t, len(cfg.Assets.Storage), 1)
	assert.Equal(t, cfg.Assets.Storage[0].Kind, ess.Thermal)
	assert.Equal(t, cfg.Assets.Storage[0].CRate, 0.25)

	assert.Equal(t, cfg.Scenario.Community.Population, 100.0)
	assert.Equal(t, cfg.Scenario.Ceilings[0].Limit, 10.0)
	assert.Assert(t, cfg.Sinks.MySQL != nil)
	assert.Equal(t, cfg.Sinks.MySQL.Database, "results")
	assert.Assert(t, cfg.Sinks.MongoDB == nil)
	assert.Equal(t, cfg.Sinks.HTTP, ":9090")
}

func TestParetoConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)

	pc, err := cfg.ParetoConfig()
	assert.NilError(t, err)
	assert.Equal(t, pc.A, hub.Cost)
	assert.Equal(t, pc.B, hub.Jobs)
	assert.Equal(t, pc.Steps, 9)
	assert.DeepEqual(t, pc.Bounds, []hub.Bound{{Objective: hub.Investment, Limit: 5000}})
}

func TestInputsResolveRelativePaths(t *testing.T) {
	cfg, err := Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)

	in, err := cfg.Inputs(true)
	assert.NilError(t, err)
	assert.DeepEqual(t, in.HeatDemand, []float64{1, 2, 3})
	assert.DeepEqual(t, in.ElecDemand, []float64{1, 1, 2})
	assert.Assert(t, in.Solar == nil)
}

func TestInputsRequireSolarForPV(t *testing.T) {
	body := strings.Replace(hubYAML, "assets:\n", "assets:\n  pv:\n    unit_cost: 1\n", 1)
	cfg, err := Load(writeConfig(t, body))
	assert.NilError(t, err)
	assert.Assert(t, cfg.Assets.PV != nil)

	_, err = cfg.Inputs(true)
	var verr *profile.ValidationError
	assert.Assert(t, errors.As(err, &verr))
	assert.Equal(t, verr.Field, "profiles.solar")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("ENERGYHUB_HUB_DISCOUNT_RATE", "0.07")
	cfg, err := Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Hub.DiscountRate, 0.07)
}

func TestDotEnvIsLoaded(t *testing.T) {
	t.Setenv("ENERGYHUB_HUB_HORIZON", "")
	os.Unsetenv("ENERGYHUB_HUB_HORIZON")
	path := writeConfig(t, hubYAML)
	assert.NilError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte("ENERGYHUB_HUB_HORIZON=2\n"), 0o644))

	cfg, err := Load(path)
	assert.NilError(t, err)
	assert.Equal(t, cfg.Hub.Horizon, 2)
}

func TestLoadRejectsUnknownObjective(t *testing.T) {
	body := strings.Replace(hubYAML, "pareto:\n", "pareto:\n  a: profit\n", 1)
	_, err := Load(writeConfig(t, body))
	assert.ErrorContains(t, err, "pareto")
}

func TestSolverBackend(t *testing.T) {
	cfg, err := Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Solver.Backend, solver.BackendAuto)
	assert.Equal(t, cfg.Solver.Gap, solver.DefaultGap)

	t.Setenv("ENERGYHUB_SOLVER_BACKEND", "barrier")
	cfg, err = Load(writeConfig(t, hubYAML))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Solver.Options().Backend, solver.BackendBarrier)

	t.Setenv("ENERGYHUB_SOLVER_BACKEND", "clp")
	_, err = Load(writeConfig(t, hubYAML))
	assert.ErrorContains(t, err, `unknown backend "clp"`)
}

func TestInputsGenerateClearSkySolar(t *testing.T) {
	body := strings.Replace(hubYAML, "assets:\n", "assets:\n  pv:\n    efficiency: 0.15\n", 1)
	body = strings.Replace(body, "profiles:\n", "profiles:\n  solar:\n    clear_sky:\n      latitude: 42\n      tilt: 30\n", 1)
	cfg, err := Load(writeConfig(t, body))
	assert.NilError(t, err)
	assert.Equal(t, cfg.Profiles.Solar.ClearSky.Latitude, 42.0)

	in, err := cfg.Inputs(true)
	assert.NilError(t, err)
	assert.Equal(t, len(in.Solar), 3)
	for _, v := range in.Solar {
		assert.Equal(t, v, 0.0)
	}
}
