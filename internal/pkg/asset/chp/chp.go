// Package chp models a combined heat and power unit: one gas input feeding
// coupled heat and electricity outputs. Capacity is electrical.
package chp

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Asset is a datastructure for a Combined Heat and Power Asset
type Asset struct {
	pid      uuid.UUID
	config   MachineConfig
	capacity lp.Var
	in       []lp.Var
	heat     []lp.Var
	elec     []lp.Var
}

// MachineConfig holds the CHP configuration parameters
type MachineConfig struct {
	Name                 string  `json:"Name" mapstructure:"name"`
	ElectricalEfficiency float64 `json:"ElectricalEfficiency" mapstructure:"electrical_efficiency"`
	ThermalEfficiency    float64 `json:"ThermalEfficiency" mapstructure:"thermal_efficiency"`
	asset.Economics      `mapstructure:",squash"`
}

// PID is a getter for the asset PID
func (a Asset) PID() uuid.UUID {
	return a.pid
}

// Name is a getter for the asset Name
func (a Asset) Name() string {
	return a.config.Name
}

// Config is a getter for the asset configuration
func (a Asset) Config() MachineConfig {
	return a.config
}

// Capacity is the electrical capacity variable [kWe].
func (a Asset) Capacity() lp.Var {
	return a.capacity
}

// Economics returns the capacity-linked coefficients.
func (a Asset) Economics() asset.Economics {
	return a.config.Economics
}

// HeatUnitCost is the investment per kW of heat output, reached through the
// electrical rating.
func (a Asset) HeatUnitCost() float64 {
	return a.config.UnitCost * a.config.ElectricalEfficiency / a.config.ThermalEfficiency
}

// Build declares capacity, gas input, heat and electricity outputs. Only the
// electrical output is rated against capacity.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	name := a.config.Name
	capacity, err := asset.NewCapacity(m, name, a.config.MaxCapacity)
	if err != nil {
		return err
	}
	a.capacity = capacity
	a.in = m.NewSeries(name+".in", f.Horizon)
	a.heat = m.NewSeries(name+".heat", f.Horizon)
	a.elec = m.NewSeries(name+".elec", f.Horizon)

	cons := make([]lp.Constraint, 0, 3*f.Horizon)
	for t := 0; t < f.Horizon; t++ {
		cons = append(cons,
			lp.Eq(fmt.Sprintf("%s.heat_conversion[%d]", name, t), asset.Pair(a.heat[t], 1, a.in[t], -a.config.ThermalEfficiency), 0),
			lp.Eq(fmt.Sprintf("%s.elec_conversion[%d]", name, t), asset.Pair(a.elec[t], 1, a.in[t], -a.config.ElectricalEfficiency), 0),
			lp.Le(fmt.Sprintf("%s.rating[%d]", name, t), asset.Pair(a.elec[t], 1, a.capacity, -1), 0),
		)
	}
	return m.NewConstraint(cons...)
}

// Balance adds heat and electricity and draws gas.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	switch c {
	case asset.Heat:
		return asset.Single(a.heat[t], 1)
	case asset.Electricity:
		return asset.Single(a.elec[t], 1)
	case asset.Gas:
		return asset.Single(a.in[t], -1)
	}
	return lp.Expr{}
}

// Flows returns the gas input and both output series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{"in": a.in, "heat": a.heat, "elec": a.elec}
}

// Audit checks both conversions and the electrical rating.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	for t := range a.in {
		in := x[a.in[t]]
		if heat := x[a.heat[t]]; !asset.Near(heat, in*a.config.ThermalEfficiency, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "heat conversion", Hour: t, Got: heat, Want: in * a.config.ThermalEfficiency}
		}
		elec := x[a.elec[t]]
		if !asset.Near(elec, in*a.config.ElectricalEfficiency, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "electrical conversion", Hour: t, Got: elec, Want: in * a.config.ElectricalEfficiency}
		}
		if elec > capacity+tol*(1+capacity) {
			return asset.Violation{Asset: a.config.Name, Rule: "rating", Hour: t, Got: elec, Want: capacity}
		}
	}
	return nil
}

// New returns a configured Asset
func New(machineConfig MachineConfig) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "chp"
	}
	if machineConfig.ElectricalEfficiency <= 0 || machineConfig.ThermalEfficiency <= 0 {
		return nil, fmt.Errorf("%s: efficiencies must be positive, got electrical %g thermal %g",
			machineConfig.Name, machineConfig.ElectricalEfficiency, machineConfig.ThermalEfficiency)
	}
	if machineConfig.ElectricalEfficiency+machineConfig.ThermalEfficiency > 1 {
		return nil, fmt.Errorf("%s: combined efficiency %g exceeds 1", machineConfig.Name,
			machineConfig.ElectricalEfficiency+machineConfig.ThermalEfficiency)
	}
	if err := machineConfig.Economics.Validate(machineConfig.Name); err != nil {
		return nil, err
	}

	PID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Asset{pid: PID, config: machineConfig}, nil
}

// NewFromJSON returns an Asset configured from a JSON document.
func NewFromJSON(jsonConfig []byte) (*Asset, error) {
	machineConfig := MachineConfig{}
	if err := json.Unmarshal(jsonConfig, &machineConfig); err != nil {
		return nil, err
	}
	return New(machineConfig)
}
