// Package boiler models a gas boiler: one gas input, one heat output.
package boiler

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Asset is a datastructure for a Gas Boiler Asset
type Asset struct {
	pid      uuid.UUID
	config   MachineConfig
	capacity lp.Var
	in       []lp.Var
	out      []lp.Var
}

// MachineConfig holds the boiler configuration parameters
type MachineConfig struct {
	Name            string  `json:"Name" mapstructure:"name"`
	Efficiency      float64 `json:"Efficiency" mapstructure:"efficiency"`
	asset.Economics `mapstructure:",squash"`
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

// Capacity is the heat capacity variable [kW].
func (a Asset) Capacity() lp.Var {
	return a.capacity
}

// Economics returns the capacity-linked coefficients.
func (a Asset) Economics() asset.Economics {
	return a.config.Economics
}

// HeatUnitCost is the investment per kW of heat output.
func (a Asset) HeatUnitCost() float64 {
	return a.config.UnitCost
}

// Build declares capacity and hourly flows and the conversion constraints.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	name := a.config.Name
	capacity, err := asset.NewCapacity(m, name, a.config.MaxCapacity)
	if err != nil {
		return err
	}
	a.capacity = capacity
	a.in = m.NewSeries(name+".in", f.Horizon)
	a.out = m.NewSeries(name+".out", f.Horizon)

	cons := make([]lp.Constraint, 0, 2*f.Horizon)
	for t := 0; t < f.Horizon; t++ {
		cons = append(cons,
			lp.Eq(fmt.Sprintf("%s.conversion[%d]", name, t), asset.Pair(a.out[t], 1, a.in[t], -a.config.Efficiency), 0),
			lp.Le(fmt.Sprintf("%s.rating[%d]", name, t), asset.Pair(a.out[t], 1, a.capacity, -1), 0),
		)
	}
	return m.NewConstraint(cons...)
}

// Balance adds heat output and draws gas input.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	switch c {
	case asset.Heat:
		return asset.Single(a.out[t], 1)
	case asset.Gas:
		return asset.Single(a.in[t], -1)
	}
	return lp.Expr{}
}

// Flows returns the gas input and heat output series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{"in": a.in, "out": a.out}
}

// Audit checks conversion and rating on a solved assignment.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	for t := range a.out {
		in, out := x[a.in[t]], x[a.out[t]]
		if !asset.Near(out, in*a.config.Efficiency, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "conversion", Hour: t, Got: out, Want: in * a.config.Efficiency}
		}
		if out > capacity+tol*(1+capacity) {
			return asset.Violation{Asset: a.config.Name, Rule: "rating", Hour: t, Got: out, Want: capacity}
		}
	}
	return nil
}

// New returns a configured Asset
func New(machineConfig MachineConfig) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "boiler"
	}
	if machineConfig.Efficiency <= 0 {
		return nil, fmt.Errorf("%s: efficiency must be positive, got %g", machineConfig.Name, machineConfig.Efficiency)
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
