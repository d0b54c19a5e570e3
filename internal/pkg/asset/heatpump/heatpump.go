// Package heatpump models a ground source heat pump that turns electricity
// into heat at a fixed coefficient of performance.
package heatpump

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Asset is a datastructure for a Ground Source Heat Pump Asset
type Asset struct {
	pid      uuid.UUID
	config   MachineConfig
	capacity lp.Var
	in       []lp.Var
	out      []lp.Var
}

// MachineConfig holds the heat pump configuration parameters
type MachineConfig struct {
	Name            string  `json:"Name" mapstructure:"name"`
	COP             float64 `json:"COP" mapstructure:"cop"`
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

// Build declares capacity, electrical input and heat output.
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
			lp.Eq(fmt.Sprintf("%s.conversion[%d]", name, t), asset.Pair(a.out[t], 1, a.in[t], -a.config.COP), 0),
			lp.Le(fmt.Sprintf("%s.rating[%d]", name, t), asset.Pair(a.out[t], 1, a.capacity, -1), 0),
		)
	}
	return m.NewConstraint(cons...)
}

// Balance adds heat output and draws electricity.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	switch c {
	case asset.Heat:
		return asset.Single(a.out[t], 1)
	case asset.Electricity:
		return asset.Single(a.in[t], -1)
	}
	return lp.Expr{}
}

// Flows returns the electrical input and heat output series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{"in": a.in, "out": a.out}
}

// Audit checks conversion and rating on a solved assignment.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	for t := range a.out {
		want := x[a.in[t]] * a.config.COP
		if out := x[a.out[t]]; !asset.Near(out, want, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "conversion", Hour: t, Got: out, Want: want}
		} else if out > capacity+tol*(1+capacity) {
			return asset.Violation{Asset: a.config.Name, Rule: "rating", Hour: t, Got: out, Want: capacity}
		}
	}
	return nil
}

// New returns a configured Asset
func New(machineConfig MachineConfig) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "heatpump"
	}
	if machineConfig.COP <= 0 {
		return nil, fmt.Errorf("%s: COP must be positive, got %g", machineConfig.Name, machineConfig.COP)
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
