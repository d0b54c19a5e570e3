// Package pv models a photovoltaic array sized in square metres. Output is
// fixed by capacity and the hourly solar yield; there is no input flow.
package pv

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/profile"
)

// Asset is a datastructure for a PV Asset
type Asset struct {
	pid      uuid.UUID
	config   MachineConfig
	solar    []float64
	capacity lp.Var
	out      []lp.Var
}

// MachineConfig holds the PV configuration parameters. When MaxCapacity is
// unset the ceiling is SiteArea * RoofShare, if both are given.
type MachineConfig struct {
	Name            string  `json:"Name" mapstructure:"name"`
	Efficiency      float64 `json:"Efficiency" mapstructure:"efficiency"`
	SiteArea        float64 `json:"SiteArea" mapstructure:"site_area"`
	RoofShare       float64 `json:"RoofShare" mapstructure:"roof_share"`
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

// Capacity is the installed panel area variable [m2].
func (a Asset) Capacity() lp.Var {
	return a.capacity
}

// Economics returns the capacity-linked coefficients with the roof area
// ceiling applied.
func (a Asset) Economics() asset.Economics {
	e := a.config.Economics
	e.MaxCapacity = a.ceiling()
	return e
}

func (a Asset) ceiling() *float64 {
	if a.config.MaxCapacity != nil {
		return a.config.MaxCapacity
	}
	if a.config.SiteArea > 0 && a.config.RoofShare > 0 {
		return asset.Ceiling(a.config.SiteArea * a.config.RoofShare)
	}
	return nil
}

// RoofShare returns the fraction of the available roof covered by an
// installed area, or false when no roof area is configured.
func (a Asset) RoofShare(installed float64) (float64, bool) {
	roof := a.config.SiteArea * a.config.RoofShare
	if roof <= 0 {
		return 0, false
	}
	return installed / roof, true
}

// Yield is the output per unit capacity at hour t.
func (a Asset) Yield(t int) float64 {
	return a.solar[t] * a.config.Efficiency
}

// Build declares capacity and the output series pinned to the solar yield.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	if err := profile.ValidateNonNegative(a.config.Name+".solar", a.solar, f.Horizon); err != nil {
		return err
	}
	name := a.config.Name
	capacity, err := asset.NewCapacity(m, name, a.ceiling())
	if err != nil {
		return err
	}
	a.capacity = capacity
	a.out = m.NewSeries(name+".out", f.Horizon)

	cons := make([]lp.Constraint, 0, f.Horizon)
	for t := 0; t < f.Horizon; t++ {
		cons = append(cons, lp.Eq(fmt.Sprintf("%s.yield[%d]", name, t), asset.Pair(a.out[t], 1, a.capacity, -a.Yield(t)), 0))
	}
	return m.NewConstraint(cons...)
}

// Balance adds electricity output.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	if c == asset.Electricity {
		return asset.Single(a.out[t], 1)
	}
	return lp.Expr{}
}

// Flows returns the output series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{"out": a.out}
}

// Audit checks the output against the yield of the installed area.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	for t := range a.out {
		want := capacity * a.Yield(t)
		if got := x[a.out[t]]; !asset.Near(got, want, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "yield", Hour: t, Got: got, Want: want}
		}
	}
	return nil
}

// New returns a configured Asset driven by the hourly solar yield [kWh/m2].
func New(machineConfig MachineConfig, solar []float64) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "pv"
	}
	if machineConfig.Efficiency <= 0 || machineConfig.Efficiency > 1 {
		return nil, fmt.Errorf("%s: efficiency must be in (0, 1], got %g", machineConfig.Name, machineConfig.Efficiency)
	}
	if machineConfig.SiteArea < 0 || machineConfig.RoofShare < 0 || machineConfig.RoofShare > 1 {
		return nil, fmt.Errorf("%s: invalid roof area %g x %g", machineConfig.Name, machineConfig.SiteArea, machineConfig.RoofShare)
	}
	if err := machineConfig.Economics.Validate(machineConfig.Name); err != nil {
		return nil, err
	}

	PID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Asset{pid: PID, config: machineConfig, solar: solar}, nil
}

// NewFromJSON returns an Asset configured from a JSON document.
func NewFromJSON(jsonConfig []byte, solar []float64) (*Asset, error) {
	machineConfig := MachineConfig{}
	if err := json.Unmarshal(jsonConfig, &machineConfig); err != nil {
		return nil, err
	}
	return New(machineConfig, solar)
}
