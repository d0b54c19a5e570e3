// Package wind models a wind turbine whose hourly output is a piecewise
// function of wind speed. The regime of every hour is classified once, when
// the asset is built, so each hour contributes a single linear equality.
package wind

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/profile"
)

// Regime is the operating region of the turbine in one hour.
type Regime int

const (
	// Off: speed at or below cut-in, or at or above cut-out.
	Off Regime = iota
	// Partial: between cut-in and rated speed, output interpolated.
	Partial
	// Rated: between rated and cut-out speed, output at capacity.
	Rated
)

func (r Regime) String() string {
	switch r {
	case Off:
		return "off"
	case Partial:
		return "partial"
	case Rated:
		return "rated"
	default:
		return "unknown"
	}
}

// Curve holds the power curve thresholds [m/s].
type Curve struct {
	CutIn  float64 `json:"CutIn" mapstructure:"cut_in"`
	Rated  float64 `json:"Rated" mapstructure:"rated"`
	CutOut float64 `json:"CutOut" mapstructure:"cut_out"`
}

// Validate checks cut-in < rated < cut-out.
func (c Curve) Validate() error {
	if !(0 <= c.CutIn && c.CutIn < c.Rated && c.Rated < c.CutOut) {
		return fmt.Errorf("power curve must satisfy 0 <= cut-in < rated < cut-out, got %g/%g/%g", c.CutIn, c.Rated, c.CutOut)
	}
	return nil
}

// Classify returns the regime of speed and the output per unit capacity.
func (c Curve) Classify(speed float64) (Regime, float64) {
	switch {
	case speed <= c.CutIn || speed >= c.CutOut:
		return Off, 0
	case speed >= c.Rated:
		return Rated, 1
	default:
		return Partial, (speed - c.CutIn) / (c.Rated - c.CutIn)
	}
}

// Asset is a datastructure for a Wind Turbine Asset
type Asset struct {
	pid      uuid.UUID
	config   MachineConfig
	speed    []float64
	regimes  []Regime
	factors  []float64
	capacity lp.Var
	out      []lp.Var
}

// MachineConfig holds the wind turbine configuration parameters
type MachineConfig struct {
	Name            string `json:"Name" mapstructure:"name"`
	Curve           `mapstructure:",squash"`
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

// Capacity is the rated power variable [kW].
func (a Asset) Capacity() lp.Var {
	return a.capacity
}

// Economics returns the capacity-linked coefficients.
func (a Asset) Economics() asset.Economics {
	return a.config.Economics
}

// Regimes returns the precomputed regime of every hour.
func (a Asset) Regimes() []Regime {
	return a.regimes
}

// Factor is the output per unit capacity at hour t.
func (a Asset) Factor(t int) float64 {
	return a.factors[t]
}

// Build classifies every hour and pins the output to factor * capacity.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	if err := profile.ValidateNonNegative(a.config.Name+".wind_speed", a.speed, f.Horizon); err != nil {
		return err
	}
	a.regimes = make([]Regime, f.Horizon)
	a.factors = make([]float64, f.Horizon)
	for t, s := range a.speed {
		a.regimes[t], a.factors[t] = a.config.Classify(s)
	}

	name := a.config.Name
	capacity, err := asset.NewCapacity(m, name, a.config.MaxCapacity)
	if err != nil {
		return err
	}
	a.capacity = capacity
	a.out = m.NewSeries(name+".out", f.Horizon)

	cons := make([]lp.Constraint, 0, f.Horizon)
	for t := 0; t < f.Horizon; t++ {
		label := fmt.Sprintf("%s.%s[%d]", name, a.regimes[t], t)
		cons = append(cons, lp.Eq(label, asset.Pair(a.out[t], 1, a.capacity, -a.factors[t]), 0))
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

// Audit checks the output against the power curve.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	for t := range a.out {
		want := capacity * a.factors[t]
		if got := x[a.out[t]]; !asset.Near(got, want, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "power curve " + a.regimes[t].String(), Hour: t, Got: got, Want: want}
		}
	}
	return nil
}

// New returns a configured Asset driven by the hourly wind speed [m/s].
func New(machineConfig MachineConfig, speed []float64) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "wind"
	}
	if err := machineConfig.Curve.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", machineConfig.Name, err)
	}
	if err := machineConfig.Economics.Validate(machineConfig.Name); err != nil {
		return nil, err
	}

	PID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Asset{pid: PID, config: machineConfig, speed: speed}, nil
}

// NewFromJSON returns an Asset configured from a JSON document.
func NewFromJSON(jsonConfig []byte, speed []float64) (*Asset, error) {
	machineConfig := MachineConfig{}
	if err := json.Unmarshal(jsonConfig, &machineConfig); err != nil {
		return nil, err
	}
	return New(machineConfig, speed)
}
