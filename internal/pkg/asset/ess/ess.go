// Package ess models energy storage: a thermal store on the heat carrier or
// a battery on the electricity carrier. The state of charge recursion is
// unrolled into one equality per hour.
package ess

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Kind selects the carrier a storage device is connected to.
type Kind string

const (
	Thermal Kind = "thermal"
	Battery Kind = "battery"
)

// Carrier returns the carrier the device charges from and discharges to.
func (k Kind) Carrier() (asset.Carrier, error) {
	switch k {
	case Thermal:
		return asset.Heat, nil
	case Battery:
		return asset.Electricity, nil
	default:
		return 0, fmt.Errorf("unknown storage kind %q", string(k))
	}
}

// Asset is a data structure for an ESS Asset
type Asset struct {
	pid       uuid.UUID
	config    MachineConfig
	carrier   asset.Carrier
	anchor    int
	capacity  lp.Var
	charge    []lp.Var
	discharge []lp.Var
	soc       []lp.Var
}

// MachineConfig holds the storage configuration parameters. SelfDischarge is
// the fraction of content lost per hour; CRate caps hourly charge and
// discharge as a fraction of capacity.
type MachineConfig struct {
	Name                string  `json:"Name" mapstructure:"name"`
	Kind                Kind    `json:"Kind" mapstructure:"kind"`
	SelfDischarge       float64 `json:"SelfDischarge" mapstructure:"self_discharge"`
	ChargeEfficiency    float64 `json:"ChargeEfficiency" mapstructure:"charge_efficiency"`
	DischargeEfficiency float64 `json:"DischargeEfficiency" mapstructure:"discharge_efficiency"`
	CRate               float64 `json:"CRate" mapstructure:"c_rate"`
	asset.Economics     `mapstructure:",squash"`
}

// PID is a getter for the asset PID
func (a Asset) PID() uuid.UUID {
	return a.pid
}

// Name is a getter for the asset Name
func (a Asset) Name() string {
	return a.config.Name
}

// Config returns the configuration for the energy storage system asset.
func (a Asset) Config() MachineConfig {
	return a.config
}

// Capacity is the energy capacity variable [kWh].
func (a Asset) Capacity() lp.Var {
	return a.capacity
}

// Economics returns the capacity-linked coefficients.
func (a Asset) Economics() asset.Economics {
	return a.config.Economics
}

// SOC returns the state of charge series, one entry longer than the horizon.
func (a Asset) SOC() []lp.Var {
	return a.soc
}

// Build declares capacity, charge, discharge and state of charge, with the
// C-rate limits, the recursion and the anchor equality.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	if f.Anchor < 0 || f.Anchor > f.Horizon {
		return fmt.Errorf("%s: anchor %d outside [0, %d]", a.config.Name, f.Anchor, f.Horizon)
	}
	name := a.config.Name
	capacity, err := asset.NewCapacity(m, name, a.config.MaxCapacity)
	if err != nil {
		return err
	}
	a.capacity = capacity
	a.anchor = f.Anchor
	a.charge = m.NewSeries(name+".charge", f.Horizon)
	a.discharge = m.NewSeries(name+".discharge", f.Horizon)
	a.soc = m.NewSeries(name+".soc", f.Horizon+1)

	keep := 1 - a.config.SelfDischarge
	cons := make([]lp.Constraint, 0, 4*f.Horizon+2)
	for t := 0; t <= f.Horizon; t++ {
		cons = append(cons, lp.Le(fmt.Sprintf("%s.soc_limit[%d]", name, t), asset.Pair(a.soc[t], 1, a.capacity, -1), 0))
	}
	for t := 0; t < f.Horizon; t++ {
		recursion := lp.NewExpr(
			lp.Term{Var: a.soc[t+1], Coef: 1},
			lp.Term{Var: a.soc[t], Coef: -keep},
			lp.Term{Var: a.charge[t], Coef: -a.config.ChargeEfficiency},
			lp.Term{Var: a.discharge[t], Coef: 1 / a.config.DischargeEfficiency},
		)
		cons = append(cons,
			lp.Eq(fmt.Sprintf("%s.recursion[%d]", name, t), recursion, 0),
			lp.Le(fmt.Sprintf("%s.charge_rate[%d]", name, t), asset.Pair(a.charge[t], 1, a.capacity, -a.config.CRate), 0),
			lp.Le(fmt.Sprintf("%s.discharge_rate[%d]", name, t), asset.Pair(a.discharge[t], 1, a.capacity, -a.config.CRate), 0),
		)
	}
	cons = append(cons, lp.Eq(fmt.Sprintf("%s.anchor[%d]", name, f.Anchor), asset.Single(a.soc[f.Anchor], 1), 0))
	return m.NewConstraint(cons...)
}

// Balance adds discharge and draws charge on the device's carrier.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	if c != a.carrier {
		return lp.Expr{}
	}
	return asset.Pair(a.discharge[t], 1, a.charge[t], -1)
}

// Flows returns the charge, discharge and state of charge series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{"charge": a.charge, "discharge": a.discharge, "soc": a.soc}
}

// Audit checks state of charge bounds, the recursion, C-rate limits and the anchor.
func (a Asset) Audit(x []float64, tol float64) error {
	capacity := x[a.capacity]
	slack := tol * (1 + capacity)
	for t, v := range a.soc {
		if e := x[v]; e < -slack || e > capacity+slack {
			return asset.Violation{Asset: a.config.Name, Rule: "state of charge bounds", Hour: t, Got: e, Want: capacity}
		}
	}
	if e := x[a.soc[a.anchor]]; !asset.Near(e, 0, tol) {
		return asset.Violation{Asset: a.config.Name, Rule: "anchor", Hour: a.anchor, Got: e, Want: 0}
	}
	limit := a.config.CRate * capacity
	for t := range a.charge {
		c, d := x[a.charge[t]], x[a.discharge[t]]
		want := (1-a.config.SelfDischarge)*x[a.soc[t]] + a.config.ChargeEfficiency*c - d/a.config.DischargeEfficiency
		if got := x[a.soc[t+1]]; !asset.Near(got, want, tol) {
			return asset.Violation{Asset: a.config.Name, Rule: "recursion", Hour: t, Got: got, Want: want}
		}
		if c > limit+slack {
			return asset.Violation{Asset: a.config.Name, Rule: "charge rate", Hour: t, Got: c, Want: limit}
		}
		if d > limit+slack {
			return asset.Violation{Asset: a.config.Name, Rule: "discharge rate", Hour: t, Got: d, Want: limit}
		}
	}
	return nil
}

// New returns a configured Asset
func New(machineConfig MachineConfig) (*Asset, error) {
	carrier, err := machineConfig.Kind.Carrier()
	if err != nil {
		return nil, err
	}
	if machineConfig.Name == "" {
		machineConfig.Name = string(machineConfig.Kind)
	}
	cfg := machineConfig
	switch {
	case cfg.SelfDischarge < 0 || cfg.SelfDischarge >= 1:
		return nil, fmt.Errorf("%s: self discharge must be in [0, 1), got %g", cfg.Name, cfg.SelfDischarge)
	case cfg.ChargeEfficiency <= 0 || cfg.ChargeEfficiency > 1:
		return nil, fmt.Errorf("%s: charge efficiency must be in (0, 1], got %g", cfg.Name, cfg.ChargeEfficiency)
	case cfg.DischargeEfficiency <= 0 || cfg.DischargeEfficiency > 1:
		return nil, fmt.Errorf("%s: discharge efficiency must be in (0, 1], got %g", cfg.Name, cfg.DischargeEfficiency)
	case cfg.CRate <= 0:
		return nil, fmt.Errorf("%s: C-rate must be positive, got %g", cfg.Name, cfg.CRate)
	}
	if err := cfg.Economics.Validate(cfg.Name); err != nil {
		return nil, err
	}

	PID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &Asset{pid: PID, config: cfg, carrier: carrier}, nil
}

// NewFromJSON returns an Asset configured from a JSON document.
func NewFromJSON(jsonConfig []byte) (*Asset, error) {
	machineConfig := MachineConfig{}
	if err := json.Unmarshal(jsonConfig, &machineConfig); err != nil {
		return nil, err
	}
	return New(machineConfig)
}
