// Package grid models the hub's single aggregated connection point:
// electricity import and export and gas import. It owns no capacity and no
// cost; prices are applied by the objective.
package grid

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Asset is a datastructure for a Grid Asset
type Asset struct {
	pid        uuid.UUID
	config     MachineConfig
	elecImport []lp.Var
	elecExport []lp.Var
	gasImport  []lp.Var
}

// MachineConfig holds the grid configuration parameters. Optional limits
// bound the hourly exchange.
type MachineConfig struct {
	Name      string   `json:"Name" mapstructure:"name"`
	MaxImport *float64 `json:"MaxImport,omitempty" mapstructure:"max_import"`
	MaxExport *float64 `json:"MaxExport,omitempty" mapstructure:"max_export"`
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

// Import returns the hourly import series of carrier c, nil for heat.
func (a Asset) Import(c asset.Carrier) []lp.Var {
	switch c {
	case asset.Electricity:
		return a.elecImport
	case asset.Gas:
		return a.gasImport
	}
	return nil
}

// Export returns the hourly electricity export series.
func (a Asset) Export() []lp.Var {
	return a.elecExport
}

// Build declares the exchange series. Nonnegativity is native to the
// variables; the only constraints are the optional limits.
func (a *Asset) Build(m *lp.Model, f asset.Frame) error {
	name := a.config.Name
	a.elecImport = m.NewSeries(name+".elec_import", f.Horizon)
	a.elecExport = m.NewSeries(name+".elec_export", f.Horizon)
	a.gasImport = m.NewSeries(name+".gas_import", f.Horizon)

	limit := func(vs []lp.Var, ub *float64) error {
		if ub == nil {
			return nil
		}
		for _, v := range vs {
			if err := m.SetUpper(v, *ub); err != nil {
				return err
			}
		}
		return nil
	}
	if err := limit(a.elecImport, a.config.MaxImport); err != nil {
		return err
	}
	return limit(a.elecExport, a.config.MaxExport)
}

// Balance adds imports and draws exports.
func (a Asset) Balance(c asset.Carrier, t int) lp.Expr {
	switch c {
	case asset.Electricity:
		return asset.Pair(a.elecImport[t], 1, a.elecExport[t], -1)
	case asset.Gas:
		return asset.Single(a.gasImport[t], 1)
	}
	return lp.Expr{}
}

// Flows returns the exchange series.
func (a Asset) Flows() map[string][]lp.Var {
	return map[string][]lp.Var{
		"elec_import": a.elecImport,
		"elec_export": a.elecExport,
		"gas_import":  a.gasImport,
	}
}

// SimultaneousHours counts the hours where electricity is both imported and
// exported above tol.
func (a Asset) SimultaneousHours(x []float64, tol float64) int {
	n := 0
	for t := range a.elecImport {
		if x[a.elecImport[t]] > tol && x[a.elecExport[t]] > tol {
			n++
		}
	}
	return n
}

// New returns a configured Asset
func New(machineConfig MachineConfig) (*Asset, error) {
	if machineConfig.Name == "" {
		machineConfig.Name = "grid"
	}
	for label, v := range map[string]*float64{"import": machineConfig.MaxImport, "export": machineConfig.MaxExport} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("%s: negative %s limit %g", machineConfig.Name, label, *v)
		}
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
