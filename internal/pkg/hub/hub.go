// Package hub assembles the energy hub linear program: it builds every
// configured asset on one shared lp.Model, adds the carrier balances and
// composes the objectives. The model is frozen once built and shared
// read-only by every solve.
package hub

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/asset/boiler"
	"github.com/ohowland/energyhub/internal/pkg/asset/chp"
	"github.com/ohowland/energyhub/internal/pkg/asset/ess"
	"github.com/ohowland/energyhub/internal/pkg/asset/grid"
	"github.com/ohowland/energyhub/internal/pkg/asset/heatpump"
	"github.com/ohowland/energyhub/internal/pkg/asset/pv"
	"github.com/ohowland/energyhub/internal/pkg/asset/wind"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/profile"
)

// DefaultYears is the operating horizon of the lifecycle objectives.
const DefaultYears = 25

// Tariff is a year-one price and its annual escalation rate.
type Tariff struct {
	Price      float64 `json:"Price" mapstructure:"price"`
	Escalation float64 `json:"Escalation" mapstructure:"escalation"`
}

// EmissionFactors are kg CO2 per kWh imported.
type EmissionFactors struct {
	Gas         float64 `json:"Gas" mapstructure:"gas"`
	Electricity float64 `json:"Electricity" mapstructure:"electricity"`
}

// Params holds the economic and time frame parameters of a hub.
type Params struct {
	Horizon       int             `json:"Horizon" mapstructure:"horizon"`
	StorageAnchor int             `json:"StorageAnchor" mapstructure:"storage_anchor"`
	Years         int             `json:"Years" mapstructure:"years"`
	DiscountRate  float64         `json:"DiscountRate" mapstructure:"discount_rate"`
	Gas           Tariff          `json:"Gas" mapstructure:"gas"`
	Electricity   Tariff          `json:"Electricity" mapstructure:"electricity"`
	FeedIn        Tariff          `json:"FeedIn" mapstructure:"feed_in"`
	Emissions     EmissionFactors `json:"Emissions" mapstructure:"emissions"`
}

func (p Params) withDefaults() Params {
	if p.Horizon == 0 {
		p.Horizon = profile.HoursPerYear
	}
	if p.Years == 0 {
		p.Years = DefaultYears
	}
	return p
}

func (p Params) validate() error {
	switch {
	case p.Horizon < 0:
		return profile.Invalid("horizon", "%d hours", p.Horizon)
	case p.StorageAnchor < 0 || p.StorageAnchor > p.Horizon:
		return profile.Invalid("storage_anchor", "%d outside [0, %d]", p.StorageAnchor, p.Horizon)
	case p.Years < 0:
		return profile.Invalid("years", "%d", p.Years)
	case p.DiscountRate <= -1:
		return profile.Invalid("discount_rate", "%g", p.DiscountRate)
	}
	for name, t := range map[string]Tariff{"gas": p.Gas, "electricity": p.Electricity, "feed_in": p.FeedIn} {
		if t.Price < 0 || t.Escalation <= -1 {
			return profile.Invalid(name+" tariff", "price %g escalation %g", t.Price, t.Escalation)
		}
	}
	if p.Emissions.Gas < 0 || p.Emissions.Electricity < 0 {
		return profile.Invalid("emissions", "negative emission factor")
	}
	return nil
}

// validateExchange rejects a feed-in tariff worth more over the lifecycle
// than the import tariff on a grid limited in neither direction. Cost
// minimization would import to export without bound.
func (p Params) validateExchange(g grid.MachineConfig) error {
	if g.MaxImport != nil || g.MaxExport != nil {
		return nil
	}
	buy := p.Electricity.Price * PresentValueFactor(p.DiscountRate, p.Electricity.Escalation, p.Years)
	sell := p.FeedIn.Price * PresentValueFactor(p.DiscountRate, p.FeedIn.Escalation, p.Years)
	if sell > buy {
		return profile.Invalid("feed_in tariff", "lifecycle value %g exceeds import value %g on a grid without max_import or max_export", sell, buy)
	}
	return nil
}

// Inputs are the hourly demand and resource series.
type Inputs struct {
	HeatDemand []float64
	ElecDemand []float64
	Solar      []float64
	WindSpeed  []float64
}

// Assets selects the technologies of a hub. Nil entries are not installed;
// the grid connection is always present.
type Assets struct {
	Boiler   *boiler.MachineConfig   `json:"Boiler,omitempty" mapstructure:"boiler"`
	HeatPump *heatpump.MachineConfig `json:"HeatPump,omitempty" mapstructure:"heat_pump"`
	CHP      *chp.MachineConfig      `json:"CHP,omitempty" mapstructure:"chp"`
	PV       *pv.MachineConfig       `json:"PV,omitempty" mapstructure:"pv"`
	Wind     *wind.MachineConfig     `json:"Wind,omitempty" mapstructure:"wind"`
	Storage  []ess.MachineConfig     `json:"Storage,omitempty" mapstructure:"storage"`
	Grid     grid.MachineConfig      `json:"Grid" mapstructure:"grid"`
}

// Model is a built and frozen hub program together with the members that
// declared its variables.
type Model struct {
	pid        uuid.UUID
	params     Params
	inputs     Inputs
	lp         *lp.Model
	members    []asset.Member
	grid       *grid.Asset
	pv         *pv.Asset
	objectives map[Objective]lp.Expr
}

// New validates the inputs, builds every asset, the balances and the
// objectives, and freezes the model. Malformed series and parameters are
// reported as *profile.ValidationError before any constraint is built.
func New(params Params, inputs Inputs, assets Assets) (*Model, error) {
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	if err := params.validateExchange(assets.Grid); err != nil {
		return nil, err
	}
	if err := profile.ValidateNonNegative("heat_demand", inputs.HeatDemand, params.Horizon); err != nil {
		return nil, err
	}
	if err := profile.ValidateNonNegative("elec_demand", inputs.ElecDemand, params.Horizon); err != nil {
		return nil, err
	}

	PID, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	m := &Model{
		pid:    PID,
		params: params,
		inputs: inputs,
		lp:     lp.NewModel(),
	}
	if err := m.install(assets); err != nil {
		return nil, err
	}

	frame := asset.Frame{Horizon: params.Horizon, Anchor: params.StorageAnchor}
	for _, member := range m.members {
		if err := member.Build(m.lp, frame); err != nil {
			return nil, fmt.Errorf("build %s: %w", member.Name(), err)
		}
	}
	if err := m.lp.NewConstraint(m.balances()...); err != nil {
		return nil, err
	}
	m.objectives = m.compose()
	m.lp.Freeze()
	return m, nil
}

func (m *Model) install(assets Assets) error {
	g, err := grid.New(assets.Grid)
	if err != nil {
		return profile.Invalid("grid", "%v", err)
	}
	m.grid = g
	m.members = append(m.members, g)

	add := func(name string, member asset.Member, err error) error {
		if err != nil {
			return profile.Invalid(name, "%v", err)
		}
		m.members = append(m.members, member)
		return nil
	}
	if c := assets.Boiler; c != nil {
		a, err := boiler.New(*c)
		if err := add("boiler", a, err); err != nil {
			return err
		}
	}
	if c := assets.HeatPump; c != nil {
		a, err := heatpump.New(*c)
		if err := add("heat_pump", a, err); err != nil {
			return err
		}
	}
	if c := assets.CHP; c != nil {
		a, err := chp.New(*c)
		if err := add("chp", a, err); err != nil {
			return err
		}
	}
	if c := assets.PV; c != nil {
		a, err := pv.New(*c, m.inputs.Solar)
		if err := add("pv", a, err); err != nil {
			return err
		}
		m.pv = a
	}
	if c := assets.Wind; c != nil {
		a, err := wind.New(*c, m.inputs.WindSpeed)
		if err := add("wind", a, err); err != nil {
			return err
		}
	}
	for i, c := range assets.Storage {
		a, err := ess.New(c)
		if err := add(fmt.Sprintf("storage[%d]", i), a, err); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(m.members))
	for _, member := range m.members {
		if seen[member.Name()] {
			return profile.Invalid("assets", "duplicate asset name %q", member.Name())
		}
		seen[member.Name()] = true
	}
	return nil
}

// PID is a getter for the hub PID
func (m Model) PID() uuid.UUID {
	return m.pid
}

// Params is a getter for the hub parameters, with defaults applied.
func (m Model) Params() Params {
	return m.params
}

// Horizon is the number of modelled hours.
func (m Model) Horizon() int {
	return m.params.Horizon
}

// LP returns the frozen base program.
func (m Model) LP() *lp.Model {
	return m.lp
}

// Members returns the installed assets in build order, grid first.
func (m Model) Members() []asset.Member {
	return m.members
}

// Member returns the installed asset called name.
func (m Model) Member(name string) (asset.Member, bool) {
	for _, member := range m.members {
		if member.Name() == name {
			return member, true
		}
	}
	return nil, false
}

// Grid returns the grid connection.
func (m Model) Grid() *grid.Asset {
	return m.grid
}

// PeakHeat is the largest hourly heat demand.
func (m Model) PeakHeat() float64 {
	return profile.Peak(m.inputs.HeatDemand)
}

// HeatUnitCosts lists the investment per kW of heat of every installed heat
// source that is not excluded by a zero capacity ceiling.
func (m Model) HeatUnitCosts() []float64 {
	var costs []float64
	for _, member := range m.members {
		src, ok := member.(asset.HeatSource)
		if !ok {
			continue
		}
		if inv, ok := member.(asset.Investable); ok {
			if c := inv.Economics().MaxCapacity; c != nil && *c == 0 {
				continue
			}
		}
		costs = append(costs, src.HeatUnitCost())
	}
	return costs
}
