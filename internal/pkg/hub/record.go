package hub

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"gonum.org/v1/gonum/floats"
)

// exchangeTol is the flow below which an exchange counts as idle.
const exchangeTol = 1e-6

// Record is the read-out of one successful solve. It is created by
// Model.Record and not modified afterwards.
type Record struct {
	ID         uuid.UUID `json:"id" bson:"_id"`
	Hub        uuid.UUID `json:"hub" bson:"hub"`
	Objective  Objective `json:"objective" bson:"objective"`
	Bounds     []Bound   `json:"bounds,omitempty" bson:"bounds,omitempty"`
	Cost       float64   `json:"cost" bson:"cost"`
	Emissions  float64   `json:"emissions" bson:"emissions"`
	Jobs       float64   `json:"jobs" bson:"jobs"`
	Investment float64   `json:"investment" bson:"investment"`
	// Capacities maps asset name to installed capacity.
	Capacities map[string]float64 `json:"capacities" bson:"capacities"`
	// Production maps "<asset>.<flow>" to the annual total of that flow.
	Production map[string]float64 `json:"production" bson:"production"`
	// Flows maps asset name and flow name to the hourly series.
	Flows map[string]map[string][]float64 `json:"flows,omitempty" bson:"-"`
	// PVRoofShare is the fraction of the available roof covered, when known.
	PVRoofShare               *float64      `json:"pv_roof_share,omitempty" bson:"pv_roof_share,omitempty"`
	SimultaneousExchangeHours int           `json:"simultaneous_exchange_hours" bson:"simultaneous_exchange_hours"`
	Duration                  time.Duration `json:"duration" bson:"duration"`
	Created                   time.Time     `json:"created" bson:"created"`

	x []float64
}

// Value returns the realized value of objective o.
func (r Record) Value(o Objective) float64 {
	switch o {
	case Cost:
		return r.Cost
	case Emissions:
		return r.Emissions
	case Jobs:
		return r.Jobs
	default:
		return r.Investment
	}
}

// Record reads a solved assignment back into named quantities.
func (m *Model) Record(o Objective, bounds []Bound, res solver.Result) (Record, error) {
	if len(res.X) != m.lp.NumVariables() {
		return Record{}, fmt.Errorf("solution has %d values, model has %d variables", len(res.X), m.lp.NumVariables())
	}
	ID, err := uuid.NewRandom()
	if err != nil {
		return Record{}, err
	}
	x := append([]float64(nil), res.X...)

	r := Record{
		ID:         ID,
		Hub:        m.pid,
		Objective:  o,
		Bounds:     append([]Bound(nil), bounds...),
		Cost:       m.objectives[Cost].Eval(x),
		Emissions:  m.objectives[Emissions].Eval(x),
		Jobs:       m.objectives[Jobs].Eval(x),
		Investment: m.objectives[Investment].Eval(x),
		Capacities: make(map[string]float64),
		Production: make(map[string]float64),
		Flows:      make(map[string]map[string][]float64, len(m.members)),
		Duration:   res.Duration,
		Created:    time.Now(),
		x:          x,
	}

	for _, member := range m.members {
		name := member.Name()
		if inv, ok := member.(asset.Investable); ok {
			r.Capacities[name] = x[inv.Capacity()]
		}
		series := make(map[string][]float64)
		for flow, vars := range member.Flows() {
			values := make([]float64, len(vars))
			for i, v := range vars {
				values[i] = x[v]
			}
			series[flow] = values
			if flow != "soc" {
				r.Production[name+"."+flow] = floats.Sum(values)
			}
		}
		r.Flows[name] = series
	}

	if m.pv != nil {
		if share, ok := m.pv.RoofShare(x[m.pv.Capacity()]); ok {
			r.PVRoofShare = &share
		}
	}
	r.SimultaneousExchangeHours = m.grid.SimultaneousHours(x, exchangeTol)
	return r, nil
}
