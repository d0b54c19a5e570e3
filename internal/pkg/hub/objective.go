package hub

import (
	"fmt"
	"math"
	"strings"

	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Objective names one of the scalar linear objectives of the hub.
type Objective int

const (
	// Cost is investment plus 25 years of discounted operating cash flow.
	Cost Objective = iota
	// Emissions are the cumulative kg CO2 of imported gas and electricity.
	Emissions
	// Jobs are the job-years created by installed capacity.
	Jobs
	// Investment is the one-time capital expenditure.
	Investment
)

// Objectives lists every objective.
var Objectives = []Objective{Cost, Emissions, Jobs, Investment}

func (o Objective) String() string {
	switch o {
	case Cost:
		return "cost"
	case Emissions:
		return "emissions"
	case Jobs:
		return "jobs"
	case Investment:
		return "investment"
	default:
		return "unknown"
	}
}

// ParseObjective maps a name back to its Objective.
func ParseObjective(s string) (Objective, error) {
	for _, o := range Objectives {
		if strings.EqualFold(s, o.String()) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown objective %q", s)
}

// MarshalText encodes the objective by name.
func (o Objective) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText decodes an objective name.
func (o *Objective) UnmarshalText(text []byte) error {
	v, err := ParseObjective(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Direction is the sense in which the objective improves. Jobs are
// maximized; everything else is minimized.
func (o Objective) Direction() lp.Direction {
	if o == Jobs {
		return lp.Maximize
	}
	return lp.Minimize
}

// Better reports whether a improves on b for this objective.
func (o Objective) Better(a, b float64) bool {
	if o.Direction() == lp.Maximize {
		return a > b
	}
	return a < b
}

// Bound limits an objective: an upper bound for minimized objectives, a
// lower bound for maximized ones.
type Bound struct {
	Objective Objective `json:"objective" bson:"objective"`
	Limit     float64   `json:"limit" bson:"limit"`
}

// Constraint returns the overlay constraint for the bound.
func (b Bound) Constraint(e lp.Expr) lp.Constraint {
	if b.Objective.Direction() == lp.Maximize {
		return lp.Ge(b.Objective.String(), e, b.Limit)
	}
	return lp.Le(b.Objective.String(), e, b.Limit)
}

func (b Bound) String() string {
	if b.Objective.Direction() == lp.Maximize {
		return fmt.Sprintf("%s >= %g", b.Objective, b.Limit)
	}
	return fmt.Sprintf("%s <= %g", b.Objective, b.Limit)
}

// PresentValueFactor is sum over y = 1..years of (1+esc)^(y-1) / (1+d)^y: the
// present value of a year-one cash flow of 1 escalating at esc per year.
func PresentValueFactor(d, esc float64, years int) float64 {
	f := 0.0
	for y := 1; y <= years; y++ {
		f += math.Pow(1+esc, float64(y-1)) / math.Pow(1+d, float64(y))
	}
	return f
}

// Objective returns a copy of the linear expression of o.
func (m *Model) Objective(o Objective) (lp.Expr, error) {
	e, ok := m.objectives[o]
	if !ok {
		return lp.Expr{}, fmt.Errorf("unknown objective %d", int(o))
	}
	return e.Clone(), nil
}

// Problem composes a solve of o under the given bounds on the frozen base.
func (m *Model) Problem(o Objective, bounds ...Bound) (lp.Problem, error) {
	obj, err := m.Objective(o)
	if err != nil {
		return lp.Problem{}, err
	}
	extra := make([]lp.Constraint, 0, len(bounds))
	for _, b := range bounds {
		e, err := m.Objective(b.Objective)
		if err != nil {
			return lp.Problem{}, err
		}
		extra = append(extra, b.Constraint(e))
	}
	return m.lp.With(obj, o.Direction(), extra...)
}

func (m *Model) compose() map[Objective]lp.Expr {
	var investment, jobs lp.Expr
	for _, member := range m.members {
		inv, ok := member.(asset.Investable)
		if !ok {
			continue
		}
		e := inv.Economics()
		investment.Add(inv.Capacity(), e.UnitCost)
		jobs.Add(inv.Capacity(), e.JobsPerUnit)
	}

	p := m.params
	gasPV := p.Gas.Price * PresentValueFactor(p.DiscountRate, p.Gas.Escalation, p.Years)
	elecPV := p.Electricity.Price * PresentValueFactor(p.DiscountRate, p.Electricity.Escalation, p.Years)
	feedInPV := p.FeedIn.Price * PresentValueFactor(p.DiscountRate, p.FeedIn.Escalation, p.Years)
	years := float64(p.Years)

	cost := investment.Clone()
	var emissions lp.Expr
	gas := m.grid.Import(asset.Gas)
	elec := m.grid.Import(asset.Electricity)
	export := m.grid.Export()
	for t := 0; t < p.Horizon; t++ {
		cost.Add(gas[t], gasPV)
		cost.Add(elec[t], elecPV)
		cost.Add(export[t], -feedInPV)
		emissions.Add(gas[t], years*p.Emissions.Gas)
		emissions.Add(elec[t], years*p.Emissions.Electricity)
	}

	return map[Objective]lp.Expr{
		Cost:       cost,
		Emissions:  emissions,
		Jobs:       jobs,
		Investment: investment,
	}
}
