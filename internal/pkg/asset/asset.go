// Package asset defines what every hub member contributes to the linear
// program: variables, constraints and signed flows on each energy carrier.
package asset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// ErrNotBuilt is returned when an asset is queried before Build.
var ErrNotBuilt = errors.New("asset: not built")

// Carrier is an energy carrier with its own nodal balance.
type Carrier int

const (
	Heat Carrier = iota
	Electricity
	Gas
)

// Carriers lists every carrier in balance order.
var Carriers = []Carrier{Heat, Electricity, Gas}

func (c Carrier) String() string {
	switch c {
	case Heat:
		return "heat"
	case Electricity:
		return "electricity"
	case Gas:
		return "gas"
	default:
		return "unknown"
	}
}

// Frame is the shared time frame handed to every builder.
type Frame struct {
	Horizon int // number of hourly steps
	Anchor  int // state of charge index pinned to zero for every storage device
}

// Identifier names a member.
type Identifier interface {
	PID() uuid.UUID
	Name() string
}

// Member is anything that declares variables on the hub model and
// contributes to the carrier balances.
type Member interface {
	Identifier
	Build(*lp.Model, Frame) error
	// Balance returns the signed contribution to carrier c at hour t:
	// production positive, consumption negative. Carriers the member does
	// not touch yield an empty expression.
	Balance(c Carrier, t int) lp.Expr
	// Flows returns the member's hourly variables keyed by flow name.
	Flows() map[string][]lp.Var
}

// Investable members own a capacity that costs money and creates jobs.
type Investable interface {
	Capacity() lp.Var
	Economics() Economics
}

// Auditor members can check their own invariants on a solved assignment.
type Auditor interface {
	Audit(x []float64, tol float64) error
}

// HeatSource members can meet heat demand alone; HeatUnitCost is the
// investment needed per unit of peak heat output.
type HeatSource interface {
	HeatUnitCost() float64
}

// Economics are the capacity-linked coefficients shared by every investable asset.
type Economics struct {
	UnitCost    float64  `json:"UnitCost" mapstructure:"unit_cost"`
	JobsPerUnit float64  `json:"JobsPerUnit" mapstructure:"jobs_per_unit"`
	MaxCapacity *float64 `json:"MaxCapacity,omitempty" mapstructure:"max_capacity"`
}

// Validate checks the economic coefficients of the named asset.
func (e Economics) Validate(name string) error {
	if e.UnitCost < 0 {
		return fmt.Errorf("%s: negative unit cost %g", name, e.UnitCost)
	}
	if e.JobsPerUnit < 0 {
		return fmt.Errorf("%s: negative jobs coefficient %g", name, e.JobsPerUnit)
	}
	if e.MaxCapacity != nil && *e.MaxCapacity < 0 {
		return fmt.Errorf("%s: negative capacity ceiling %g", name, *e.MaxCapacity)
	}
	return nil
}

// Ceiling returns a pointer to v, for literal capacity ceilings.
func Ceiling(v float64) *float64 {
	return &v
}

// NewCapacity declares the capacity variable of an asset and applies its ceiling.
func NewCapacity(m *lp.Model, name string, ceiling *float64) (lp.Var, error) {
	v := m.NewVariable(name + ".capacity")
	if ceiling != nil {
		if err := m.SetUpper(v, *ceiling); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Single returns an expression holding one term.
func Single(v lp.Var, coef float64) lp.Expr {
	return lp.NewExpr(lp.Term{Var: v, Coef: coef})
}

// Pair returns a two term expression.
func Pair(a lp.Var, ca float64, b lp.Var, cb float64) lp.Expr {
	return lp.NewExpr(lp.Term{Var: a, Coef: ca}, lp.Term{Var: b, Coef: cb})
}

// Violation describes one invariant broken by a solved assignment.
type Violation struct {
	Asset string
	Rule  string
	Hour  int
	Got   float64
	Want  float64
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s at hour %d: got %g, want %g", v.Asset, v.Rule, v.Hour, v.Got, v.Want)
}

// Near reports whether got and want agree within tol scaled by magnitude.
func Near(got, want, tol float64) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	scale := 1.0
	if want > 1 || want < -1 {
		scale = want
		if scale < 0 {
			scale = -scale
		}
	}
	return d <= tol*scale
}
