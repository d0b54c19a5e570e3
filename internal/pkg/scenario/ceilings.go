package scenario

import (
	"errors"

	"gonum.org/v1/gonum/floats"
)

// ErrNoHeatSource is returned when no installed technology can supply heat.
var ErrNoHeatSource = errors.New("scenario: no heat source installed")

// Community describes who pays for the hub.
type Community struct {
	Population float64 `json:"Population" mapstructure:"population"`
	// AnnualIncome is the income per person and year.
	AnnualIncome float64 `json:"AnnualIncome" mapstructure:"annual_income"`
	// IncomeShare is the fraction of income invested in the hub.
	IncomeShare float64 `json:"IncomeShare" mapstructure:"income_share"`
	// GovernmentSpend is public energy spending per person and year.
	GovernmentSpend float64 `json:"GovernmentSpend" mapstructure:"government_spend"`
}

// HeatModel is the part of a hub the minimum investment is derived from.
type HeatModel interface {
	PeakHeat() float64
	HeatUnitCosts() []float64
}

// MinimumHeatInvestment is the investment needed to meet peak heat demand
// with the cheapest single heat source. Without heat storage, any lower
// investment ceiling is infeasible.
func MinimumHeatInvestment(peakHeat float64, unitCosts []float64) (float64, error) {
	if len(unitCosts) == 0 {
		return 0, ErrNoHeatSource
	}
	return peakHeat * floats.Min(unitCosts), nil
}

// IncomeCeiling is the share of yearly household income the community invests.
func IncomeCeiling(c Community) float64 {
	return c.AnnualIncome * c.IncomeShare * c.Population
}

// GovernmentCeiling is one year of public energy spending for the community.
func GovernmentCeiling(c Community) float64 {
	return c.GovernmentSpend * c.Population
}

// Standard returns the base, income and government ceilings, in that order.
// Analyze appends the unconstrained baseline.
func Standard(m HeatModel, c Community) ([]Ceiling, error) {
	base, err := MinimumHeatInvestment(m.PeakHeat(), m.HeatUnitCosts())
	if err != nil {
		return nil, err
	}
	return []Ceiling{
		{Name: "base", Limit: base},
		{Name: "income", Limit: IncomeCeiling(c)},
		{Name: "government", Limit: GovernmentCeiling(c)},
	}, nil
}
