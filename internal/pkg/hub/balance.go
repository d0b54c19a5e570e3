package hub

import (
	"fmt"

	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// demand returns the exogenous demand of carrier c at hour t.
func (m *Model) demand(c asset.Carrier, t int) float64 {
	switch c {
	case asset.Heat:
		return m.inputs.HeatDemand[t]
	case asset.Electricity:
		return m.inputs.ElecDemand[t]
	}
	return 0
}

// balance is the signed sum of every member's flows on carrier c at hour t.
func (m *Model) balance(c asset.Carrier, t int) lp.Expr {
	var e lp.Expr
	for _, member := range m.members {
		e.AddExpr(member.Balance(c, t), 1)
	}
	return e
}

// balances emits one equality per carrier and hour, 3 x Horizon in total.
func (m *Model) balances() []lp.Constraint {
	cons := make([]lp.Constraint, 0, len(asset.Carriers)*m.params.Horizon)
	for _, c := range asset.Carriers {
		for t := 0; t < m.params.Horizon; t++ {
			cons = append(cons, lp.Eq(fmt.Sprintf("balance.%s[%d]", c, t), m.balance(c, t), m.demand(c, t)))
		}
	}
	return cons
}
