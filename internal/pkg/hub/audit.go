package hub

import (
	"errors"
	"fmt"

	"github.com/ohowland/energyhub/internal/pkg/asset"
)

// ErrNoSolution is returned when auditing a record that carries no assignment.
var ErrNoSolution = errors.New("hub: record carries no solution")

// BalanceError reports a carrier balance that does not meet demand.
type BalanceError struct {
	Carrier asset.Carrier
	Hour    int
	Supply  float64
	Demand  float64
}

func (e BalanceError) Error() string {
	return fmt.Sprintf("%s balance at hour %d: supply %g, demand %g", e.Carrier, e.Hour, e.Supply, e.Demand)
}

// Audit re-checks a solved record against the physical rules of the hub:
// every carrier balance and every asset's own invariants. It returns the
// first violation found.
func (m *Model) Audit(r Record, tol float64) error {
	x := r.x
	if len(x) != m.lp.NumVariables() {
		return ErrNoSolution
	}
	for _, c := range asset.Carriers {
		for t := 0; t < m.params.Horizon; t++ {
			supply := m.balance(c, t).Eval(x)
			if demand := m.demand(c, t); !asset.Near(supply, demand, tol) {
				return BalanceError{Carrier: c, Hour: t, Supply: supply, Demand: demand}
			}
		}
	}
	for _, member := range m.members {
		if a, ok := member.(asset.Auditor); ok {
			if err := a.Audit(x, tol); err != nil {
				return err
			}
		}
	}
	return nil
}
