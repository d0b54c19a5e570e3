// Package dispatch defines the single-objective optimizer consumed by the
// pareto scan and the scenario analyzer.
package dispatch

import (
	"context"

	"github.com/ohowland/energyhub/internal/pkg/hub"
)

// Optimizer solves the hub for one objective under optional bounds on the
// others. An infeasible model or a backend failure is returned as an error
// classified by solver.StatusOf. Implementations must be safe for
// concurrent use.
type Optimizer interface {
	Optimize(ctx context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error)
}

// OptimizerFunc adapts a function to the Optimizer interface.
type OptimizerFunc func(ctx context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error)

// Optimize calls f.
func (f OptimizerFunc) Optimize(ctx context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error) {
	return f(ctx, o, bounds...)
}
