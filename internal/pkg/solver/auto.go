package solver

import (
	"context"
	"fmt"

	"github.com/ohowland/energyhub/internal/pkg/lp"
)

// Backend names accepted by New.
const (
	BackendAuto    = "auto"
	BackendSimplex = "simplex"
	BackendBarrier = "barrier"
)

// Options selects and tunes a backend.
type Options struct {
	Backend   string
	Tolerance float64 // simplex reduced-cost tolerance
	Gap       float64 // barrier stopping tolerance
}

// New returns the backend named by o.Backend; empty selects BackendAuto.
func New(o Options) (Solver, error) {
	switch o.Backend {
	case "", BackendAuto:
		return NewAuto(NewSimplex(o.Tolerance), NewBarrier(o.Gap)), nil
	case BackendSimplex:
		return NewSimplex(o.Tolerance), nil
	case BackendBarrier:
		return NewBarrier(o.Gap), nil
	}
	return nil, fmt.Errorf("solver: unknown backend %q", o.Backend)
}

// Auto hands problems that fit the dense simplex to it and everything
// larger to the barrier.
type Auto struct {
	dense  *Simplex
	sparse *Barrier
}

func NewAuto(dense *Simplex, sparse *Barrier) *Auto {
	return &Auto{dense: dense, sparse: sparse}
}

func (s *Auto) Solve(ctx context.Context, p lp.Problem) (Result, error) {
	if s.dense.Fits(p) {
		return s.dense.Solve(ctx, p)
	}
	return s.sparse.Solve(ctx, p)
}
