// Package lpdispatch optimizes a hub.Model with a linear programming
// backend and publishes every record it produces.
package lpdispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/rs/zerolog"
)

// DefaultAuditTolerance is the relative tolerance of the post-solve audit.
const DefaultAuditTolerance = 1e-6

// LPDispatch solves a frozen hub model. It holds no per-solve state, so one
// value serves concurrent sweeps.
type LPDispatch struct {
	pid       uuid.UUID
	publisher *msg.PubSub
	model     *hub.Model
	solver    solver.Solver
	auditTol  float64
}

// New returns an LPDispatch over model. A nil publisher disables publishing.
func New(model *hub.Model, s solver.Solver, publisher *msg.PubSub) (*LPDispatch, error) {
	if model == nil || s == nil {
		return nil, fmt.Errorf("lpdispatch: model and solver are required")
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	return &LPDispatch{
		pid:       pid,
		publisher: publisher,
		model:     model,
		solver:    s,
		auditTol:  DefaultAuditTolerance,
	}, nil
}

// PID is a getter for the dispatch PID
func (d LPDispatch) PID() uuid.UUID {
	return d.pid
}

// Model is a getter for the hub model
func (d LPDispatch) Model() *hub.Model {
	return d.model
}

// SetAuditTolerance overrides DefaultAuditTolerance; zero disables the audit.
func (d *LPDispatch) SetAuditTolerance(tol float64) {
	d.auditTol = tol
}

// Optimize solves the model for o under bounds, audits the solution and
// publishes the record on msg.Record.
func (d *LPDispatch) Optimize(ctx context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("component", "lpdispatch").
		Stringer("objective", o).
		Array("bounds", boundsArray(bounds)).
		Logger()

	p, err := d.construct(o, bounds)
	if err != nil {
		return hub.Record{}, err
	}

	logger.Debug().Int("constraints", p.NumConstraints()).Msg("solving")
	res, err := d.solver.Solve(ctx, p)
	if err != nil {
		logger.Warn().Err(err).Stringer("status", solver.StatusOf(err)).Msg("solve failed")
		return hub.Record{}, err
	}

	rec, err := d.model.Record(o, bounds, res)
	if err != nil {
		return hub.Record{}, solver.Failure(err)
	}
	if d.auditTol > 0 {
		if err := d.model.Audit(rec, d.auditTol); err != nil {
			logger.Error().Err(err).Msg("solution failed audit")
			return hub.Record{}, solver.Failure(fmt.Errorf("audit: %w", err))
		}
	}

	logger.Info().
		Stringer("status", solver.Optimal).
		Float64("cost", rec.Cost).
		Float64("emissions", rec.Emissions).
		Float64("jobs", rec.Jobs).
		Dur("duration", res.Duration).
		Msg("solved")

	if d.publisher != nil {
		d.publisher.Publish(msg.Record, rec)
	}
	return rec, nil
}
