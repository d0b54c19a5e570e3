package lpdispatch

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/asset/boiler"
	"github.com/ohowland/energyhub/internal/pkg/asset/heatpump"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/rs/zerolog"
	"gotest.tools/v3/assert"
)

func newModel(t *testing.T) *hub.Model {
	params := hub.Params{
		Horizon:      3,
		DiscountRate: 0.03,
		Gas:          hub.Tariff{Price: 0.294, Escalation: 0.02},
		Electricity:  hub.Tariff{Price: 0.16, Escalation: 0.02},
		Emissions:    hub.EmissionFactors{Gas: 0.198, Electricity: 0.1295},
	}
	inputs := hub.Inputs{
		HeatDemand: []float64{10, 30, 20},
		ElecDemand: []float64{5, 5, 5},
	}
	assets := hub.Assets{
		Boiler:   &boiler.MachineConfig{Name: "boiler", Efficiency: 0.9, Economics: asset.Economics{UnitCost: 110}},
		HeatPump: &heatpump.MachineConfig{Name: "gshp", COP: 4, Economics: asset.Economics{UnitCost: 850}},
	}
	m, err := hub.New(params, inputs, assets)
	assert.NilError(t, err)
	return m
}

type failingSolver struct{ err error }

func (s failingSolver) Solve(context.Context, lp.Problem) (solver.Result, error) {
	return solver.Result{}, s.err
}

func TestNewRequiresModelAndSolver(t *testing.T) {
	_, err := New(nil, solver.NewSimplex(0), nil)
	assert.ErrorContains(t, err, "model and solver are required")
}

func TestOptimizePublishesRecord(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	d, err := New(newModel(t), solver.NewSimplex(0), pub)
	assert.NilError(t, err)

	ch, err := pub.Subscribe(d.PID(), msg.Record)
	assert.NilError(t, err)

	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	rec, err := d.Optimize(ctx, hub.Cost)
	assert.NilError(t, err)
	assert.Equal(t, rec.Objective, hub.Cost)
	assert.Assert(t, rec.Cost > 0)

	m := <-ch
	assert.Equal(t, m.Topic(), msg.Record)
	assert.Equal(t, m.Payload().(hub.Record).ID, rec.ID)
	assert.Assert(t, strings.Contains(buf.String(), `"component":"lpdispatch"`))
	assert.Assert(t, strings.Contains(buf.String(), `"message":"solved"`))
}

func TestBackendsAgree(t *testing.T) {
	want, err := New(newModel(t), solver.NewSimplex(0), nil)
	assert.NilError(t, err)
	got, err := New(newModel(t), solver.NewBarrier(0), nil)
	assert.NilError(t, err)
	got.SetAuditTolerance(1e-4)

	for _, o := range []hub.Objective{hub.Cost, hub.Emissions} {
		w, err := want.Optimize(context.Background(), o)
		assert.NilError(t, err)
		g, err := got.Optimize(context.Background(), o)
		assert.NilError(t, err)
		assert.Assert(t, math.Abs(g.Value(o)-w.Value(o)) <= 1e-6*math.Max(1, math.Abs(w.Value(o))),
			"%s: barrier %v, simplex %v", o, g.Value(o), w.Value(o))
	}
}

func TestOptimizeInfeasibleBound(t *testing.T) {
	d, err := New(newModel(t), solver.NewSimplex(0), nil)
	assert.NilError(t, err)

	_, err = d.Optimize(context.Background(), hub.Cost, hub.Bound{Objective: hub.Investment, Limit: 100})
	assert.Assert(t, errors.Is(err, solver.ErrInfeasible))
	assert.ErrorContains(t, err, "investment <= 100")
}

func TestOptimizeBackendFailure(t *testing.T) {
	d, err := New(newModel(t), failingSolver{solver.Failure(errors.New("backend offline"))}, nil)
	assert.NilError(t, err)

	_, err = d.Optimize(context.Background(), hub.Emissions)
	assert.Equal(t, solver.StatusOf(err), solver.Failed)
	assert.ErrorContains(t, err, "backend offline")
}

func TestOptimizeRejectsBadAssignment(t *testing.T) {
	m := newModel(t)
	zeros := func(context.Context, lp.Problem) (solver.Result, error) {
		return solver.Result{X: make([]float64, m.LP().NumVariables())}, nil
	}
	d, err := New(m, solverFunc(zeros), nil)
	assert.NilError(t, err)

	_, err = d.Optimize(context.Background(), hub.Cost)
	assert.Equal(t, solver.StatusOf(err), solver.Failed)
	var berr hub.BalanceError
	assert.Assert(t, errors.As(err, &berr))

	d.SetAuditTolerance(0)
	_, err = d.Optimize(context.Background(), hub.Cost)
	assert.NilError(t, err)
}

type solverFunc func(context.Context, lp.Problem) (solver.Result, error)

func (f solverFunc) Solve(ctx context.Context, p lp.Problem) (solver.Result, error) {
	return f(ctx, p)
}
