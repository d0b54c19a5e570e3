package pareto

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ohowland/energyhub/internal/pkg/dispatch"
	"github.com/ohowland/energyhub/internal/pkg/dispatch/mockdispatch"
	"github.com/ohowland/energyhub/internal/pkg/hub"
	"github.com/ohowland/energyhub/internal/pkg/msg"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"github.com/stretchr/testify/mock"
	"gotest.tools/v3/assert"
)

// linear is a hub whose cost falls by 0.5 per unit of emissions allowed
// between 20 (cost 50) and 100 (cost 10). Bounds below floor are infeasible.
func linear(floor float64) dispatch.Optimizer {
	return dispatch.OptimizerFunc(func(ctx context.Context, o hub.Objective, bounds ...hub.Bound) (hub.Record, error) {
		switch {
		case o == hub.Emissions:
			return hub.Record{Cost: 50, Emissions: 20, Jobs: 5}, nil
		case len(bounds) == 0:
			return hub.Record{Cost: 10, Emissions: 100, Jobs: 1}, nil
		}
		eps := bounds[len(bounds)-1].Limit
		if eps < floor {
			return hub.Record{}, &solver.InfeasibleError{Bounds: []string{bounds[0].String()}}
		}
		return hub.Record{Cost: 10 + 0.5*(100-eps), Emissions: eps, Jobs: 1 + 4*(100-eps)/80}, nil
	})
}

func TestEpsilon(t *testing.T) {
	assert.Equal(t, Epsilon(20, 100, 0), 20.0)
	assert.Equal(t, Epsilon(20, 100, 1), 100.0)
	assert.Equal(t, Epsilon(20, 100, 0.5), 60.0)
}

func TestScanOrdersPoints(t *testing.T) {
	f, err := Scan(context.Background(), linear(0), Config{})
	assert.NilError(t, err)
	assert.Equal(t, f.A, hub.Cost)
	assert.Equal(t, f.B, hub.Emissions)
	assert.Equal(t, len(f.Points), 11)

	assert.Equal(t, f.Points[0].Kind, ExtremeB)
	assert.Equal(t, f.Points[0].B, 20.0)
	assert.Equal(t, f.Points[10].Kind, ExtremeA)
	assert.Equal(t, f.Points[10].A, 10.0)
	for i, p := range f.Points {
		assert.Equal(t, p.Index, i)
		assert.Assert(t, math.Abs(p.Eta-float64(i)/10) < 1e-12)
		assert.Equal(t, p.Status, solver.Optimal)
	}

	p := f.Points[1]
	assert.Equal(t, p.Kind, Interior)
	assert.Assert(t, math.Abs(*p.Epsilon-28) < 1e-9)
	assert.Assert(t, math.Abs(p.A-46) < 1e-9)
	assert.Assert(t, p.Record != nil)
	assert.Assert(t, f.Monotonic(1e-9))
}

func TestScanRecordsInfeasiblePoints(t *testing.T) {
	f, err := Scan(context.Background(), linear(45), Config{Workers: 2})
	assert.NilError(t, err)
	assert.Equal(t, len(f.Points), 11)

	for _, p := range f.Points[1:4] {
		assert.Equal(t, p.Status, solver.Infeasible)
		assert.ErrorContains(t, errors.New(p.Err), "infeasible under emissions <=")
	}
	assert.Equal(t, f.Points[4].Status, solver.Optimal)
	assert.Equal(t, len(f.Feasible()), 8)
	assert.Assert(t, f.Monotonic(1e-9))
}

func TestScanStopsWithoutExtremes(t *testing.T) {
	m := mockdispatch.NewMockOptimizer()
	m.On("Optimize", hub.Cost, mockdispatch.Unbounded()).Return(hub.Record{Cost: 10, Emissions: 100}, nil)
	m.On("Optimize", hub.Emissions, mockdispatch.Unbounded()).Return(nil, solver.Failure(errors.New("numerical breakdown")))

	f, err := Scan(context.Background(), m, Config{Steps: 4})
	assert.Assert(t, errors.Is(err, ErrExtremes))
	assert.Equal(t, len(f.Points), 6)
	assert.Equal(t, f.Points[0].Status, solver.Failed)
	assert.Equal(t, f.Points[5].Status, solver.Optimal)
	for _, p := range f.Points[1:5] {
		assert.Equal(t, p.Status, solver.Failed)
	}
	m.AssertNumberOfCalls(t, "Optimize", 2)
}

func TestScanForwardsBounds(t *testing.T) {
	ceiling := hub.Bound{Objective: hub.Investment, Limit: 1000}
	withCeiling := mock.MatchedBy(func(bounds []hub.Bound) bool {
		return len(bounds) >= 1 && bounds[0] == ceiling
	})

	m := mockdispatch.NewMockOptimizer()
	m.On("Optimize", hub.Cost, withCeiling).Return(hub.Record{Cost: 10, Jobs: 2}, nil)
	m.On("Optimize", hub.Jobs, withCeiling).Return(hub.Record{Cost: 30, Jobs: 8}, nil)

	f, err := Scan(context.Background(), m, Config{A: hub.Cost, B: hub.Jobs, Steps: 1, Bounds: []hub.Bound{ceiling}})
	assert.NilError(t, err)
	assert.Equal(t, len(f.Points), 3)
	assert.Assert(t, math.Abs(*f.Points[1].Epsilon-5) < 1e-9)
	m.AssertExpectations(t)

	// jobs are maximized, so the interior call carries a jobs floor
	last := m.Calls[len(m.Calls)-1]
	bounds := last.Arguments.Get(1).([]hub.Bound)
	assert.Equal(t, len(bounds), 2)
	assert.Equal(t, bounds[1].String(), "jobs >= 5")
}

func TestScanPublishesPoints(t *testing.T) {
	pub := msg.NewPublisher(uuid.New())
	ch, err := pub.Subscribe(uuid.New(), msg.Point)
	assert.NilError(t, err)

	var mux sync.Mutex
	seen := 0
	_, err = Scan(context.Background(), linear(0), Config{
		Publisher: pub,
		OnPoint: func(Point) {
			mux.Lock()
			seen++
			mux.Unlock()
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, seen, 11)
	assert.Equal(t, len(ch), 11)
}

func TestScanRejectsSameObjectives(t *testing.T) {
	_, err := Scan(context.Background(), linear(0), Config{A: hub.Emissions, B: hub.Emissions})
	assert.ErrorContains(t, err, "objectives must differ")
}
