package boiler

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"gotest.tools/v3/assert"
)

const testConfig = `{"Name":"boiler","Efficiency":0.9,"UnitCost":110,"JobsPerUnit":0.00237}`

func newBoiler(t *testing.T) *Asset {
	a, err := NewFromJSON([]byte(testConfig))
	assert.NilError(t, err)
	return a
}

func TestNewFromJSON(t *testing.T) {
	a := newBoiler(t)
	assert.Equal(t, a.Name(), "boiler")
	assert.Equal(t, a.Config().Efficiency, 0.9)
	assert.Equal(t, a.Economics().UnitCost, 110.0)
	assert.Equal(t, a.HeatUnitCost(), 110.0)
	assert.Assert(t, a.Economics().MaxCapacity == nil)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(MachineConfig{Name: "boiler"})
	assert.ErrorContains(t, err, "efficiency must be positive")

	_, err = New(MachineConfig{Name: "boiler", Efficiency: 0.9, Economics: asset.Economics{UnitCost: -1}})
	assert.ErrorContains(t, err, "negative unit cost")

	_, err = NewFromJSON([]byte("{"))
	assert.Assert(t, err != nil)
}

func TestBuildMeetsDemand(t *testing.T) {
	a := newBoiler(t)
	demand := []float64{1, 3, 2}

	m := lp.NewModel()
	assert.NilError(t, a.Build(m, asset.Frame{Horizon: len(demand)}))
	for h, d := range demand {
		assert.NilError(t, m.NewConstraint(lp.Eq("heat", a.Balance(asset.Heat, h), d)))
	}
	m.Freeze()

	obj := asset.Single(a.Capacity(), a.Economics().UnitCost)
	for _, v := range a.Flows()["in"] {
		obj.Add(v, 0.294)
	}
	p, err := m.With(obj, lp.Minimize)
	assert.NilError(t, err)

	res, err := solver.NewSimplex(0).Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(res.X[a.Capacity()]-3) < 1e-6)
	for h, d := range demand {
		assert.Assert(t, math.Abs(res.X[a.Flows()["in"][h]]-d/0.9) < 1e-6)
	}
	assert.NilError(t, a.Audit(res.X, 1e-6))

	assert.Assert(t, a.Balance(asset.Electricity, 0).Empty())
	gas := a.Balance(asset.Gas, 1)
	assert.Equal(t, gas.Terms[0].Coef, -1.0)
}

func TestZeroCeiling(t *testing.T) {
	a, err := New(MachineConfig{Name: "boiler", Efficiency: 0.9, Economics: asset.Economics{MaxCapacity: asset.Ceiling(0)}})
	assert.NilError(t, err)

	m := lp.NewModel()
	assert.NilError(t, a.Build(m, asset.Frame{Horizon: 2}))
	assert.Equal(t, m.Variable(a.Capacity()).Upper, 0.0)
}

func TestAuditReportsViolation(t *testing.T) {
	a := newBoiler(t)
	m := lp.NewModel()
	assert.NilError(t, a.Build(m, asset.Frame{Horizon: 1}))

	x := make([]float64, m.NumVariables())
	x[a.Capacity()] = 1
	x[a.Flows()["in"][0]] = 10
	x[a.Flows()["out"][0]] = 9

	err := a.Audit(x, 1e-6)
	var v asset.Violation
	assert.Assert(t, errors.As(err, &v))
	assert.Equal(t, v.Rule, "rating")
	assert.Equal(t, v.Hour, 0)
}
