package heatpump

import (
	"context"
	"math"
	"testing"

	"github.com/ohowland/energyhub/internal/pkg/asset"
	"github.com/ohowland/energyhub/internal/pkg/lp"
	"github.com/ohowland/energyhub/internal/pkg/solver"
	"gotest.tools/v3/assert"
)

func TestNewFromJSON(t *testing.T) {
	a, err := NewFromJSON([]byte(`{"Name":"gshp","COP":4,"UnitCost":850,"JobsPerUnit":0.0073}`))
	assert.NilError(t, err)
	assert.Equal(t, a.Name(), "gshp")
	assert.Equal(t, a.Config().COP, 4.0)
	assert.Equal(t, a.Economics().JobsPerUnit, 0.0073)

	_, err = New(MachineConfig{COP: 0})
	assert.ErrorContains(t, err, "heatpump: COP must be positive")
}

func TestElectricityDrawnAtCOP(t *testing.T) {
	a, err := New(MachineConfig{Name: "gshp", COP: 4, Economics: asset.Economics{UnitCost: 850}})
	assert.NilError(t, err)

	m := lp.NewModel()
	assert.NilError(t, a.Build(m, asset.Frame{Horizon: 2}))
	assert.NilError(t, m.NewConstraint(
		lp.Eq("heat[0]", a.Balance(asset.Heat, 0), 8),
		lp.Eq("heat[1]", a.Balance(asset.Heat, 1), 4),
	))
	m.Freeze()

	obj := asset.Single(a.Capacity(), 850)
	for _, v := range a.Flows()["in"] {
		obj.Add(v, 0.16)
	}
	p, err := m.With(obj, lp.Minimize)
	assert.NilError(t, err)

	res, err := solver.NewSimplex(0).Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(res.X[a.Capacity()]-8) < 1e-6)
	assert.Assert(t, math.Abs(res.X[a.Flows()["in"][0]]-2) < 1e-6)
	assert.Assert(t, math.Abs(res.X[a.Flows()["in"][1]]-1) < 1e-6)
	assert.NilError(t, a.Audit(res.X, 1e-6))

	elec := a.Balance(asset.Electricity, 0)
	assert.Equal(t, len(elec.Terms), 1)
	assert.Equal(t, elec.Terms[0].Coef, -1.0)
	assert.Assert(t, a.Balance(asset.Gas, 0).Empty())
}
