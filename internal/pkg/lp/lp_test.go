package lp

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

func TestExprEval(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")
	y := m.NewVariable("y")

	e := NewExpr(Term{x, 2})
	e.Add(y, -1)
	e.Add(y, 0)
	e.Const = 3

	assert.Equal(t, len(e.Terms), 2)
	assert.Equal(t, e.Eval([]float64{1, 4}), 1.0)
	assert.Equal(t, e.Scale(2).Eval([]float64{1, 4}), 2.0)
}

func TestAddExprDoesNotAlias(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")

	a := NewExpr(Term{x, 1})
	var b Expr
	b.AddExpr(a, 3)
	b.Terms[0].Coef = 5

	assert.Equal(t, a.Terms[0].Coef, 1.0)
}

func TestSeriesNames(t *testing.T) {
	m := NewModel()
	vs := m.NewSeries("boiler.in", 3)

	assert.Equal(t, len(vs), 3)
	assert.Equal(t, m.Variable(vs[2]).Name, "boiler.in[2]")
	assert.Assert(t, math.IsInf(m.Variable(vs[0]).Upper, 1))
}

func TestSetUpperOnlyTightens(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")

	assert.NilError(t, m.SetUpper(x, 10))
	assert.NilError(t, m.SetUpper(x, 20))
	assert.Equal(t, m.Variable(x).Upper, 10.0)
	assert.Assert(t, m.Variable(x).Bounded())

	assert.ErrorContains(t, m.SetUpper(x, -1), "negative upper bound")
}

func TestFrozenModelRejectsChanges(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")
	m.Freeze()

	err := m.NewConstraint(Le("c", NewExpr(Term{x, 1}), 1))
	assert.ErrorIs(t, err, ErrFrozen)
	assert.ErrorIs(t, m.SetUpper(x, 1), ErrFrozen)
}

func TestUnknownVariable(t *testing.T) {
	m := NewModel()
	m.NewVariable("x")

	err := m.NewConstraint(Eq("bad", NewExpr(Term{Var(7), 1}), 0))
	assert.ErrorIs(t, err, ErrUnknownVar)
}

func TestWithCopiesOverlay(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.NewConstraint(Le("base", NewExpr(Term{x, 1}), 5)))

	_, err := m.With(NewExpr(Term{x, 1}), Minimize)
	assert.ErrorContains(t, err, "frozen")

	m.Freeze()
	extra := []Constraint{Ge("floor", NewExpr(Term{x, 1}), 1)}
	p, err := m.With(NewExpr(Term{x, 1}), Minimize, extra...)
	assert.NilError(t, err)

	extra[0].RHS = 100
	assert.Equal(t, p.NumConstraints(), 2)
	assert.Equal(t, p.Constraint(0).Name, "base")
	assert.Equal(t, p.Constraint(1).RHS, 1.0)
	assert.Equal(t, m.NumConstraints(), 1)
}

func TestFeasible(t *testing.T) {
	m := NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.SetUpper(x, 4))
	assert.NilError(t, m.NewConstraint(Ge("floor", NewExpr(Term{x, 1}), 2)))
	m.Freeze()

	p, err := m.With(NewExpr(Term{x, 1}), Minimize)
	assert.NilError(t, err)

	_, ok := p.Feasible([]float64{3}, 1e-9)
	assert.Assert(t, ok)

	c, ok := p.Feasible([]float64{1}, 1e-9)
	assert.Assert(t, !ok)
	assert.Equal(t, c.Name, "floor")

	c, ok = p.Feasible([]float64{5}, 1e-9)
	assert.Assert(t, !ok)
	assert.Equal(t, c.Name, "x bounds")
}

func TestConstraintBound(t *testing.T) {
	e := Expr{Const: 2}
	c := Le("c", e, 5)
	assert.Equal(t, c.Bound(), 3.0)
	assert.Equal(t, c.String(), "c <= 5")
}
