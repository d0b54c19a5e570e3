package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ohowland/energyhub/internal/pkg/lp"
	"gotest.tools/v3/assert"
)

func expr(terms ...lp.Term) lp.Expr {
	return lp.NewExpr(terms...)
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSimplexMinimize(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	y := m.NewVariable("y")
	assert.NilError(t, m.SetUpper(x, 1))
	assert.NilError(t, m.NewConstraint(lp.Ge("demand", expr(lp.Term{x, 1}, lp.Term{y, 1}), 2)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}, lp.Term{y, 2}), lp.Minimize)
	assert.NilError(t, err)

	res, err := NewSimplex(0).Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, near(res.Objective, 3), "objective %v", res.Objective)
	assert.Assert(t, near(res.X[x], 1))
	assert.Assert(t, near(res.X[y], 1))
}

func TestSimplexEquality(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	y := m.NewVariable("y")
	assert.NilError(t, m.SetUpper(y, 3))
	assert.NilError(t, m.NewConstraint(lp.Eq("sum", expr(lp.Term{x, 1}, lp.Term{y, 1}), 4)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize)
	assert.NilError(t, err)

	res, err := NewSimplex(0).Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, near(res.X[x], 1))
	assert.Assert(t, near(res.X[y], 3))
}

func TestSimplexMaximize(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.NewConstraint(lp.Le("cap", expr(lp.Term{x, 2}), 8)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Maximize)
	assert.NilError(t, err)

	res, err := NewSimplex(0).Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, near(res.Objective, 4))
}

func TestSimplexInfeasibleCarriesOverlay(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.SetUpper(x, 3))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize, lp.Ge("floor", expr(lp.Term{x, 1}), 5))
	assert.NilError(t, err)

	_, err = NewSimplex(0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
	assert.Equal(t, StatusOf(err), Infeasible)

	var inf *InfeasibleError
	assert.Assert(t, errors.As(err, &inf))
	assert.DeepEqual(t, inf.Bounds, []string{"floor >= 5"})
}

func TestSimplexConstantRow(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize, lp.Le("empty", lp.Expr{Const: 2}, 1))
	assert.NilError(t, err)

	_, err = NewSimplex(0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
}

func TestSimplexUnboundedIsFailure(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	m.NewVariable("free")
	assert.NilError(t, m.NewConstraint(lp.Ge("floor", expr(lp.Term{x, 1}), 1)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Maximize)
	assert.NilError(t, err)

	_, err = NewSimplex(0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrFailure)
	assert.Equal(t, StatusOf(err), Failed)
}

func TestSimplexCancelled(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize)
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewSimplex(0).Solve(ctx, p)
	assert.ErrorIs(t, err, ErrFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimplexDeterministic(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	y := m.NewVariable("y")
	assert.NilError(t, m.NewConstraint(
		lp.Ge("a", expr(lp.Term{x, 1}, lp.Term{y, 2}), 4),
		lp.Ge("b", expr(lp.Term{x, 3}, lp.Term{y, 1}), 6),
	))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}, lp.Term{y, 1}), lp.Minimize)
	assert.NilError(t, err)

	s := NewSimplex(0)
	first, err := s.Solve(context.Background(), p)
	assert.NilError(t, err)
	second, err := s.Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Equal(t, first.Objective, second.Objective)
	assert.Assert(t, near(first.Objective, 2.8), "objective %v", first.Objective)
}

func TestStatusText(t *testing.T) {
	for _, s := range []Status{Optimal, Infeasible, Failed} {
		text, err := s.MarshalText()
		assert.NilError(t, err)
		var got Status
		assert.NilError(t, got.UnmarshalText(text))
		assert.Equal(t, got, s)
	}
	var s Status
	assert.ErrorContains(t, s.UnmarshalText([]byte("pending")), "unknown status")
}

func TestSimplexRefusesOversizedProblem(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	y := m.NewVariable("y")
	assert.NilError(t, m.NewConstraint(
		lp.Ge("a", expr(lp.Term{x, 1}, lp.Term{y, 2}), 4),
		lp.Ge("b", expr(lp.Term{x, 3}, lp.Term{y, 1}), 6),
	))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}, lp.Term{y, 1}), lp.Minimize)
	assert.NilError(t, err)

	s := NewSimplex(0)
	assert.Assert(t, s.Fits(p))
	s.maxEntries = 7
	assert.Assert(t, !s.Fits(p))

	_, err = s.Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrFailure)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.ErrorContains(t, err, "2 rows by 4 columns")
}
