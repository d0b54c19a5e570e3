package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ohowland/energyhub/internal/pkg/lp"
	"gonum.org/v1/gonum/mat"
	"gotest.tools/v3/assert"
)

func relNear(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

func TestBarrierMatchesSimplex(t *testing.T) {
	cases := []struct {
		name  string
		build func(m *lp.Model) (lp.Expr, lp.Direction)
	}{
		{"upper bound", func(m *lp.Model) (lp.Expr, lp.Direction) {
			x, y := m.NewVariable("x"), m.NewVariable("y")
			assert.NilError(t, m.SetUpper(x, 1))
			assert.NilError(t, m.NewConstraint(lp.Ge("demand", expr(lp.Term{x, 1}, lp.Term{y, 1}), 2)))
			return expr(lp.Term{x, 1}, lp.Term{y, 2}), lp.Minimize
		}},
		{"equality", func(m *lp.Model) (lp.Expr, lp.Direction) {
			x, y := m.NewVariable("x"), m.NewVariable("y")
			assert.NilError(t, m.SetUpper(y, 3))
			assert.NilError(t, m.NewConstraint(lp.Eq("sum", expr(lp.Term{x, 1}, lp.Term{y, 1}), 4)))
			return expr(lp.Term{x, 1}), lp.Minimize
		}},
		{"maximize", func(m *lp.Model) (lp.Expr, lp.Direction) {
			x := m.NewVariable("x")
			assert.NilError(t, m.NewConstraint(lp.Le("cap", expr(lp.Term{x, 2}), 8)))
			return expr(lp.Term{x, 1}), lp.Maximize
		}},
		{"two cuts", func(m *lp.Model) (lp.Expr, lp.Direction) {
			x, y := m.NewVariable("x"), m.NewVariable("y")
			assert.NilError(t, m.NewConstraint(
				lp.Ge("a", expr(lp.Term{x, 1}, lp.Term{y, 2}), 4),
				lp.Ge("b", expr(lp.Term{x, 3}, lp.Term{y, 1}), 6),
			))
			return expr(lp.Term{x, 1}, lp.Term{y, 1}), lp.Minimize
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := lp.NewModel()
			obj, dir := tc.build(m)
			m.Freeze()
			p, err := m.With(obj, dir)
			assert.NilError(t, err)

			want, err := NewSimplex(0).Solve(context.Background(), p)
			assert.NilError(t, err)
			got, err := NewBarrier(0).Solve(context.Background(), p)
			assert.NilError(t, err)
			assert.Assert(t, relNear(got.Objective, want.Objective, 1e-6), "barrier %v, simplex %v", got.Objective, want.Objective)
			for i := range want.X {
				assert.Assert(t, math.Abs(got.X[i]-want.X[i]) < 1e-4, "x[%d]: barrier %v, simplex %v", i, got.X[i], want.X[i])
			}
		})
	}
}

func TestBarrierInfeasibleCarriesOverlay(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.SetUpper(x, 3))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize, lp.Ge("floor", expr(lp.Term{x, 1}), 5))
	assert.NilError(t, err)

	_, err = NewBarrier(0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInfeasible)
	var inf *InfeasibleError
	assert.Assert(t, errors.As(err, &inf))
	assert.DeepEqual(t, inf.Bounds, []string{"floor >= 5"})
}

func TestBarrierUnboundedIsFailure(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.NewConstraint(lp.Ge("floor", expr(lp.Term{x, 1}), 1)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Maximize)
	assert.NilError(t, err)

	_, err = NewBarrier(0).Solve(context.Background(), p)
	assert.Equal(t, StatusOf(err), Failed)
}

func TestBarrierCancelled(t *testing.T) {
	m := lp.NewModel()
	x := m.NewVariable("x")
	assert.NilError(t, m.NewConstraint(lp.Ge("floor", expr(lp.Term{x, 1}), 1)))
	m.Freeze()

	p, err := m.With(expr(lp.Term{x, 1}), lp.Minimize)
	assert.NilError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewBarrier(0).Solve(ctx, p)
	assert.ErrorIs(t, err, ErrFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

// sizing builds min sum(in) + 5·cap s.t. in[t] >= demand[t], in[t] <= cap.
// The optimum buys cap = max(demand) and serves demand exactly.
func sizing(t *testing.T, hours int) (lp.Problem, float64) {
	m := lp.NewModel()
	capacity := m.NewVariable("cap")
	in := m.NewSeries("in", hours)
	obj := expr(lp.Term{capacity, 5})
	want, peak := 0.0, 0.0
	for h, v := range in {
		demand := float64(10 + h%7)
		want += demand
		peak = math.Max(peak, demand)
		obj.Add(v, 1)
		assert.NilError(t, m.NewConstraint(
			lp.Ge(fmt.Sprintf("demand[%d]", h), expr(lp.Term{v, 1}), demand),
			lp.Le(fmt.Sprintf("rating[%d]", h), expr(lp.Term{v, 1}, lp.Term{capacity, -1}), 0),
		))
	}
	m.Freeze()
	p, err := m.With(obj, lp.Minimize)
	assert.NilError(t, err)
	return p, want + 5*peak
}

func TestBarrierDenseColumn(t *testing.T) {
	p, want := sizing(t, 6)
	b := NewBarrier(0)
	b.denseFloor, b.denseRatio = 2, 0

	res, err := b.Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, relNear(res.Objective, want, 1e-6), "objective %v, want %v", res.Objective, want)
	assert.Assert(t, math.Abs(res.X[0]-15) < 1e-4, "cap %v", res.X[0])
}

func TestAutoTakesProblemsBeyondTheDenseLimit(t *testing.T) {
	p, want := sizing(t, 3000)

	_, err := NewSimplex(0).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrTooLarge)

	s, err := New(Options{})
	assert.NilError(t, err)
	res, err := s.Solve(context.Background(), p)
	assert.NilError(t, err)
	assert.Assert(t, relNear(res.Objective, want, 1e-6), "objective %v, want %v", res.Objective, want)
}

func TestNewBackend(t *testing.T) {
	s, err := New(Options{Backend: BackendSimplex})
	assert.NilError(t, err)
	_, ok := s.(*Simplex)
	assert.Assert(t, ok)

	s, err = New(Options{Backend: BackendBarrier})
	assert.NilError(t, err)
	_, ok = s.(*Barrier)
	assert.Assert(t, ok)

	_, err = New(Options{Backend: "highs"})
	assert.ErrorContains(t, err, `unknown backend "highs"`)
}

func TestProfileOrderUnscramblesAChain(t *testing.T) {
	const rows = 50
	// column j links rows p(j) and p(j+1) of a scrambled path
	p := func(i int) int { return i * 17 % rows }
	a := &csc{m: rows, n: rows - 1, colPtr: []int{0}}
	for j := 0; j < rows-1; j++ {
		a.rowIdx = append(a.rowIdx, p(j), p(j+1))
		a.val = append(a.val, 1, 1)
		a.colPtr = append(a.colPtr, len(a.val))
	}
	dense := make([]bool, a.n)

	q, err := newNormalEq(a, dense, DefaultMaxEnvelope)
	assert.NilError(t, err)
	assert.Assert(t, envelopeSize(q.env.first) > 2*rows)

	a.permuteRows(profileOrder(a, dense, 100, 10))
	q, err = newNormalEq(a, dense, DefaultMaxEnvelope)
	assert.NilError(t, err)
	assert.Equal(t, envelopeSize(q.env.first), 2*rows-1)

	_, err = newNormalEq(a, dense, rows)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEnvelopeSolve(t *testing.T) {
	e := newEnvelope([]int{0, 0, 1, 1})
	sym := mat.NewSymDense(4, []float64{
		4, 1, 0, 0,
		1, 5, 2, 1,
		0, 2, 6, 1,
		0, 1, 1, 7,
	})
	for i := 0; i < 4; i++ {
		for j := e.first[i]; j <= i; j++ {
			e.add(i, j, sym.At(i, j))
		}
	}
	e.factor()

	rhs := []float64{1, 2, 3, 4}
	got := append([]float64(nil), rhs...)
	e.solve(got)

	var want mat.VecDense
	assert.NilError(t, want.SolveVec(sym, mat.NewVecDense(4, rhs)))
	for i := range got {
		assert.Assert(t, math.Abs(got[i]-want.AtVec(i)) < 1e-12, "x[%d] = %v, want %v", i, got[i], want.AtVec(i))
	}
}
