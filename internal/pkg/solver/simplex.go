package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ohowland/energyhub/internal/pkg/lp"
	"gonum.org/v1/gonum/mat"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
)

// DefaultTolerance is the reduced-cost tolerance handed to the simplex.
const DefaultTolerance = 1e-10

// DefaultMaxEntries caps the dense tableau Simplex allocates.
const DefaultMaxEntries = 1 << 24

// ErrTooLarge is wrapped by the FailureError a backend returns instead of
// allocating more than its limit.
var ErrTooLarge = errors.New("problem too large for backend")

// Simplex solves problems in-process with gonum's dense simplex. It is exact
// and deterministic but its memory grows with rows times columns, so it only
// takes problems whose dense form has at most DefaultMaxEntries entries.
type Simplex struct {
	tol        float64
	checkTol   float64
	maxEntries int
}

// NewSimplex returns a Simplex backend. A non-positive tol selects DefaultTolerance.
func NewSimplex(tol float64) *Simplex {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	return &Simplex{tol: tol, checkTol: 1e-6, maxEntries: DefaultMaxEntries}
}

// Fits reports whether the dense form of p stays within the entry limit.
func (s *Simplex) Fits(p lp.Problem) bool {
	rows, cols := estimate(p)
	return rows*cols <= s.maxEntries
}

type outcome struct {
	res Result
	err error
}

// Solve runs the simplex. Cancelling ctx abandons the wait; the backend call
// itself cannot be interrupted and finishes in the background.
func (s *Simplex) Solve(ctx context.Context, p lp.Problem) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, Failure(err)
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.solve(p)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, Failure(ctx.Err())
	}
}

// standardForm is min c'x s.t. Ax = b, x >= 0, b >= 0 over the structural
// columns that appear in at least one row, followed by slack columns.
type standardForm struct {
	c    []float64
	a    *mat.Dense
	b    []float64
	cols []int // standard column -> model variable, -1 for slacks
}

func (s *Simplex) solve(p lp.Problem) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = Failure(fmt.Errorf("simplex panic: %v", r))
		}
	}()

	f, err := prepare(p)
	if err != nil {
		return Result{}, err
	}
	if len(f.rows) == 0 {
		x := make([]float64, f.n)
		return Result{Objective: p.Objective.Eval(x), X: x, Duration: time.Since(start)}, nil
	}
	rows, cols := f.size()
	if cols < rows {
		return Result{}, Failure(fmt.Errorf("simplex: %d rows exceed %d columns", rows, cols))
	}
	if rows*cols > s.maxEntries {
		return Result{}, Failure(fmt.Errorf("simplex: %w: %d rows by %d columns", ErrTooLarge, rows, cols))
	}

	sf := buildStandardForm(f)
	_, optX, err := gonumlp.Simplex(sf.c, sf.a, sf.b, s.tol, nil)
	switch {
	case errors.Is(err, gonumlp.ErrInfeasible):
		return Result{}, NewInfeasibleError(p)
	case err != nil:
		return Result{}, Failure(err)
	}

	x := f.solution(p, sf.cols, optX)
	if err := s.check(p, x); err != nil {
		return Result{}, err
	}

	return Result{
		Objective: p.Objective.Eval(x),
		X:         x,
		Duration:  time.Since(start),
	}, nil
}

func buildStandardForm(f prepared) standardForm {
	cols, index := f.columns()
	structural := 0
	for _, j := range cols {
		if j >= 0 {
			structural++
		}
	}

	a := mat.NewDense(len(f.rows), len(cols), nil)
	b := make([]float64, len(f.rows))
	c := make([]float64, len(cols))
	for k := 0; k < structural; k++ {
		c[k] = f.obj[cols[k]]
	}

	slack := structural
	for i, r := range f.rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for j, v := range r.coef {
			a.Set(i, index[j], sign*v)
		}
		switch r.sense {
		case lp.LessEq:
			a.Set(i, slack, sign)
			slack++
		case lp.GreaterEq:
			a.Set(i, slack, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}
	return standardForm{c: c, a: a, b: b, cols: cols}
}

// check rejects numerically broken answers: every constraint must hold within
// a tolerance relative to its right hand side.
func (s *Simplex) check(p lp.Problem, x []float64) error {
	for i := 0; i < p.NumConstraints(); i++ {
		c := p.Constraint(i)
		if !c.Satisfied(x, s.checkTol*(1+math.Abs(c.RHS))) {
			return Failure(fmt.Errorf("simplex: solution violates %s", c))
		}
	}
	return nil
}
