package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/ohowland/energyhub/internal/pkg/lp"
	"gonum.org/v1/gonum/floats"
)

// DefaultGap is the relative duality gap and dual residual at which the
// barrier stops. The primal residual must be a hundred times smaller.
const DefaultGap = 1e-8

// DefaultMaxEnvelope caps the entries of the normal equation factor.
const DefaultMaxEnvelope = 1 << 28

const (
	equilibrationPasses = 10
	stepFraction        = 0.9995
	divergence          = 1e12
	artificialTol       = 1e-6
)

// Barrier is a sparse primal-dual interior point method with Mehrotra's
// predictor-corrector. Its memory follows the profile of A·Aᵀ under a
// reverse Cuthill-McKee order, which stays narrow for hourly models whose
// rows only couple neighbouring hours; capacity columns that touch every
// hour are handled as dense columns outside the factor.
type Barrier struct {
	gap         float64
	checkTol    float64
	maxIter     int
	denseFloor  int
	denseRatio  float64
	maxEnvelope int
}

// NewBarrier returns a Barrier backend. A non-positive gap selects DefaultGap.
func NewBarrier(gap float64) *Barrier {
	if gap <= 0 {
		gap = DefaultGap
	}
	return &Barrier{
		gap:         gap,
		checkTol:    1e-6,
		maxIter:     200,
		denseFloor:  100,
		denseRatio:  10,
		maxEnvelope: DefaultMaxEnvelope,
	}
}

// Solve runs the interior point method. Cancelling ctx stops it between
// iterations. A run that does not converge is followed by a feasibility
// check that tells an infeasible model from a failure.
func (b *Barrier) Solve(ctx context.Context, p lp.Problem) (res Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = Failure(fmt.Errorf("barrier panic: %v", r))
		}
	}()
	if err := ctx.Err(); err != nil {
		return Result{}, Failure(err)
	}

	f, err := prepare(p)
	if err != nil {
		return Result{}, err
	}
	if len(f.rows) == 0 {
		x := make([]float64, f.n)
		return Result{Objective: p.Objective.Eval(x), X: x, Duration: time.Since(start)}, nil
	}

	sf := buildSparseForm(f)
	in, scale, err := b.setup(sf)
	if err != nil {
		return Result{}, Failure(err)
	}
	xs, ok, err := b.iterate(ctx, in)
	if err != nil {
		return Result{}, Failure(err)
	}
	if !ok {
		infeasible, err := b.infeasible(ctx, in)
		switch {
		case err != nil:
			return Result{}, Failure(err)
		case infeasible:
			return Result{}, NewInfeasibleError(p)
		}
		return Result{}, Failure(fmt.Errorf("barrier: no convergence in %d iterations, model may be unbounded", b.maxIter))
	}

	floats.Mul(xs, scale)
	x := f.solution(p, sf.cols, xs)
	if err := b.check(p, x); err != nil {
		return Result{}, err
	}
	return Result{
		Objective: p.Objective.Eval(x),
		X:         x,
		Duration:  time.Since(start),
	}, nil
}

// sparseForm is the standard form of a prepared problem in columns.
type sparseForm struct {
	a    *csc
	b, c []float64
	cols []int
}

func buildSparseForm(f prepared) sparseForm {
	cols, index := f.columns()
	structural := 0
	for _, j := range cols {
		if j >= 0 {
			structural++
		}
	}

	counts := make([]int, len(cols))
	slack := structural
	for _, r := range f.rows {
		for j := range r.coef {
			counts[index[j]]++
		}
		if r.sense != lp.Equal {
			counts[slack]++
			slack++
		}
	}
	a := &csc{m: len(f.rows), n: len(cols), colPtr: make([]int, len(cols)+1)}
	for k, c := range counts {
		a.colPtr[k+1] = a.colPtr[k] + c
	}
	a.rowIdx = make([]int, a.colPtr[a.n])
	a.val = make([]float64, a.colPtr[a.n])

	next := slices.Clone(a.colPtr[:a.n])
	put := func(k, i int, v float64) {
		a.rowIdx[next[k]] = i
		a.val[next[k]] = v
		next[k]++
	}
	b := make([]float64, a.m)
	slack = structural
	for i, r := range f.rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for j, v := range r.coef {
			put(index[j], i, sign*v)
		}
		switch r.sense {
		case lp.LessEq:
			put(slack, i, sign)
			slack++
		case lp.GreaterEq:
			put(slack, i, -sign)
			slack++
		}
		b[i] = sign * r.rhs
	}

	c := make([]float64, a.n)
	for k := 0; k < structural; k++ {
		c[k] = f.obj[cols[k]]
	}
	return sparseForm{a: a, b: b, c: c, cols: cols}
}

// interior is a scaled standard form min cᵀx, Ax = b, x >= 0 with its
// normal equations.
type interior struct {
	a     *csc
	b, c  []float64
	dense []bool
	q     *normalEq
}

// setup equilibrates and reorders sf in place. The returned factors map a
// solution of the scaled problem back to sf's columns.
func (b *Barrier) setup(sf sparseForm) (*interior, []float64, error) {
	a := sf.a
	rs, cs := a.equilibrate(equilibrationPasses)
	bh := make([]float64, a.m)
	for i := range bh {
		bh[i] = rs[i] * sf.b[i]
	}
	ch := make([]float64, a.n)
	for j := range ch {
		ch[j] = cs[j] * sf.c[j]
	}
	bscale := max(1, floats.Norm(bh, math.Inf(1)))
	cscale := max(1, floats.Norm(ch, math.Inf(1)))
	floats.Scale(1/bscale, bh)
	floats.Scale(1/cscale, ch)
	floats.Scale(bscale, cs)

	dense := denseColumns(a, b.denseFloor, b.denseRatio)
	perm := profileOrder(a, dense, b.denseFloor, b.denseRatio)
	a.permuteRows(perm)
	bp := make([]float64, a.m)
	for i, old := range perm {
		bp[i] = bh[old]
	}
	q, err := newNormalEq(a, dense, b.maxEnvelope)
	if err != nil {
		return nil, nil, fmt.Errorf("barrier: %w: %d rows", err, a.m)
	}
	return &interior{a: a, b: bp, c: ch, dense: dense, q: q}, cs, nil
}

// iterate reports the final point and whether it met the tolerances. Only
// cancellation is returned as an error.
func (b *Barrier) iterate(ctx context.Context, in *interior) ([]float64, bool, error) {
	a := in.a
	m, n := a.m, a.n
	x, y, z, err := in.start()
	if err != nil {
		return nil, false, nil
	}

	rp := make([]float64, m)
	rd := make([]float64, n)
	d := make([]float64, n)
	rc := make([]float64, n)
	dx := make([]float64, n)
	dy := make([]float64, m)
	dz := make([]float64, n)
	inf := math.Inf(1)
	bnorm := 1 + floats.Norm(in.b, inf)
	cnorm := 1 + floats.Norm(in.c, inf)
	stalled := 0

	for iter := 0; iter < b.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		a.mulVec(rp, x)
		floats.SubTo(rp, in.b, rp)
		a.mulTransVec(rd, y)
		for j := range rd {
			rd[j] = in.c[j] - rd[j] - z[j]
		}
		pobj := floats.Dot(in.c, x)
		dobj := floats.Dot(in.b, y)
		if math.IsNaN(pobj) || math.IsNaN(dobj) {
			return x, false, nil
		}
		if floats.Norm(rp, inf)/bnorm <= 1e-2*b.gap &&
			floats.Norm(rd, inf)/cnorm <= b.gap &&
			math.Abs(pobj-dobj)/(1+math.Abs(pobj)) <= b.gap {
			return x, true, nil
		}
		if floats.Norm(x, inf) > divergence || floats.Norm(y, inf) > divergence {
			return x, false, nil
		}

		mu := floats.Dot(x, z) / float64(n)
		floats.DivTo(d, x, z)
		in.q.factor(d)

		for j := range rc {
			rc[j] = -x[j] * z[j]
		}
		if err := in.direction(d, rp, rd, rc, z, dx, dy, dz); err != nil {
			return x, false, nil
		}
		ap := math.Min(1, maxStep(x, dx))
		ad := math.Min(1, maxStep(z, dz))
		var muAff float64
		for j := range x {
			muAff += (x[j] + ap*dx[j]) * (z[j] + ad*dz[j])
		}
		muAff /= float64(n)
		sigma := 0.0
		if mu > 0 {
			sigma = math.Min(1, math.Pow(muAff/mu, 3))
		}

		for j := range rc {
			rc[j] = sigma*mu - x[j]*z[j] - dx[j]*dz[j]
		}
		if err := in.direction(d, rp, rd, rc, z, dx, dy, dz); err != nil {
			return x, false, nil
		}
		ap = math.Min(1, stepFraction*maxStep(x, dx))
		ad = math.Min(1, stepFraction*maxStep(z, dz))
		floats.AddScaled(x, ap, dx)
		floats.AddScaled(y, ad, dy)
		floats.AddScaled(z, ad, dz)
		positive(x)
		positive(z)

		if ap < 1e-8 && ad < 1e-8 {
			stalled++
			if stalled >= 5 {
				return x, false, nil
			}
		} else {
			stalled = 0
		}
	}
	return x, false, nil
}

// start is Mehrotra's starting point: least-norm primal and least-squares
// dual solutions shifted into the positive orthant.
func (in *interior) start() (x, y, z []float64, err error) {
	a := in.a
	in.q.factor(ones(a.n))

	v := slices.Clone(in.b)
	if err := in.q.solve(v); err != nil {
		return nil, nil, nil, err
	}
	x = make([]float64, a.n)
	a.mulTransVec(x, v)

	y = make([]float64, a.m)
	a.mulVec(y, in.c)
	if err := in.q.solve(y); err != nil {
		return nil, nil, nil, err
	}
	z = make([]float64, a.n)
	a.mulTransVec(z, y)
	floats.SubTo(z, in.c, z)

	floats.AddConst(max(-1.5*floats.Min(x), 0), x)
	floats.AddConst(max(-1.5*floats.Min(z), 0), z)
	xz := floats.Dot(x, z)
	sx, sz := floats.Sum(x), floats.Sum(z)
	if xz > 0 && sx > 0 && sz > 0 {
		floats.AddConst(0.5*xz/sz, x)
		floats.AddConst(0.5*xz/sx, z)
	}
	for j := range x {
		if !(x[j] > 0) {
			x[j] = 1
		}
		if !(z[j] > 0) {
			z[j] = 1
		}
	}
	return x, y, z, nil
}

// direction solves the Newton system for the complementarity target rc:
//
//	A·D·Aᵀ·dy = rp + A·(D·rd - rc/z)
//	dx = D·(Aᵀ·dy - rd) + rc/z
//	dz = rd - Aᵀ·dy
func (in *interior) direction(d, rp, rd, rc, z, dx, dy, dz []float64) error {
	for j := range dx {
		dx[j] = d[j]*rd[j] - rc[j]/z[j]
	}
	in.a.mulVec(dy, dx)
	floats.Add(dy, rp)
	if err := in.q.solve(dy); err != nil {
		return err
	}
	in.a.mulTransVec(dz, dy)
	for j := range dx {
		aty := dz[j]
		dx[j] = d[j]*(aty-rd[j]) + rc[j]/z[j]
		dz[j] = rd[j] - aty
	}
	return nil
}

// infeasible minimizes the artificial slack needed to satisfy every row of
// in. A positive minimum proves the rows inconsistent.
func (b *Barrier) infeasible(ctx context.Context, in *interior) (bool, error) {
	a := in.a.withIdentity()
	c := make([]float64, a.n)
	for j := in.a.n; j < a.n; j++ {
		c[j] = 1
	}
	dense := append(slices.Clone(in.dense), make([]bool, in.a.m)...)
	q, err := newNormalEq(a, dense, b.maxEnvelope)
	if err != nil {
		return false, err
	}
	x, ok, err := b.iterate(ctx, &interior{a: a, b: in.b, c: c, dense: dense, q: q})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errors.New("barrier: feasibility check did not converge")
	}
	return floats.Sum(x[in.a.n:]) > artificialTol*(1+floats.Norm(in.b, math.Inf(1))), nil
}

// check rejects answers that miss a constraint by more than checkTol
// relative to the larger of its right hand side and its terms.
func (b *Barrier) check(p lp.Problem, x []float64) error {
	for i := 0; i < p.NumConstraints(); i++ {
		c := p.Constraint(i)
		scale := 1 + math.Abs(c.RHS)
		for _, t := range c.Expr.Terms {
			scale = max(scale, math.Abs(t.Coef*x[t.Var]))
		}
		if !c.Satisfied(x, b.checkTol*scale) {
			return Failure(fmt.Errorf("barrier: solution violates %s", c))
		}
	}
	return nil
}

// maxStep is the largest alpha keeping v + alpha·dv nonnegative.
func maxStep(v, dv []float64) float64 {
	alpha := math.Inf(1)
	for i, s := range dv {
		if s < 0 {
			alpha = math.Min(alpha, -v[i]/s)
		}
	}
	return alpha
}

func positive(v []float64) {
	for i := range v {
		if !(v[i] > 1e-300) {
			v[i] = 1e-300
		}
	}
}
