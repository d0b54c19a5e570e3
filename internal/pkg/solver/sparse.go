package solver

import (
	"errors"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// csc is a compressed sparse column matrix. Every column holds at most one
// entry per row.
type csc struct {
	m, n   int
	colPtr []int
	rowIdx []int
	val    []float64
}

func (a *csc) col(j int) (rows []int, vals []float64) {
	lo, hi := a.colPtr[j], a.colPtr[j+1]
	return a.rowIdx[lo:hi], a.val[lo:hi]
}

// mulVec sets dst = A·x.
func (a *csc) mulVec(dst, x []float64) {
	clear(dst)
	for j := 0; j < a.n; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		rows, vals := a.col(j)
		for k, r := range rows {
			dst[r] += vals[k] * xj
		}
	}
}

// mulTransVec sets dst = Aᵀ·y.
func (a *csc) mulTransVec(dst, y []float64) {
	for j := 0; j < a.n; j++ {
		rows, vals := a.col(j)
		var s float64
		for k, r := range rows {
			s += vals[k] * y[r]
		}
		dst[j] = s
	}
}

// equilibrate scales a in place until every row and column has an infinity
// norm near one and returns the accumulated row and column factors.
func (a *csc) equilibrate(passes int) (rs, cs []float64) {
	rs = ones(a.m)
	cs = ones(a.n)
	rmax := make([]float64, a.m)
	cmax := make([]float64, a.n)
	for pass := 0; pass < passes; pass++ {
		clear(rmax)
		for j := 0; j < a.n; j++ {
			rows, vals := a.col(j)
			cmax[j] = 0
			for k, r := range rows {
				v := math.Abs(vals[k])
				cmax[j] = max(cmax[j], v)
				rmax[r] = max(rmax[r], v)
			}
		}
		for i, v := range rmax {
			rmax[i] = 1
			if v > 0 {
				rmax[i] = 1 / math.Sqrt(v)
			}
			rs[i] *= rmax[i]
		}
		for j, v := range cmax {
			cmax[j] = 1
			if v > 0 {
				cmax[j] = 1 / math.Sqrt(v)
			}
			cs[j] *= cmax[j]
		}
		for j := 0; j < a.n; j++ {
			rows, vals := a.col(j)
			for k, r := range rows {
				vals[k] *= rmax[r] * cmax[j]
			}
		}
	}
	return rs, cs
}

// permuteRows renumbers the rows so that old row perm[i] becomes row i.
func (a *csc) permuteRows(perm []int) {
	pos := make([]int, len(perm))
	for i, old := range perm {
		pos[old] = i
	}
	for k, r := range a.rowIdx {
		a.rowIdx[k] = pos[r]
	}
}

// withIdentity returns [A I].
func (a *csc) withIdentity() *csc {
	nnz := len(a.val)
	b := &csc{
		m:      a.m,
		n:      a.n + a.m,
		colPtr: make([]int, 0, a.n+a.m+1),
		rowIdx: make([]int, nnz, nnz+a.m),
		val:    make([]float64, nnz, nnz+a.m),
	}
	b.colPtr = append(b.colPtr, a.colPtr...)
	copy(b.rowIdx, a.rowIdx)
	copy(b.val, a.val)
	for i := 0; i < a.m; i++ {
		b.rowIdx = append(b.rowIdx, i)
		b.val = append(b.val, 1)
		b.colPtr = append(b.colPtr, len(b.val))
	}
	return b
}

// denseColumns flags columns with more than max(floor, ratio × mean)
// entries. They are kept out of the envelope factor.
func denseColumns(a *csc, floor int, ratio float64) []bool {
	limit := floor
	if a.n > 0 {
		limit = max(floor, int(ratio*float64(len(a.val))/float64(a.n)))
	}
	dense := make([]bool, a.n)
	for j := range dense {
		dense[j] = a.colPtr[j+1]-a.colPtr[j] > limit
	}
	return dense
}

// profileOrder returns a row order (new -> old) that keeps the envelope of
// A·D·Aᵀ narrow: reverse Cuthill-McKee over the pattern of the sparse
// columns, with rows of more than max(floor, ratio × mean) neighbours moved
// to the end.
func profileOrder(a *csc, dense []bool, floor int, ratio float64) []int {
	adj := make([][]int, a.m)
	for j := 0; j < a.n; j++ {
		if dense[j] {
			continue
		}
		rows, _ := a.col(j)
		for _, r := range rows {
			for _, s := range rows {
				if r != s {
					adj[r] = append(adj[r], s)
				}
			}
		}
	}
	total := 0
	for i := range adj {
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
		total += len(adj[i])
	}
	limit := floor
	if a.m > 0 {
		limit = max(floor, int(ratio*float64(total)/float64(a.m)))
	}
	skip := make([]bool, a.m)
	for i := range adj {
		skip[i] = len(adj[i]) > limit
	}
	return rcm(adj, skip)
}

func rcm(adj [][]int, skip []bool) []int {
	m := len(adj)
	degree := make([]int, m)
	for i, nb := range adj {
		for _, u := range nb {
			if !skip[u] {
				degree[i]++
			}
		}
	}
	b := &bfs{adj: adj, skip: skip, stamp: make([]int, m)}
	visited := make([]bool, m)
	order := make([]int, 0, m)
	for s := 0; s < m; s++ {
		if visited[s] || skip[s] {
			continue
		}
		root := b.peripheral(s, degree)
		visited[root] = true
		head := len(order)
		order = append(order, root)
		for head < len(order) {
			v := order[head]
			head++
			from := len(order)
			for _, u := range adj[v] {
				if !skip[u] && !visited[u] {
					visited[u] = true
					order = append(order, u)
				}
			}
			next := order[from:]
			sort.SliceStable(next, func(x, y int) bool { return degree[next[x]] < degree[next[y]] })
		}
	}
	slices.Reverse(order)
	for i := 0; i < m; i++ {
		if skip[i] {
			order = append(order, i)
		}
	}
	return order
}

type bfs struct {
	adj   [][]int
	skip  []bool
	stamp []int
	cur   int
	queue []int
}

// levels runs a breadth-first search from root and returns its eccentricity
// and the nodes of the last level.
func (b *bfs) levels(root int) (int, []int) {
	b.cur++
	b.stamp[root] = b.cur
	b.queue = append(b.queue[:0], root)
	depth, start := 0, 0
	for {
		end := len(b.queue)
		for _, v := range b.queue[start:end] {
			for _, u := range b.adj[v] {
				if !b.skip[u] && b.stamp[u] != b.cur {
					b.stamp[u] = b.cur
					b.queue = append(b.queue, u)
				}
			}
		}
		if len(b.queue) == end {
			return depth, b.queue[start:end]
		}
		start = end
		depth++
	}
}

// peripheral walks from root towards a node of maximal eccentricity.
func (b *bfs) peripheral(root int, degree []int) int {
	depth, last := b.levels(root)
	for i := 0; i < 8; i++ {
		next := last[0]
		for _, v := range last[1:] {
			if degree[v] < degree[next] {
				next = v
			}
		}
		d, l := b.levels(next)
		if d <= depth {
			return root
		}
		root, depth, last = next, d, l
	}
	return root
}

// envelope stores the lower profile of a symmetric matrix row by row: row i
// holds columns first[i]..i. factor overwrites it with its Cholesky factor.
type envelope struct {
	first []int
	ptr   []int
	val   []float64
}

func newEnvelope(first []int) *envelope {
	ptr := make([]int, len(first)+1)
	for i, f := range first {
		ptr[i+1] = ptr[i] + i - f + 1
	}
	return &envelope{first: first, ptr: ptr, val: make([]float64, ptr[len(first)])}
}

func envelopeSize(first []int) int {
	n := 0
	for i, f := range first {
		n += i - f + 1
	}
	return n
}

func (e *envelope) row(i int) []float64 {
	return e.val[e.ptr[i]:e.ptr[i+1]]
}

// add accumulates v at (i, j), j <= i.
func (e *envelope) add(i, j int, v float64) {
	e.val[e.ptr[i]+j-e.first[i]] += v
}

// factor computes L with L·Lᵀ equal to the stored matrix. Pivots that
// vanish are replaced by a huge value, which zeroes that component of every
// later solve.
func (e *envelope) factor() {
	m := len(e.first)
	var dmax float64
	for i := 0; i < m; i++ {
		dmax = max(dmax, e.row(i)[i-e.first[i]])
	}
	tiny := 1e-30 * dmax
	for i := 0; i < m; i++ {
		fi := e.first[i]
		ri := e.row(i)
		for j := fi; j < i; j++ {
			fj := e.first[j]
			rj := e.row(j)
			lo := max(fi, fj)
			s := ri[j-fi] - floats.Dot(ri[lo-fi:j-fi], rj[lo-fj:j-fj])
			ri[j-fi] = s / rj[j-fj]
		}
		s := ri[i-fi] - floats.Dot(ri[:i-fi], ri[:i-fi])
		if !(s > tiny) {
			s = 1e128
		}
		ri[i-fi] = math.Sqrt(s)
	}
}

// solve overwrites x with (L·Lᵀ)⁻¹x.
func (e *envelope) solve(x []float64) {
	m := len(e.first)
	for i := 0; i < m; i++ {
		fi := e.first[i]
		ri := e.row(i)
		x[i] = (x[i] - floats.Dot(ri[:i-fi], x[fi:i])) / ri[i-fi]
	}
	for i := m - 1; i >= 0; i-- {
		fi := e.first[i]
		ri := e.row(i)
		x[i] /= ri[i-fi]
		floats.AddScaled(x[fi:i], -x[i], ri[:i-fi])
	}
}

// normalEq solves with A·D·Aᵀ. Sparse columns are assembled into an envelope
// factor S; dense columns U are folded back in with the Sherman-Morrison-
// Woodbury identity (S + U·Du·Uᵀ)⁻¹ = S⁻¹ - W·C⁻¹·Wᵀ, W = S⁻¹U,
// C = Du⁻¹ + Uᵀ·W.
type normalEq struct {
	a     *csc
	dense []bool
	cols  []int
	env   *envelope
	w     [][]float64
	lu    mat.LU
	d     []float64
	tmpM  []float64
	tmpN  []float64
}

// newNormalEq sizes the envelope for the current row order of a. It fails
// with ErrTooLarge when the envelope would exceed limit entries.
func newNormalEq(a *csc, dense []bool, limit int) (*normalEq, error) {
	first := make([]int, a.m)
	for i := range first {
		first[i] = i
	}
	var cols []int
	for j := 0; j < a.n; j++ {
		if dense[j] {
			cols = append(cols, j)
			continue
		}
		rows, _ := a.col(j)
		if len(rows) == 0 {
			continue
		}
		lo := slices.Min(rows)
		for _, r := range rows {
			first[r] = min(first[r], lo)
		}
	}
	if envelopeSize(first) > limit {
		return nil, ErrTooLarge
	}
	q := &normalEq{
		a:     a,
		dense: dense,
		cols:  cols,
		env:   newEnvelope(first),
		w:     make([][]float64, len(cols)),
		tmpM:  make([]float64, a.m),
		tmpN:  make([]float64, a.n),
	}
	for t := range q.w {
		q.w[t] = make([]float64, a.m)
	}
	return q, nil
}

// factor prepares solves with A·diag(d)·Aᵀ.
func (q *normalEq) factor(d []float64) {
	q.d = d
	a := q.a
	clear(q.env.val)
	for j := 0; j < a.n; j++ {
		if q.dense[j] {
			continue
		}
		rows, vals := a.col(j)
		for k, r := range rows {
			v := vals[k] * d[j]
			for l, s := range rows {
				if s <= r {
					q.env.add(r, s, v*vals[l])
				}
			}
		}
	}
	q.env.factor()
	if len(q.cols) == 0 {
		return
	}

	k := len(q.cols)
	for t, j := range q.cols {
		w := q.w[t]
		clear(w)
		rows, vals := a.col(j)
		for l, r := range rows {
			w[r] = vals[l]
		}
		q.env.solve(w)
	}
	c := mat.NewDense(k, k, nil)
	for s, js := range q.cols {
		rows, vals := a.col(js)
		for t := range q.cols {
			var v float64
			for l, r := range rows {
				v += vals[l] * q.w[t][r]
			}
			if s == t {
				v += 1 / d[js]
			}
			c.Set(s, t, v)
		}
	}
	q.lu.Factorize(c)
}

// apply sets dst = (A·D·Aᵀ)⁻¹r for the current factor.
func (q *normalEq) apply(dst, r []float64) error {
	copy(dst, r)
	q.env.solve(dst)
	if len(q.cols) == 0 {
		return nil
	}
	t := mat.NewVecDense(len(q.cols), nil)
	for s, j := range q.cols {
		rows, vals := q.a.col(j)
		var v float64
		for l, row := range rows {
			v += vals[l] * dst[row]
		}
		t.SetVec(s, v)
	}
	var sol mat.VecDense
	if err := q.lu.SolveVecTo(&sol, false, t); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return err
		}
	}
	for s := range q.cols {
		floats.AddScaled(dst, -sol.AtVec(s), q.w[s])
	}
	return nil
}

// solve overwrites r with (A·D·Aᵀ)⁻¹r, refined once against the
// unfactored operator.
func (q *normalEq) solve(r []float64) error {
	x := make([]float64, len(r))
	if err := q.apply(x, r); err != nil {
		return err
	}
	res := q.tmpM
	q.a.mulTransVec(q.tmpN, x)
	floats.Mul(q.tmpN, q.d)
	q.a.mulVec(res, q.tmpN)
	floats.SubTo(res, r, res)
	corr := make([]float64, len(r))
	if err := q.apply(corr, res); err != nil {
		return err
	}
	floats.AddTo(r, x, corr)
	return nil
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
