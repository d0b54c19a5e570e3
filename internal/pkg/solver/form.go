package solver

import (
	"github.com/ohowland/energyhub/internal/pkg/lp"
	gonumlp "gonum.org/v1/gonum/optimize/convex/lp"
)

type row struct {
	coef  map[int]float64
	sense lp.Sense
	rhs   float64
	name  string
}

// prepared is a Problem reduced to minimization over nonempty rows. Upper
// bounds are rows of their own.
type prepared struct {
	n    int
	obj  []float64
	rows []row
	used []bool
}

func prepare(p lp.Problem) (prepared, error) {
	n := p.Base.NumVariables()
	obj := make([]float64, n)
	for _, t := range p.Objective.Terms {
		obj[t.Var] += t.Coef
	}
	if p.Direction == lp.Maximize {
		for i := range obj {
			obj[i] = -obj[i]
		}
	}

	rows, err := collectRows(p)
	if err != nil {
		return prepared{}, err
	}

	used := make([]bool, n)
	for _, r := range rows {
		for j := range r.coef {
			used[j] = true
		}
	}
	for j := 0; j < n; j++ {
		if !used[j] && obj[j] < 0 {
			return prepared{}, Failure(gonumlp.ErrUnbounded)
		}
	}
	return prepared{n: n, obj: obj, rows: rows, used: used}, nil
}

// size is the shape of the standard form: one row per constraint, one column
// per used variable and one per inequality slack.
func (f prepared) size() (rows, cols int) {
	for _, u := range f.used {
		if u {
			cols++
		}
	}
	for _, r := range f.rows {
		if r.sense != lp.Equal {
			cols++
		}
	}
	return len(f.rows), cols
}

// columns maps the used variables to standard form columns and appends one
// slack column (-1) per inequality row.
func (f prepared) columns() (cols, index []int) {
	cols = make([]int, 0, f.n+len(f.rows))
	index = make([]int, f.n)
	for j := 0; j < f.n; j++ {
		index[j] = -1
		if f.used[j] {
			index[j] = len(cols)
			cols = append(cols, j)
		}
	}
	for _, r := range f.rows {
		if r.sense != lp.Equal {
			cols = append(cols, -1)
		}
	}
	return cols, index
}

// solution maps a standard form point back onto the model variables,
// clamped to their bounds.
func (f prepared) solution(p lp.Problem, cols []int, x []float64) []float64 {
	out := make([]float64, f.n)
	for k, j := range cols {
		if j < 0 {
			continue
		}
		v := x[k]
		if v < 0 {
			v = 0
		}
		if ub := p.Base.Variable(lp.Var(j)).Upper; v > ub {
			v = ub
		}
		out[j] = v
	}
	return out
}

func collectRows(p lp.Problem) ([]row, error) {
	rows := make([]row, 0, p.NumConstraints())
	for i := 0; i < p.NumConstraints(); i++ {
		c := p.Constraint(i)
		coef := make(map[int]float64, len(c.Expr.Terms))
		for _, t := range c.Expr.Terms {
			coef[int(t.Var)] += t.Coef
		}
		for j, v := range coef {
			if v == 0 {
				delete(coef, j)
			}
		}
		r := row{coef, c.Sense, c.Bound(), c.Name}
		if len(coef) == 0 {
			if !constantHolds(r) {
				return nil, NewInfeasibleError(p)
			}
			continue
		}
		rows = append(rows, r)
	}
	for j := 0; j < p.Base.NumVariables(); j++ {
		v := p.Base.Variable(lp.Var(j))
		if v.Bounded() {
			rows = append(rows, row{map[int]float64{j: 1}, lp.LessEq, v.Upper, v.Name + ".ub"})
		}
	}
	return rows, nil
}

func constantHolds(r row) bool {
	switch r.sense {
	case lp.LessEq:
		return 0 <= r.rhs
	case lp.GreaterEq:
		return 0 >= r.rhs
	default:
		return r.rhs == 0
	}
}

// estimate is the standard form shape of p without building its rows.
func estimate(p lp.Problem) (rows, cols int) {
	used := make([]bool, p.Base.NumVariables())
	for i := 0; i < p.NumConstraints(); i++ {
		c := p.Constraint(i)
		if len(c.Expr.Terms) == 0 {
			continue
		}
		rows++
		if c.Sense != lp.Equal {
			cols++
		}
		for _, t := range c.Expr.Terms {
			used[t.Var] = true
		}
	}
	for j, u := range used {
		if p.Base.Variable(lp.Var(j)).Bounded() {
			u = true
			rows++
			cols++
		}
		if u {
			cols++
		}
	}
	return rows, cols
}
