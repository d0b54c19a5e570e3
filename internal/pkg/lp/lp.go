// Package lp holds the solver-independent linear program used by the hub:
// nonnegative variables with optional upper bounds, linear expressions and
// constraints. A Model is built once, frozen, and then shared read-only by
// every Problem composed on top of it.
package lp

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrFrozen is returned when a frozen Model is modified.
	ErrFrozen = errors.New("lp: model is frozen")
	// ErrUnknownVar is returned when an expression references a variable the model does not own.
	ErrUnknownVar = errors.New("lp: unknown variable")
)

// Var is a column index into a Model.
type Var int

// Term is one coef*var product of an expression.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is the linear expression sum(Terms) + Const.
type Expr struct {
	Terms []Term
	Const float64
}

// NewExpr returns an expression made of the given terms.
func NewExpr(terms ...Term) Expr {
	return Expr{Terms: append([]Term(nil), terms...)}
}

// Add appends coef*v to the expression.
func (e *Expr) Add(v Var, coef float64) {
	if coef == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{v, coef})
}

// AddExpr appends scale*o to the expression.
func (e *Expr) AddExpr(o Expr, scale float64) {
	if scale == 0 {
		return
	}
	for _, t := range o.Terms {
		e.Add(t.Var, t.Coef*scale)
	}
	e.Const += o.Const * scale
}

// Scale returns a copy of the expression multiplied by f.
func (e Expr) Scale(f float64) Expr {
	out := Expr{Terms: make([]Term, 0, len(e.Terms)), Const: e.Const * f}
	for _, t := range e.Terms {
		out.Add(t.Var, t.Coef*f)
	}
	return out
}

// Clone returns a deep copy of the expression.
func (e Expr) Clone() Expr {
	return Expr{Terms: append([]Term(nil), e.Terms...), Const: e.Const}
}

// Eval evaluates the expression at x.
func (e Expr) Eval(x []float64) float64 {
	v := e.Const
	for _, t := range e.Terms {
		v += t.Coef * x[t.Var]
	}
	return v
}

// Empty reports whether the expression has no variable terms.
func (e Expr) Empty() bool {
	return len(e.Terms) == 0
}

// Sense is the relation of a constraint.
type Sense int

const (
	LessEq Sense = iota
	Equal
	GreaterEq
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case Equal:
		return "=="
	case GreaterEq:
		return ">="
	default:
		return "?"
	}
}

// Constraint is Expr <Sense> RHS.
type Constraint struct {
	Name  string
	Expr  Expr
	Sense Sense
	RHS   float64
}

// Le builds e <= rhs.
func Le(name string, e Expr, rhs float64) Constraint {
	return Constraint{name, e, LessEq, rhs}
}

// Ge builds e >= rhs.
func Ge(name string, e Expr, rhs float64) Constraint {
	return Constraint{name, e, GreaterEq, rhs}
}

// Eq builds e == rhs.
func Eq(name string, e Expr, rhs float64) Constraint {
	return Constraint{name, e, Equal, rhs}
}

// Bound returns the right hand side with the expression constant moved across.
func (c Constraint) Bound() float64 {
	return c.RHS - c.Expr.Const
}

// Satisfied reports whether x satisfies the constraint within tol.
func (c Constraint) Satisfied(x []float64, tol float64) bool {
	lhs := c.Expr.Eval(x)
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %g", c.Name, c.Sense, c.RHS)
}

// Variable is a nonnegative decision variable with an optional upper bound.
type Variable struct {
	Name  string
	Upper float64
}

// Bounded reports whether the variable has a finite upper bound.
func (v Variable) Bounded() bool {
	return !math.IsInf(v.Upper, 1)
}

// Model is the shared variable and constraint set.
type Model struct {
	vars   []Variable
	cons   []Constraint
	frozen bool
}

// NewModel returns an empty, mutable Model.
func NewModel() *Model {
	return &Model{}
}

// NewVariable declares a variable in [0, +Inf).
func (m *Model) NewVariable(name string) Var {
	if m.frozen {
		panic(ErrFrozen)
	}
	m.vars = append(m.vars, Variable{Name: name, Upper: math.Inf(1)})
	return Var(len(m.vars) - 1)
}

// NewSeries declares n variables named name[0]..name[n-1].
func (m *Model) NewSeries(name string, n int) []Var {
	vs := make([]Var, n)
	for i := range vs {
		vs[i] = m.NewVariable(fmt.Sprintf("%s[%d]", name, i))
	}
	return vs
}

// SetUpper tightens the upper bound of v.
func (m *Model) SetUpper(v Var, ub float64) error {
	if m.frozen {
		return ErrFrozen
	}
	if int(v) < 0 || int(v) >= len(m.vars) {
		return fmt.Errorf("%w: %d", ErrUnknownVar, v)
	}
	if ub < 0 {
		return fmt.Errorf("lp: negative upper bound %g for %s", ub, m.vars[v].Name)
	}
	if ub < m.vars[v].Upper {
		m.vars[v].Upper = ub
	}
	return nil
}

// NewConstraint adds constraints to the model.
func (m *Model) NewConstraint(cs ...Constraint) error {
	if m.frozen {
		return ErrFrozen
	}
	for _, c := range cs {
		if err := m.check(c); err != nil {
			return err
		}
	}
	m.cons = append(m.cons, cs...)
	return nil
}

func (m *Model) check(c Constraint) error {
	for _, t := range c.Expr.Terms {
		if int(t.Var) < 0 || int(t.Var) >= len(m.vars) {
			return fmt.Errorf("%w: %d in %s", ErrUnknownVar, t.Var, c.Name)
		}
	}
	return nil
}

// Freeze makes the model read-only.
func (m *Model) Freeze() {
	m.frozen = true
}

// Frozen reports whether the model is read-only.
func (m *Model) Frozen() bool {
	return m.frozen
}

// NumVariables returns the number of declared variables.
func (m *Model) NumVariables() int {
	return len(m.vars)
}

// NumConstraints returns the number of base constraints.
func (m *Model) NumConstraints() int {
	return len(m.cons)
}

// Variable returns the declaration of v.
func (m *Model) Variable(v Var) Variable {
	return m.vars[v]
}

// Constraint returns the i-th base constraint.
func (m *Model) Constraint(i int) Constraint {
	return m.cons[i]
}

// Direction is the optimization sense of a Problem.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "max"
	}
	return "min"
}

// Problem is one solve: a frozen base model plus a private overlay of
// extra constraints and an objective.
type Problem struct {
	Base      *Model
	Extra     []Constraint
	Objective Expr
	Direction Direction
}

// With composes a Problem on top of a frozen model. The extra constraints are
// copied so callers may reuse their slice.
func (m *Model) With(objective Expr, dir Direction, extra ...Constraint) (Problem, error) {
	if !m.frozen {
		return Problem{}, errors.New("lp: base model must be frozen before composing problems")
	}
	for _, c := range extra {
		if err := m.check(c); err != nil {
			return Problem{}, err
		}
	}
	if err := m.check(Constraint{Name: "objective", Expr: objective}); err != nil {
		return Problem{}, err
	}
	return Problem{
		Base:      m,
		Extra:     append([]Constraint(nil), extra...),
		Objective: objective,
		Direction: dir,
	}, nil
}

// NumConstraints returns base plus overlay constraints.
func (p Problem) NumConstraints() int {
	return p.Base.NumConstraints() + len(p.Extra)
}

// Constraint returns the i-th constraint, base constraints first.
func (p Problem) Constraint(i int) Constraint {
	if n := p.Base.NumConstraints(); i >= n {
		return p.Extra[i-n]
	}
	return p.Base.Constraint(i)
}

// Feasible reports the first constraint or bound violated by x, if any.
func (p Problem) Feasible(x []float64, tol float64) (Constraint, bool) {
	for i := 0; i < p.Base.NumVariables(); i++ {
		v := p.Base.Variable(Var(i))
		if x[i] < -tol || x[i] > v.Upper+tol {
			return Constraint{Name: v.Name + " bounds"}, false
		}
	}
	for i := 0; i < p.NumConstraints(); i++ {
		if c := p.Constraint(i); !c.Satisfied(x, tol) {
			return c, false
		}
	}
	return Constraint{}, true
}
