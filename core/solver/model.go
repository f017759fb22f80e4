package solver

import (
	"errors"
	"fmt"
	"sort"
)

// ErrModelInvalid is returned when the model cannot be solved because it was
// built with inconsistent data.
var ErrModelInvalid = errors.New("model invalid")

// VarID identifies a variable of a Model.
type VarID int

// Lit is a boolean literal over a 0/1 variable.
type Lit struct {
	Var VarID
	Neg bool
}

// Yes is the literal true when v == 1.
func Yes(v VarID) Lit { return Lit{Var: v} }

// No is the literal true when v == 0.
func No(v VarID) Lit { return Lit{Var: v, Neg: true} }

// Not negates the literal.
func (l Lit) Not() Lit { return Lit{Var: l.Var, Neg: !l.Neg} }

// Term is Coef*Var.
type Term struct {
	Var  VarID
	Coef int64
}

// SquareTerm is Coef*Var*Var. Coef must not be negative.
type SquareTerm struct {
	Var  VarID
	Coef int64
}

type variable struct {
	name   string
	lo, hi int64
	hint   int64
	hinted bool
	aux    bool
	isBool bool
	timing bool
}

// constraint is implemented by every propagator. Propagators only narrow
// bounds through the state and report false on conflict.
type constraint interface {
	scope() []VarID
	propagate(s *state) bool
}

// Model is an integer program with half-reified linear constraints.
// It is not safe for concurrent mutation.
type Model struct {
	vars    []variable
	cons    []constraint
	eqs     []linearLE
	linear  []Term
	squares []SquareTerm
	err     error
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{}
}

func (m *Model) fail(format string, args ...any) {
	if m.err == nil {
		m.err = fmt.Errorf("%w: %s", ErrModelInvalid, fmt.Sprintf(format, args...))
	}
}

// Err returns the first construction error.
func (m *Model) Err() error { return m.err }

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of posted propagators.
func (m *Model) NumConstraints() int { return len(m.cons) }

// NewIntVar declares an integer variable with domain [lo, hi].
func (m *Model) NewIntVar(lo, hi int64, name string) VarID {
	if lo > hi {
		m.fail("variable %s has empty domain [%d,%d]", name, lo, hi)
	}
	m.vars = append(m.vars, variable{name: name, lo: lo, hi: hi})
	return VarID(len(m.vars) - 1)
}

// NewBoolVar declares a 0/1 variable.
func (m *Model) NewBoolVar(name string) VarID {
	v := m.NewIntVar(0, 1, name)
	m.vars[v].isBool = true
	return v
}

// Name returns the variable name.
func (m *Model) Name(v VarID) string {
	if !m.valid(v) {
		return ""
	}
	return m.vars[v].name
}

// Bounds returns the declared domain of v.
func (m *Model) Bounds(v VarID) (int64, int64) {
	if !m.valid(v) {
		return 0, 0
	}
	return m.vars[v].lo, m.vars[v].hi
}

// SetHint records the preferred value tried first when branching on v.
func (m *Model) SetHint(v VarID, val int64) {
	if !m.valid(v) {
		m.fail("hint on unknown variable %d", v)
		return
	}
	m.vars[v].hint = val
	m.vars[v].hinted = true
}

// Hint returns the hint of v and whether one was set.
func (m *Model) Hint(v VarID) (int64, bool) {
	if !m.valid(v) {
		return 0, false
	}
	return m.vars[v].hint, m.vars[v].hinted
}

// SetAuxiliary marks v to be branched on after every other variable.
func (m *Model) SetAuxiliary(v VarID) {
	if m.valid(v) {
		m.vars[v].aux = true
	}
}

// SetTiming marks v as a start time. Start times are decided before every
// other variable, the one with the smallest lower bound first, and are set to
// that bound before it is postponed.
func (m *Model) SetTiming(v VarID) {
	if m.valid(v) {
		m.vars[v].timing = true
	}
}

func (m *Model) valid(v VarID) bool {
	return v >= 0 && int(v) < len(m.vars)
}

func (m *Model) checkTerms(terms []Term) bool {
	for _, t := range terms {
		if !m.valid(t.Var) {
			m.fail("term references unknown variable %d", t.Var)
			return false
		}
	}
	return true
}

func (m *Model) checkLits(lits []Lit) bool {
	for _, l := range lits {
		if !m.valid(l.Var) || !m.vars[l.Var].isBool {
			m.fail("literal on non boolean variable %d", l.Var)
			return false
		}
	}
	return true
}

// mergeTerms folds duplicated variables and drops zero coefficients.
func mergeTerms(terms []Term) []Term {
	acc := make(map[VarID]int64, len(terms))
	order := make([]VarID, 0, len(terms))
	for _, t := range terms {
		if _, ok := acc[t.Var]; !ok {
			order = append(order, t.Var)
		}
		acc[t.Var] += t.Coef
	}
	out := make([]Term, 0, len(order))
	for _, v := range order {
		if c := acc[v]; c != 0 {
			out = append(out, Term{Var: v, Coef: c})
		}
	}
	return out
}

// AddLinearLE posts sum(terms) <= rhs, enforced only when every literal in
// enforce is true.
func (m *Model) AddLinearLE(terms []Term, rhs int64, enforce ...Lit) {
	if !m.checkTerms(terms) || !m.checkLits(enforce) {
		return
	}
	m.cons = append(m.cons, &linearLE{terms: mergeTerms(terms), rhs: rhs, enforce: append([]Lit(nil), enforce...)})
}

// AddLinearGE posts sum(terms) >= rhs under enforce.
func (m *Model) AddLinearGE(terms []Term, rhs int64, enforce ...Lit) {
	m.AddLinearLE(negate(terms), -rhs, enforce...)
}

// AddLinearEQ posts sum(terms) == rhs under enforce.
func (m *Model) AddLinearEQ(terms []Term, rhs int64, enforce ...Lit) {
	if !m.checkTerms(terms) || !m.checkLits(enforce) {
		return
	}
	m.AddLinearLE(terms, rhs, enforce...)
	m.AddLinearLE(negate(terms), -rhs, enforce...)
	if len(enforce) == 0 {
		m.eqs = append(m.eqs, linearLE{terms: mergeTerms(terms), rhs: rhs})
	}
}

// AddPrecedence posts a + delay <= b under enforce.
func (m *Model) AddPrecedence(a VarID, delay int64, b VarID, enforce ...Lit) {
	m.AddLinearLE([]Term{{Var: a, Coef: 1}, {Var: b, Coef: -1}}, -delay, enforce...)
}

// AddNotEqual posts x != y under enforce.
func (m *Model) AddNotEqual(x, y VarID, enforce ...Lit) {
	if !m.checkTerms([]Term{{Var: x}, {Var: y}}) || !m.checkLits(enforce) {
		return
	}
	m.cons = append(m.cons, &notEqual{x: x, y: y, enforce: append([]Lit(nil), enforce...)})
}

// AddSeparation declares that the given variables are pairwise at least gap
// apart. The separation itself must be posted pairwise by the caller; this
// propagator detects windows that cannot host all of them.
func (m *Model) AddSeparation(vars []VarID, gap int64) {
	if len(vars) < 2 || gap <= 0 {
		return
	}
	for _, v := range vars {
		if !m.valid(v) {
			m.fail("separation references unknown variable %d", v)
			return
		}
	}
	m.cons = append(m.cons, &separation{vars: append([]VarID(nil), vars...), gap: gap})
}

// AddPredicate posts a check evaluated once every variable in vars is fixed.
func (m *Model) AddPredicate(name string, vars []VarID, fn func(vals []int64) bool) {
	if fn == nil {
		m.fail("predicate %s without function", name)
		return
	}
	for _, v := range vars {
		if !m.valid(v) {
			m.fail("predicate %s references unknown variable %d", name, v)
			return
		}
	}
	m.cons = append(m.cons, &predicate{name: name, vars: append([]VarID(nil), vars...), fn: fn})
}

// Minimize adds linear terms to the minimized objective.
func (m *Model) Minimize(terms ...Term) {
	if m.checkTerms(terms) {
		m.linear = append(m.linear, terms...)
	}
}

// MinimizeSquares adds Coef*x^2 terms to the minimized objective.
func (m *Model) MinimizeSquares(terms ...SquareTerm) {
	for _, t := range terms {
		if !m.valid(t.Var) {
			m.fail("square term references unknown variable %d", t.Var)
			return
		}
		if t.Coef < 0 {
			m.fail("square term on %s has negative coefficient", m.vars[t.Var].name)
			return
		}
	}
	m.squares = append(m.squares, terms...)
}

func negate(terms []Term) []Term {
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}

// compiled is the immutable view shared by all search workers.
type compiled struct {
	m        *Model
	watch    [][]int
	decision []VarID
	timing   []VarID
	isTiming []bool
	// dive is the order of the warm start: start times, then the other
	// integers, then booleans, auxiliaries last.
	dive     []VarID
	objLin   []Term
	objSq    []SquareTerm
	objCoef  []int64
	inSquare []bool
}

func compile(m *Model) *compiled {
	c := &compiled{m: m, watch: make([][]int, len(m.vars))}
	relevant := make([]bool, len(m.vars))
	for i, con := range m.cons {
		for _, v := range con.scope() {
			if n := len(c.watch[v]); n == 0 || c.watch[v][n-1] != i {
				c.watch[v] = append(c.watch[v], i)
			}
			relevant[v] = true
		}
	}
	c.objLin = mergeTerms(m.linear)
	c.objCoef = make([]int64, len(m.vars))
	c.inSquare = make([]bool, len(m.vars))
	for _, t := range c.objLin {
		c.objCoef[t.Var] = t.Coef
		relevant[t.Var] = true
	}
	sq := make(map[VarID]int64)
	var order []VarID
	for _, t := range m.squares {
		if _, ok := sq[t.Var]; !ok {
			order = append(order, t.Var)
		}
		sq[t.Var] += t.Coef
	}
	for _, v := range order {
		if sq[v] != 0 {
			c.objSq = append(c.objSq, SquareTerm{Var: v, Coef: sq[v]})
			c.inSquare[v] = true
			relevant[v] = true
		}
	}
	for v, ok := range relevant {
		if ok {
			c.decision = append(c.decision, VarID(v))
		}
	}
	sort.SliceStable(c.decision, func(i, j int) bool {
		a, b := m.vars[c.decision[i]], m.vars[c.decision[j]]
		if a.aux != b.aux {
			return !a.aux
		}
		if a.isBool != b.isBool {
			return a.isBool
		}
		return c.decision[i] < c.decision[j]
	})
	c.isTiming = make([]bool, len(m.vars))
	for _, v := range c.decision {
		if m.vars[v].timing {
			c.timing = append(c.timing, v)
			c.isTiming[v] = true
		}
	}
	c.dive = append([]VarID(nil), c.decision...)
	rank := func(v VarID) int {
		def := m.vars[v]
		switch {
		case def.timing:
			return 0
		case def.aux:
			return 3
		case def.isBool:
			return 2
		}
		return 1
	}
	sort.SliceStable(c.dive, func(i, j int) bool {
		return rank(c.dive[i]) < rank(c.dive[j])
	})
	return c
}
