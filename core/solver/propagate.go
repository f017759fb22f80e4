package solver

import "sort"

type trailEntry struct {
	v      VarID
	lo, hi int64
}

// state holds the mutable domains of one search worker.
type state struct {
	c       *compiled
	lo, hi  []int64
	trail   []trailEntry
	queue   []int
	queued  []bool
	scratch []int64
}

func newState(c *compiled) *state {
	n := len(c.m.vars)
	s := &state{
		c:      c,
		lo:     make([]int64, n),
		hi:     make([]int64, n),
		queued: make([]bool, len(c.m.cons)),
	}
	for i, v := range c.m.vars {
		s.lo[i], s.hi[i] = v.lo, v.hi
	}
	return s
}

func (s *state) clone() *state {
	cp := &state{
		c:      s.c,
		lo:     append([]int64(nil), s.lo...),
		hi:     append([]int64(nil), s.hi...),
		queued: make([]bool, len(s.queued)),
	}
	return cp
}

func (s *state) fixed(v VarID) bool { return s.lo[v] == s.hi[v] }

func (s *state) mark() int { return len(s.trail) }

func (s *state) undo(mark int) {
	for i := len(s.trail) - 1; i >= mark; i-- {
		e := s.trail[i]
		s.lo[e.v], s.hi[e.v] = e.lo, e.hi
	}
	s.trail = s.trail[:mark]
}

func (s *state) touch(v VarID) {
	s.trail = append(s.trail, trailEntry{v: v, lo: s.lo[v], hi: s.hi[v]})
}

func (s *state) schedule(v VarID) {
	for _, ci := range s.c.watch[v] {
		if !s.queued[ci] {
			s.queued[ci] = true
			s.queue = append(s.queue, ci)
		}
	}
}

func (s *state) setLo(v VarID, val int64) bool {
	if val <= s.lo[v] {
		return true
	}
	if val > s.hi[v] {
		return false
	}
	s.touch(v)
	s.lo[v] = val
	s.schedule(v)
	return true
}

func (s *state) setHi(v VarID, val int64) bool {
	if val >= s.hi[v] {
		return true
	}
	if val < s.lo[v] {
		return false
	}
	s.touch(v)
	s.hi[v] = val
	s.schedule(v)
	return true
}

func (s *state) restrict(v VarID, lo, hi int64) bool {
	return s.setLo(v, lo) && s.setHi(v, hi)
}

// lit returns the literal value and whether it is decided.
func (s *state) lit(l Lit) (bool, bool) {
	if !s.fixed(l.Var) {
		return false, false
	}
	return (s.lo[l.Var] == 1) != l.Neg, true
}

func (s *state) setLit(l Lit, val bool) bool {
	want := int64(0)
	if val != l.Neg {
		want = 1
	}
	return s.restrict(l.Var, want, want)
}

// enforcement summarizes a literal conjunction: disabled when a literal is
// false, otherwise the number of undecided literals and the last one seen.
func (s *state) enforcement(lits []Lit) (disabled bool, open int, last Lit) {
	for _, l := range lits {
		val, ok := s.lit(l)
		if !ok {
			open++
			last = l
			continue
		}
		if !val {
			return true, 0, last
		}
	}
	return false, open, last
}

func (s *state) enqueueAll() {
	for i := range s.c.m.cons {
		if !s.queued[i] {
			s.queued[i] = true
			s.queue = append(s.queue, i)
		}
	}
}

// propagate runs every queued propagator to a fixpoint.
func (s *state) propagate() bool {
	for len(s.queue) > 0 {
		ci := s.queue[0]
		s.queue = s.queue[1:]
		s.queued[ci] = false
		if !s.c.m.cons[ci].propagate(s) {
			for _, q := range s.queue {
				s.queued[q] = false
			}
			s.queue = s.queue[:0]
			return false
		}
	}
	s.queue = s.queue[:0]
	return true
}

type linearLE struct {
	terms   []Term
	rhs     int64
	enforce []Lit
}

func (c *linearLE) scope() []VarID {
	out := make([]VarID, 0, len(c.terms)+len(c.enforce))
	for _, t := range c.terms {
		out = append(out, t.Var)
	}
	for _, l := range c.enforce {
		out = append(out, l.Var)
	}
	return out
}

func (c *linearLE) minSum(s *state) int64 {
	var sum int64
	for _, t := range c.terms {
		if t.Coef > 0 {
			sum += t.Coef * s.lo[t.Var]
		} else {
			sum += t.Coef * s.hi[t.Var]
		}
	}
	return sum
}

func (c *linearLE) propagate(s *state) bool {
	disabled, open, last := s.enforcement(c.enforce)
	if disabled {
		return true
	}
	low := c.minSum(s)
	if open > 0 {
		if open == 1 && low > c.rhs {
			return s.setLit(last, false)
		}
		return true
	}
	if low > c.rhs {
		return false
	}
	slack := c.rhs - low
	for _, t := range c.terms {
		if t.Coef > 0 {
			if !s.setHi(t.Var, s.lo[t.Var]+slack/t.Coef) {
				return false
			}
		} else {
			if !s.setLo(t.Var, s.hi[t.Var]-slack/(-t.Coef)) {
				return false
			}
		}
	}
	return true
}

type notEqual struct {
	x, y    VarID
	enforce []Lit
}

func (c *notEqual) scope() []VarID {
	out := []VarID{c.x, c.y}
	for _, l := range c.enforce {
		out = append(out, l.Var)
	}
	return out
}

func (c *notEqual) propagate(s *state) bool {
	disabled, open, last := s.enforcement(c.enforce)
	if disabled {
		return true
	}
	clash := s.fixed(c.x) && s.fixed(c.y) && s.lo[c.x] == s.lo[c.y]
	if open > 0 {
		if open == 1 && clash {
			return s.setLit(last, false)
		}
		return true
	}
	if clash {
		return false
	}
	return exclude(s, c.x, c.y) && exclude(s, c.y, c.x)
}

// exclude removes the value of a fixed x from the bounds of y.
func exclude(s *state, x, y VarID) bool {
	if !s.fixed(x) {
		return true
	}
	v := s.lo[x]
	if s.lo[y] == v && !s.setLo(y, v+1) {
		return false
	}
	if s.hi[y] == v && !s.setHi(y, v-1) {
		return false
	}
	return true
}

type separation struct {
	vars []VarID
	gap  int64
}

func (c *separation) scope() []VarID { return c.vars }

// propagate fails when some window [a, b] must host more variables than
// (b-a)/gap+1 allows.
func (c *separation) propagate(s *state) bool {
	n := len(c.vars)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return s.lo[c.vars[idx[i]]] < s.lo[c.vars[idx[j]]] })
	his := s.scratch[:0]
	for i := 0; i < n; i++ {
		a := s.lo[c.vars[idx[i]]]
		if i > 0 && a == s.lo[c.vars[idx[i-1]]] {
			continue
		}
		his = his[:0]
		for _, j := range idx[i:] {
			his = append(his, s.hi[c.vars[j]])
		}
		sort.Slice(his, func(p, q int) bool { return his[p] < his[q] })
		for k, b := range his {
			if b-a < c.gap*int64(k) {
				s.scratch = his
				return false
			}
		}
	}
	s.scratch = his
	return true
}

type predicate struct {
	name string
	vars []VarID
	fn   func([]int64) bool
}

func (c *predicate) scope() []VarID { return c.vars }

func (c *predicate) propagate(s *state) bool {
	vals := make([]int64, len(c.vars))
	for i, v := range c.vars {
		if !s.fixed(v) {
			return true
		}
		vals[i] = s.lo[v]
	}
	return c.fn(vals)
}
