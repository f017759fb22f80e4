package solver

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultTimeLimit = 30 * time.Second
	checkEvery       = 256
	splitFactor      = 4
	maxSplitRounds   = 6
)

type branch struct {
	v      VarID
	lo, hi int64
}

type subproblem struct {
	path []branch
}

type workerResult struct {
	found  bool
	obj    int64
	values []int64
	nodes  int64
	err    error
}

type search struct {
	c         *compiled
	root      *state
	rootBound int64
	deadline  time.Time
	ctx       context.Context
	stop      atomic.Bool
	shared    atomic.Int64
	params    Params
}

// Solve minimizes the model objective within the time limit. A non-nil error
// is returned for invalid models and for internal faults; infeasibility and
// timeouts are reported through the status.
func Solve(ctx context.Context, m *Model, p Params) (Result, error) {
	started := time.Now()
	if m.err != nil {
		return Result{Status: StatusModelInvalid}, m.err
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = defaultTimeLimit
	}
	if p.Workers <= 0 || p.Strategy == StrategyFixed {
		p.Workers = 1
	}
	c := compile(m)
	root := newState(c)
	root.enqueueAll()
	if !root.propagate() {
		return Result{Status: StatusInfeasible, WallTime: time.Since(started)}, nil
	}
	root.trail = root.trail[:0]

	s := &search{c: c, root: root, ctx: ctx, params: p, deadline: started.Add(p.TimeLimit)}
	s.shared.Store(math.MaxInt64)
	s.rootBound = objectiveBound(c, root)
	if p.UseLPBound {
		if b, ok := lpBound(c, root); ok && b > s.rootBound {
			s.rootBound = b
		}
	}
	s.logf("solve: %d vars, %d decisions, %d constraints, root bound %d, %d workers",
		len(m.vars), len(c.decision), len(m.cons), s.rootBound, p.Workers)

	warm := s.warmStart()
	if warm.found {
		s.logf("solve: warm start %d", warm.obj)
	}

	subs := []subproblem{{}}
	if p.Workers > 1 {
		subs = s.split(p.Workers * splitFactor)
	}
	results := append([]workerResult{warm}, s.run(subs)...)

	res := Result{Status: StatusUnknown, Bound: s.rootBound, WallTime: time.Since(started)}
	best := -1
	for i, r := range results {
		res.Nodes += r.nodes
		if r.err != nil {
			return Result{Status: StatusUnknown, WallTime: time.Since(started)}, r.err
		}
		if r.found && (best < 0 || r.obj < results[best].obj) {
			best = i
		}
	}
	complete := !s.stop.Load()
	switch {
	case best >= 0:
		res.Objective = results[best].obj
		res.values = results[best].values
		res.Status = StatusFeasible
		if complete || res.Objective <= s.rootBound {
			res.Status = StatusOptimal
			res.Bound = res.Objective
		}
	case complete:
		res.Status = StatusInfeasible
	}
	s.logf("solve: status %s objective %d after %d nodes in %s", res.Status, res.Objective, res.Nodes, res.WallTime)
	return res, nil
}

func (s *search) logf(format string, args ...any) {
	if s.params.Logger != nil {
		s.params.Logger.Debugf(format, args...)
	}
}

// run solves the subproblems on the worker pool. Results are indexed like
// subs so the reduction does not depend on scheduling.
func (s *search) run(subs []subproblem) []workerResult {
	results := make([]workerResult, len(subs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := s.params.Workers
	if workers > len(subs) {
		workers = len(subs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.solveSub(i, subs[i])
			}
		}()
	}
	for i := range subs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (s *search) solveSub(idx int, sub subproblem) (res workerResult) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("search worker %d: %v", idx, r)
		}
	}()
	w := &worker{s: s, st: s.root.clone(), reverse: s.params.Strategy == StrategyPortfolio && idx%2 == 1}
	for _, b := range sub.path {
		if !w.st.restrict(b.v, b.lo, b.hi) || !w.st.propagate() {
			return workerResult{}
		}
	}
	w.dfs()
	return workerResult{found: w.found, obj: w.obj, values: w.values, nodes: w.nodes}
}

// split expands the root breadth first until enough independent subtrees
// exist. Children keep their parent's position so the order is stable.
// Subtrees refuted by propagation are dropped, so the result may be empty.
func (s *search) split(target int) []subproblem {
	subs := []subproblem{{}}
	for round := 0; round < maxSplitRounds && len(subs) < target; round++ {
		var next []subproblem
		expanded := false
		for _, sub := range subs {
			st := s.root.clone()
			ok := true
			for _, b := range sub.path {
				if !st.restrict(b.v, b.lo, b.hi) || !st.propagate() {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			w := &worker{s: s, st: st}
			v, found := w.pick()
			if !found {
				next = append(next, sub)
				continue
			}
			expanded = true
			for _, b := range w.branches(v) {
				path := append(append([]branch(nil), sub.path...), b)
				next = append(next, subproblem{path: path})
			}
		}
		subs = next
		if !expanded {
			break
		}
	}
	return subs
}

// warmStart fixes the variables one at a time in dive order, each to its
// hint when propagation accepts it, otherwise to its preferred value or a
// bound. It never backtracks; a variable with no acceptable candidate ends the
// dive without a solution. A completed dive becomes the first incumbent.
func (s *search) warmStart() (res workerResult) {
	defer func() {
		if r := recover(); r != nil {
			res = workerResult{err: fmt.Errorf("warm start: %v", r)}
		}
	}()
	w := &worker{s: s, st: s.root.clone()}
	for _, v := range s.c.dive {
		if s.ctx != nil && s.ctx.Err() != nil {
			return workerResult{nodes: w.nodes}
		}
		if w.st.fixed(v) {
			continue
		}
		w.nodes++
		placed := false
		for _, val := range w.diveValues(v) {
			mark := w.st.mark()
			if w.st.restrict(v, val, val) && w.st.propagate() {
				placed = true
				break
			}
			w.st.undo(mark)
		}
		if !placed {
			s.logf("solve: warm start stopped at %s", s.c.m.Name(v))
			return workerResult{nodes: w.nodes}
		}
	}
	w.record(objectiveBound(s.c, w.st))
	return workerResult{found: true, obj: w.obj, values: w.values, nodes: w.nodes}
}

// diveValues lists the distinct values the warm start tries for v.
func (w *worker) diveValues(v VarID) []int64 {
	lo, hi := w.st.lo[v], w.st.hi[v]
	var out []int64
	add := func(val int64) {
		for _, x := range out {
			if x == val {
				return
			}
		}
		out = append(out, val)
	}
	if def := w.s.c.m.vars[v]; def.hinted {
		add(clamp(def.hint, lo, hi))
	}
	add(w.preferred(v))
	add(lo)
	add(hi)
	return out
}

type worker struct {
	s       *search
	st      *state
	reverse bool
	found   bool
	obj     int64
	values  []int64
	nodes   int64
}

func (w *worker) stopped() bool {
	if w.s.stop.Load() {
		return true
	}
	if w.nodes%checkEvery != 1 {
		return false
	}
	if time.Now().After(w.s.deadline) {
		w.s.stop.Store(true)
		return true
	}
	if w.s.ctx != nil && w.s.ctx.Err() != nil {
		w.s.stop.Store(true)
		return true
	}
	return false
}

func (w *worker) dfs() {
	w.nodes++
	if w.stopped() {
		return
	}
	lb := objectiveBound(w.s.c, w.st)
	if lb < w.s.rootBound {
		lb = w.s.rootBound
	}
	if w.found && lb >= w.obj {
		return
	}
	if lb >= w.s.shared.Load() {
		return
	}
	v, ok := w.pick()
	if !ok {
		w.record(objectiveBound(w.s.c, w.st))
		return
	}
	for _, b := range w.branches(v) {
		mark := w.st.mark()
		if w.st.restrict(b.v, b.lo, b.hi) && w.st.propagate() {
			w.dfs()
		}
		w.st.undo(mark)
		if w.s.stop.Load() {
			return
		}
	}
}

func (w *worker) record(obj int64) {
	if w.found && obj >= w.obj {
		return
	}
	w.found = true
	w.obj = obj
	w.values = make([]int64, len(w.st.lo))
	for i, def := range w.s.c.m.vars {
		lo, hi := w.st.lo[i], w.st.hi[i]
		w.values[i] = lo
		if lo != hi && def.hinted {
			// unconstrained variables take their hint
			w.values[i] = clamp(def.hint, lo, hi)
		}
	}
	for {
		cur := w.s.shared.Load()
		if obj >= cur || w.s.shared.CompareAndSwap(cur, obj) {
			break
		}
	}
	w.s.logf("solve: incumbent %d", obj)
}

// pick returns the undecided start time with the smallest lower bound, or
// else the first undecided variable in branching order.
func (w *worker) pick() (VarID, bool) {
	best := VarID(-1)
	for _, v := range w.s.c.timing {
		if w.st.fixed(v) {
			continue
		}
		if best < 0 || w.st.lo[v] < w.st.lo[best] ||
			(w.st.lo[v] == w.st.lo[best] && w.st.hi[v] < w.st.hi[best]) {
			best = v
		}
	}
	if best >= 0 {
		return best, true
	}
	for _, v := range w.s.c.decision {
		if !w.st.fixed(v) {
			return v, true
		}
	}
	return 0, false
}

// branches splits v around its preferred value: equal first, then below,
// then above. Start times are set to their lower bound or postponed.
func (w *worker) branches(v VarID) []branch {
	lo, hi := w.st.lo[v], w.st.hi[v]
	val := w.preferred(v)
	if w.s.c.isTiming[v] {
		val = lo
	}
	out := []branch{{v: v, lo: val, hi: val}}
	below := branch{v: v, lo: lo, hi: val - 1}
	above := branch{v: v, lo: val + 1, hi: hi}
	if w.reverse {
		below, above = above, below
	}
	for _, b := range []branch{below, above} {
		if b.lo <= b.hi {
			out = append(out, b)
		}
	}
	return out
}

func (w *worker) preferred(v VarID) int64 {
	lo, hi := w.st.lo[v], w.st.hi[v]
	c := w.s.c
	switch coef := c.objCoef[v]; {
	case coef < 0 && !c.inSquare[v]:
		return hi
	case coef > 0 || c.inSquare[v]:
		return lo
	}
	if def := c.m.vars[v]; def.hinted {
		return clamp(def.hint, lo, hi)
	}
	return lo
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// objectiveBound is the objective minimum over the current box. It equals the
// objective value once every objective variable is fixed.
func objectiveBound(c *compiled, s *state) int64 {
	var sum int64
	for _, t := range c.objLin {
		if t.Coef > 0 {
			sum += t.Coef * s.lo[t.Var]
		} else {
			sum += t.Coef * s.hi[t.Var]
		}
	}
	for _, t := range c.objSq {
		lo, hi := s.lo[t.Var], s.hi[t.Var]
		var m int64
		switch {
		case lo > 0:
			m = lo * lo
		case hi < 0:
			m = hi * hi
		}
		sum += t.Coef * m
	}
	return sum
}
