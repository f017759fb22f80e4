package optimizer

import (
	"fmt"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/solver"
)

// DefaultHeadwayMinutes separates trains sharing a route section.
const DefaultHeadwayMinutes = 5

// softPenaltyUnit is the objective cost of relaxing a rank 10 soft constraint.
const softPenaltyUnit = 1000

// Builder carries the state shared by rule applications of one request.
type Builder struct {
	Vars    *Variables
	Headway int64
	Log     logger.Logger

	penalties       []solver.Term
	stationCapacity map[string]int
	orders          []ordering
	windows         []window
	sames           []samePlatform
}

// ordering is a sequence boolean and the spans it orders.
type ordering struct {
	v    solver.VarID
	a, c span
	gap  int64
}

// window is an excludeWindow boolean, true when the span ends before ws.
type window struct {
	v  solver.VarID
	s  span
	ws int64
}

// samePlatform is true when the pair may share a platform.
type samePlatform struct {
	v    solver.VarID
	a, c *TrainVars
}

// NewBuilder returns a builder over vars. headway <= 0 selects the default.
func NewBuilder(vars *Variables, headway int, log logger.Logger) *Builder {
	if headway <= 0 {
		headway = DefaultHeadwayMinutes
	}
	return &Builder{Vars: vars, Headway: int64(headway), Log: log, stationCapacity: map[string]int{}}
}

// Penalties returns the objective terms paying for relaxed soft rules.
func (b *Builder) Penalties() []solver.Term {
	return b.penalties
}

func (b *Builder) model() *solver.Model { return b.Vars.Model }

// enforcement returns the literals guarding a rule. Hard rules are always
// enforced; soft rules get a relaxation variable charged in the objective.
func (b *Builder) enforcement(name string, hard bool, weight int64) []solver.Lit {
	if hard {
		return nil
	}
	relax := b.model().NewBoolVar(name + ".relaxed")
	b.model().SetHint(relax, 0)
	b.penalties = append(b.penalties, solver.Term{Var: relax, Coef: weight})
	return []solver.Lit{solver.No(relax)}
}

func softWeight(rank int) int64 {
	return int64(11-rank) * softPenaltyUnit
}

func with(base []solver.Lit, extra ...solver.Lit) []solver.Lit {
	out := make([]solver.Lit, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// span is the interval [from, to] a train holds some resource.
type span struct {
	from, to solver.VarID
}

// sequence orders two spans with a fresh boolean: when true a.to+gap <= c.from,
// otherwise c.to+gap <= a.from.
func (b *Builder) sequence(name string, a, c span, gap int64, aFirst bool, enforce []solver.Lit) solver.VarID {
	m := b.model()
	o := m.NewBoolVar(name)
	if aFirst {
		m.SetHint(o, 1)
	} else {
		m.SetHint(o, 0)
	}
	m.AddPrecedence(a.to, gap, c.from, with(enforce, solver.Yes(o))...)
	m.AddPrecedence(c.to, gap, a.from, with(enforce, solver.No(o))...)
	b.orders = append(b.orders, ordering{v: o, a: a, c: c, gap: gap})
	return o
}

// excludeWindow keeps a span out of the fixed window [ws, we).
func (b *Builder) excludeWindow(name string, s span, ws, we int64, hintBefore bool, enforce []solver.Lit) {
	m := b.model()
	before := m.NewBoolVar(name)
	if hintBefore {
		m.SetHint(before, 1)
	} else {
		m.SetHint(before, 0)
	}
	m.AddLinearLE([]solver.Term{{Var: s.to, Coef: 1}}, ws, with(enforce, solver.Yes(before))...)
	m.AddLinearGE([]solver.Term{{Var: s.from, Coef: 1}}, we, with(enforce, solver.No(before))...)
	b.windows = append(b.windows, window{v: before, s: s, ws: ws})
}

// goesFirst is the preferred order of two trains: higher priority first, then
// earlier scheduled departure, then input order.
func goesFirst(a, c *TrainVars) bool {
	ra, rc := a.Train.Priority.Rank(), c.Train.Priority.Rank()
	if ra != rc {
		return ra < rc
	}
	if a.Offset != c.Offset {
		return a.Offset < c.Offset
	}
	return a.Index < c.Index
}

// pairs calls fn for every unordered pair of trains accepted by keep.
func (b *Builder) pairs(keep func(a, c *TrainVars) bool, fn func(a, c *TrainVars)) {
	ts := b.Vars.Trains
	for i := 0; i < len(ts); i++ {
		for j := i + 1; j < len(ts); j++ {
			if keep(ts[i], ts[j]) {
				fn(ts[i], ts[j])
			}
		}
	}
}

func pairName(kind string, a, c *TrainVars) string {
	return fmt.Sprintf("%s[%s,%s]", kind, a.Train.ID, c.Train.ID)
}

// sharedVia reports whether the pair shares a station whose platforms hold a
// single train at a time.
func (b *Builder) sharedVia(a, c *TrainVars) bool {
	ta, tc := a.Train, c.Train
	single := func(st string) bool { return b.stationCapacity[st] <= 1 }
	if ta.OriginStation != "" && ta.OriginStation == tc.OriginStation && single(ta.OriginStation) {
		return true
	}
	return ta.DestinationStation != "" && ta.DestinationStation == tc.DestinationStation && single(ta.DestinationStation)
}
