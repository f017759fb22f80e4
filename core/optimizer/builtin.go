package optimizer

import (
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

const builtinKind model.ConstraintKind = "BUILTIN"

type builtinRule struct {
	id string
	fn func(b *Builder) error
}

func (r builtinRule) ID() string                 { return r.id }
func (r builtinRule) Kind() model.ConstraintKind { return builtinKind }
func (r builtinRule) apply(b *Builder) error     { return r.fn(b) }

// BuiltinRules returns the scheduling rules applied to every request, in
// application order.
func BuiltinRules() []Rule {
	return []Rule{
		builtinRule{id: "timing", fn: applyTiming},
		builtinRule{id: "platform_conflict", fn: applyPlatformConflict},
		builtinRule{id: "headway", fn: applyHeadway},
		builtinRule{id: "priority_order", fn: applyPriorityOrder},
		builtinRule{id: "route_sequence", fn: applyRouteSequence},
	}
}

// applyTiming posts end = start + journey and start = offset + delay.
func applyTiming(b *Builder) error {
	m := b.model()
	for _, tv := range b.Vars.Trains {
		m.AddLinearEQ([]solver.Term{{Var: tv.End, Coef: 1}, {Var: tv.Start, Coef: -1}}, tv.Journey)
		m.AddLinearEQ([]solver.Term{{Var: tv.Start, Coef: 1}, {Var: tv.Delay, Coef: -1}}, tv.Offset)
	}
	return nil
}

// applyPlatformConflict forbids two trains sharing a station from holding the
// same platform during overlapping journeys.
func applyPlatformConflict(b *Builder) error {
	b.pairs(b.sharedVia, func(a, c *TrainVars) {
		b.platformExclusion("platform", a, c, nil)
	})
	return nil
}

func (b *Builder) platformExclusion(kind string, a, c *TrainVars, enforce []solver.Lit) {
	m := b.model()
	same := m.NewBoolVar(pairName(kind+".same", a, c))
	m.SetHint(same, 0)
	b.sames = append(b.sames, samePlatform{v: same, a: a, c: c})
	m.AddNotEqual(a.Platform, c.Platform, with(enforce, solver.No(same))...)
	b.sequence(pairName(kind+".order", a, c),
		span{from: a.Start, to: a.End}, span{from: c.Start, to: c.End},
		0, goesFirst(a, c), with(enforce, solver.Yes(same)))
}

// applyHeadway separates the departures of trains sharing a route section.
func applyHeadway(b *Builder) error {
	shares := func(a, c *TrainVars) bool { return a.Train.SharesSection(c.Train) }
	b.pairs(shares, func(a, c *TrainVars) {
		b.sequence(pairName("headway", a, c),
			span{from: a.Start, to: a.Start}, span{from: c.Start, to: c.Start},
			b.Headway, goesFirst(a, c), nil)
	})

	users := map[string][]solver.VarID{}
	var order []string
	for _, tv := range b.Vars.Trains {
		seen := map[string]bool{}
		for _, s := range tv.Train.RouteSections {
			if seen[s] {
				continue
			}
			seen[s] = true
			if _, ok := users[s]; !ok {
				order = append(order, s)
			}
			users[s] = append(users[s], tv.Start)
		}
	}
	for _, s := range order {
		b.model().AddSeparation(users[s], b.Headway)
	}
	return nil
}

// applyPriorityOrder makes the higher priority train depart no later than a
// lower priority one on a shared section.
func applyPriorityOrder(b *Builder) error {
	differ := func(a, c *TrainVars) bool {
		return a.Train.Priority.Rank() != c.Train.Priority.Rank() && a.Train.SharesSection(c.Train)
	}
	b.pairs(differ, func(a, c *TrainVars) {
		hi, lo := a, c
		if c.Train.Priority.Outranks(a.Train.Priority) {
			hi, lo = c, a
		}
		b.model().AddPrecedence(hi.Start, 0, lo.Start)
	})
	return nil
}

// applyRouteSequence orders section entries along each route.
func applyRouteSequence(b *Builder) error {
	m := b.model()
	for _, tv := range b.Vars.Trains {
		m.AddLinearEQ([]solver.Term{{Var: tv.Entries[0], Coef: 1}, {Var: tv.Start, Coef: -1}}, 0)
		for k := 1; k < len(tv.Entries); k++ {
			m.AddPrecedence(tv.Entries[k-1], 1, tv.Entries[k])
		}
		m.AddPrecedence(tv.Entries[len(tv.Entries)-1], 1, tv.End)
	}
	return nil
}
