package optimizer

import (
	"sort"

	"github.com/kilianp07/railsched/core/solver"
)

// slot is the dispatched departure and platform of one train.
type slot struct {
	start    int64
	platform int64
}

// Dispatch builds a timetable greedily and hints the model with it, so the
// solver starts from a complete schedule. Trains are placed in priority
// order, then by scheduled departure, each at the earliest minute that keeps
// the headway to the trains already placed, finds a free platform and does not
// precede a higher priority train on a shared section.
//
// Dispatch reports false and leaves the hints untouched when a train cannot be
// placed within its delay range and the horizon.
func (b *Builder) Dispatch() bool {
	order := append([]*TrainVars(nil), b.Vars.Trains...)
	sort.SliceStable(order, func(i, j int) bool { return goesFirst(order[i], order[j]) })

	slots := make(map[int]slot, len(order))
	placed := make([]*TrainVars, 0, len(order))
	for _, tv := range order {
		s, ok := b.place(tv, placed, slots)
		if !ok {
			b.Log.Debugf("dispatch: no slot for train %s", tv.Train.ID)
			return false
		}
		slots[tv.Index] = s
		placed = append(placed, tv)
	}
	b.hintDispatch(slots)
	return true
}

func (b *Builder) place(tv *TrainVars, placed []*TrainVars, slots map[int]slot) (slot, bool) {
	earliest := max(tv.Offset, 0)
	for _, p := range placed {
		if p.Train.Priority.Outranks(tv.Train.Priority) && p.Train.SharesSection(tv.Train) {
			earliest = max(earliest, slots[p.Index].start)
		}
	}
	latest := min(b.Vars.Horizon-tv.Journey, tv.Offset+MaxDelayMinutes)
	for t := earliest; t <= latest; {
		if next := b.headwayClear(tv, t, placed, slots); next > t {
			t = next
			continue
		}
		if p, ok := b.freePlatform(tv, t, placed, slots); ok {
			return slot{start: t, platform: p}, true
		}
		t++
	}
	return slot{}, false
}

// headwayClear returns t when departing at t keeps the headway to every
// placed train on a shared section, otherwise the first minute clearing the
// trains in the way.
func (b *Builder) headwayClear(tv *TrainVars, t int64, placed []*TrainVars, slots map[int]slot) int64 {
	next := t
	for _, p := range placed {
		if !p.Train.SharesSection(tv.Train) {
			continue
		}
		s := slots[p.Index].start
		if t > s-b.Headway && t < s+b.Headway {
			next = max(next, s+b.Headway)
		}
	}
	return next
}

func (b *Builder) freePlatform(tv *TrainVars, t int64, placed []*TrainVars, slots map[int]slot) (int64, bool) {
	busy := map[int64]bool{}
	for _, p := range placed {
		if !b.sharedVia(tv, p) {
			continue
		}
		s := slots[p.Index]
		if t < s.start+p.Journey && s.start < t+tv.Journey {
			busy[s.platform] = true
		}
	}
	if pref := preferredPlatform(tv.Train); !busy[pref] {
		return pref, true
	}
	for p := int64(MinPlatform); p <= MaxPlatform; p++ {
		if !busy[p] {
			return p, true
		}
	}
	return 0, false
}

// hintDispatch sets the hints of the train variables and of every ordering
// boolean to agree with the dispatched timetable.
func (b *Builder) hintDispatch(slots map[int]slot) {
	m := b.model()
	val := map[solver.VarID]int64{}
	for _, tv := range b.Vars.Trains {
		s := slots[tv.Index]
		val[tv.Start] = s.start
		val[tv.End] = s.start + tv.Journey
		val[tv.Delay] = s.start - tv.Offset
		val[tv.Platform] = s.platform
		n := int64(len(tv.Entries))
		for k, en := range tv.Entries {
			val[en] = s.start + int64(k)*tv.Journey/n
		}
	}
	for v, x := range val {
		m.SetHint(v, x)
	}
	for _, o := range b.orders {
		first := val[o.a.to]+o.gap <= val[o.c.from]
		if !first && val[o.c.to]+o.gap > val[o.a.from] {
			first = val[o.a.from] <= val[o.c.from]
		}
		m.SetHint(o.v, boolHint(first))
	}
	for _, w := range b.windows {
		m.SetHint(w.v, boolHint(val[w.s.to] <= w.ws))
	}
	for _, sp := range b.sames {
		m.SetHint(sp.v, boolHint(val[sp.a.Platform] == val[sp.c.Platform]))
	}
}

func boolHint(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
