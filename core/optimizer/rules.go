package optimizer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

// Rule is a constraint ready to be posted on a model. The set of
// implementations is closed: ParseRule returns one of the types below, or
// UnsupportedRule for kinds the optimizer does not know.
type Rule interface {
	ID() string
	Kind() model.ConstraintKind
	apply(b *Builder) error
}

type ruleBase struct {
	id   string
	kind model.ConstraintKind
	hard bool
	rank int
}

func (r ruleBase) ID() string                 { return r.id }
func (r ruleBase) Kind() model.ConstraintKind { return r.kind }

func (r ruleBase) enforce(b *Builder) []solver.Lit {
	return b.enforcement(r.id, r.hard, softWeight(r.rank))
}

// SafetyDistanceRule keeps a gap between the end of one journey and the start
// of the next for trains sharing a section.
type SafetyDistanceRule struct {
	ruleBase
	GapMinutes int64
	Sections   []string
}

// PlatformCapacityRule bounds how many trains may hold one platform of a
// station at the same time.
type PlatformCapacityRule struct {
	ruleBase
	StationID string
	Max       int
}

// TrainPriorityRule imposes a declared class order on departures.
type TrainPriorityRule struct {
	ruleBase
	Order []string
}

// MaintenanceWindowRule keeps trains off sections during a window.
type MaintenanceWindowRule struct {
	ruleBase
	StartMinute int64
	EndMinute   int64
	Sections    []string
}

// SpeedLimitRule caps the section speed.
type SpeedLimitRule struct {
	ruleBase
	MaxKmh   int64
	Sections []string
}

// CrossingTimeRule reserves a crossing for a fixed window after each entry so
// two trains never occupy it together.
type CrossingTimeRule struct {
	ruleBase
	CrossingID string
	Sections   []string
	Minutes    int64
}

// SignalSpacingRule separates entries into a signal block.
type SignalSpacingRule struct {
	ruleBase
	GapMinutes int64
	Block      string
}

// EnergyBudgetRule bounds the summed energy estimate of all trains.
type EnergyBudgetRule struct {
	ruleBase
	Budget int64
}

// PassengerTransferRule makes connecting trains wait for the previous one.
type PassengerTransferRule struct {
	ruleBase
	Trains     []string
	MinMinutes int64
	StationID  string
}

// DisruptionRule keeps trains off the affected section while it is disrupted.
type DisruptionRule struct {
	ruleBase
	Section     string
	StartMinute int64
	EndMinute   int64
	Severity    int
}

// UnsupportedRule stands for a constraint kind the optimizer does not know.
type UnsupportedRule struct {
	ruleBase
}

func (UnsupportedRule) apply(*Builder) error { return ErrUnsupportedKind }

func secondsToMinutes(s int) int64 {
	return int64(math.Ceil(float64(s) / 60))
}

// ParseRule decodes the parameters of c. Unknown kinds yield UnsupportedRule;
// malformed parameters yield a ConstraintApplicationError.
func ParseRule(c model.Constraint) (Rule, error) {
	base := ruleBase{id: c.ID, kind: c.Kind, hard: c.Hard, rank: c.Rank()}
	fail := func(err error) (Rule, error) {
		return nil, &ConstraintApplicationError{ConstraintID: c.ID, Kind: c.Kind, Err: err}
	}
	switch c.Kind {
	case model.ConstraintSafetyDistance:
		sec, err := c.Int("min_distance_seconds", 300)
		if err != nil {
			return fail(err)
		}
		if sec < 0 {
			return fail(errors.New("min_distance_seconds must not be negative"))
		}
		return SafetyDistanceRule{ruleBase: base, GapMinutes: secondsToMinutes(sec), Sections: c.List("sections")}, nil

	case model.ConstraintPlatformCapacity:
		capacity, err := c.Int("max_trains_per_platform", 1)
		if err != nil {
			return fail(err)
		}
		if capacity < 1 {
			return fail(errors.New("max_trains_per_platform must be at least 1"))
		}
		return PlatformCapacityRule{ruleBase: base, StationID: c.String("station_id", ""), Max: capacity}, nil

	case model.ConstraintTrainPriority:
		raw, ok := c.Param("priority_rules")
		if !ok {
			return fail(errors.New("priority_rules is required"))
		}
		var order []string
		for _, tok := range strings.Split(raw, ">") {
			if tok = strings.TrimSpace(tok); tok != "" {
				order = append(order, strings.ToUpper(tok))
			}
		}
		if len(order) < 2 {
			return fail(fmt.Errorf("priority_rules %q needs at least two classes", raw))
		}
		return TrainPriorityRule{ruleBase: base, Order: order}, nil

	case model.ConstraintMaintenanceWindow:
		start, err := c.Int("start_time_minutes", 0)
		if err != nil {
			return fail(err)
		}
		end, err := c.Int("end_time_minutes", 60)
		if err != nil {
			return fail(err)
		}
		if end <= start {
			return fail(fmt.Errorf("maintenance window [%d,%d) is empty", start, end))
		}
		return MaintenanceWindowRule{ruleBase: base, StartMinute: int64(start), EndMinute: int64(end), Sections: c.List("affected_sections")}, nil

	case model.ConstraintSpeedLimit:
		limit, err := c.Float("max_speed_kmh", 80)
		if err != nil {
			return fail(err)
		}
		if limit < MinSectionSpeed {
			return fail(fmt.Errorf("speed limit %.0f km/h below minimum section speed %d", limit, MinSectionSpeed))
		}
		return SpeedLimitRule{ruleBase: base, MaxKmh: int64(math.Floor(limit)), Sections: c.List("sections")}, nil

	case model.ConstraintCrossingTime:
		minutes, err := c.Int("max_crossing_time_minutes", 5)
		if err != nil {
			return fail(err)
		}
		if minutes < 1 {
			return fail(errors.New("max_crossing_time_minutes must be positive"))
		}
		id := c.String("crossing_id", "")
		sections := c.List("sections")
		if len(sections) == 0 && id != "" {
			sections = []string{id}
		}
		if len(sections) == 0 {
			return fail(errors.New("crossing_id or sections is required"))
		}
		return CrossingTimeRule{ruleBase: base, CrossingID: id, Sections: sections, Minutes: int64(minutes)}, nil

	case model.ConstraintSignalSpacing:
		sec, err := c.Int("min_headway_seconds", 180)
		if err != nil {
			return fail(err)
		}
		if sec <= 0 {
			return fail(errors.New("min_headway_seconds must be positive"))
		}
		return SignalSpacingRule{ruleBase: base, GapMinutes: secondsToMinutes(sec), Block: c.String("signal_block", "")}, nil

	case model.ConstraintEnergyEfficiency:
		budget, err := c.Float("max_energy_consumption", 10000)
		if err != nil {
			return fail(err)
		}
		if budget <= 0 {
			return fail(errors.New("max_energy_consumption must be positive"))
		}
		return EnergyBudgetRule{ruleBase: base, Budget: int64(math.Floor(budget))}, nil

	case model.ConstraintPassengerTransfer:
		transfer, err := c.Int("min_transfer_minutes", 10)
		if err != nil {
			return fail(err)
		}
		if transfer < 0 {
			return fail(errors.New("min_transfer_minutes must not be negative"))
		}
		trains := c.List("connecting_trains")
		if len(trains) < 2 {
			return fail(errors.New("connecting_trains needs at least two trains"))
		}
		return PassengerTransferRule{ruleBase: base, Trains: trains, MinMinutes: int64(transfer), StationID: c.String("station_id", "")}, nil
	}
	return UnsupportedRule{ruleBase: base}, nil
}

// DisruptionRuleFor converts a disruption into a window exclusion on its
// section. Severities of 7 and above are hard.
func DisruptionRuleFor(d model.DisruptionEvent, ref time.Time) (Rule, error) {
	base := ruleBase{id: "disruption:" + d.ID, kind: model.ConstraintKind("DISRUPTION"), hard: d.Severity >= 7}
	if d.AffectedSection == "" {
		return nil, &ConstraintApplicationError{ConstraintID: base.id, Kind: base.kind, Err: errors.New("affected section is required")}
	}
	start := MinutesFrom(ref, d.Start)
	end := int64(math.Ceil(d.End.Sub(ref).Minutes()))
	if d.End.IsZero() || end <= start {
		return nil, &ConstraintApplicationError{ConstraintID: base.id, Kind: base.kind, Err: fmt.Errorf("disruption window [%d,%d) is empty", start, end)}
	}
	return DisruptionRule{ruleBase: base, Section: d.AffectedSection, StartMinute: start, EndMinute: end, Severity: d.Severity}, nil
}

func inList(list []string, s string) bool {
	if len(list) == 0 {
		return true
	}
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r SafetyDistanceRule) apply(b *Builder) error {
	keep := func(a, c *TrainVars) bool {
		for _, s := range a.Train.CommonSections(c.Train) {
			if inList(r.Sections, s) {
				return true
			}
		}
		return false
	}
	enforce := r.enforce(b)
	b.pairs(keep, func(a, c *TrainVars) {
		b.sequence(pairName(r.id, a, c),
			span{from: a.Start, to: a.End}, span{from: c.Start, to: c.End},
			r.GapMinutes, goesFirst(a, c), enforce)
	})
	return nil
}

func (r PlatformCapacityRule) apply(b *Builder) error {
	var members []*TrainVars
	for _, tv := range b.Vars.Trains {
		if r.StationID == "" || tv.Train.Serves(r.StationID) {
			members = append(members, tv)
		}
	}
	enforce := r.enforce(b)
	if r.Max == 1 {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, c := members[i], members[j]
				if r.StationID != "" || a.Train.SharesStation(c.Train) {
					b.platformExclusion(r.id, a, c, enforce)
				}
			}
		}
		return nil
	}
	if len(members) <= r.Max {
		return nil
	}
	vars := make([]solver.VarID, 0, 3*len(members)+1)
	relaxed := -1
	if len(enforce) > 0 {
		relaxed = 0
		vars = append(vars, enforce[0].Var)
	}
	for _, tv := range members {
		vars = append(vars, tv.Platform, tv.Start, tv.End)
	}
	capacity := r.Max
	b.model().AddPredicate(r.id, vars, func(vals []int64) bool {
		if relaxed == 0 {
			if vals[0] == 1 {
				return true
			}
			vals = vals[1:]
		}
		return maxPlatformLoad(vals) <= capacity
	})
	return nil
}

// maxPlatformLoad returns the highest number of simultaneous occupants of a
// platform given (platform, start, end) triples.
func maxPlatformLoad(triples []int64) int {
	type event struct {
		at    int64
		delta int
	}
	byPlatform := map[int64][]event{}
	for i := 0; i+2 < len(triples); i += 3 {
		p, s, e := triples[i], triples[i+1], triples[i+2]
		byPlatform[p] = append(byPlatform[p], event{s, 1}, event{e, -1})
	}
	best := 0
	for _, evs := range byPlatform {
		sort.Slice(evs, func(i, j int) bool {
			if evs[i].at != evs[j].at {
				return evs[i].at < evs[j].at
			}
			return evs[i].delta < evs[j].delta
		})
		cur := 0
		for _, ev := range evs {
			cur += ev.delta
			if cur > best {
				best = cur
			}
		}
	}
	return best
}

// ClassIndex returns the position of the first token matching the train
// priority or type, or -1.
func (r TrainPriorityRule) ClassIndex(t model.Train) int {
	for i, tok := range r.Order {
		if tok == string(t.Priority) || tok == string(t.Type) {
			return i
		}
	}
	return -1
}

func (r TrainPriorityRule) apply(b *Builder) error {
	matched := 0
	for _, tv := range b.Vars.Trains {
		if r.ClassIndex(tv.Train) >= 0 {
			matched++
		}
	}
	if matched == 0 {
		return fmt.Errorf("no train matches priority rules %v", r.Order)
	}
	enforce := r.enforce(b)
	keep := func(a, c *TrainVars) bool {
		ia, ic := r.ClassIndex(a.Train), r.ClassIndex(c.Train)
		return ia >= 0 && ic >= 0 && ia != ic && a.Train.SharesSection(c.Train)
	}
	b.pairs(keep, func(a, c *TrainVars) {
		first, second := a, c
		if r.ClassIndex(c.Train) < r.ClassIndex(a.Train) {
			first, second = c, a
		}
		b.model().AddPrecedence(first.Start, 0, second.Start, enforce...)
	})
	return nil
}

func (r MaintenanceWindowRule) apply(b *Builder) error {
	return excludeSections(b, r.id, r.Sections, r.StartMinute, r.EndMinute, r.enforce(b))
}

func (r DisruptionRule) apply(b *Builder) error {
	enforce := b.enforcement(r.id, r.hard, int64(r.Severity)*softPenaltyUnit/10)
	return excludeSections(b, r.id, []string{r.Section}, r.StartMinute, r.EndMinute, enforce)
}

func excludeSections(b *Builder, id string, sections []string, ws, we int64, enforce []solver.Lit) error {
	if we <= 0 || ws >= b.Vars.Horizon {
		b.Log.Debugf("%s: window [%d,%d) outside horizon", id, ws, we)
		return nil
	}
	for _, tv := range b.Vars.Trains {
		for k, s := range tv.Train.RouteSections {
			if !inList(sections, s) {
				continue
			}
			name := fmt.Sprintf("%s[%s,%s]", id, tv.Train.ID, s)
			b.excludeWindow(name, span{from: tv.Entries[k], to: tv.Exit(k)}, ws, we, tv.Offset+tv.Journey <= ws, enforce)
		}
	}
	return nil
}

func (r SpeedLimitRule) apply(b *Builder) error {
	enforce := r.enforce(b)
	for _, tv := range b.Vars.Trains {
		for k, s := range tv.Train.RouteSections {
			if inList(r.Sections, s) {
				b.model().AddLinearLE([]solver.Term{{Var: tv.Speeds[k], Coef: 1}}, r.MaxKmh, enforce...)
			}
		}
	}
	return nil
}

func (r CrossingTimeRule) apply(b *Builder) error {
	type use struct {
		tv    *TrainVars
		entry solver.VarID
	}
	var uses []use
	for _, tv := range b.Vars.Trains {
		for k, s := range tv.Train.RouteSections {
			if inList(r.Sections, s) {
				uses = append(uses, use{tv: tv, entry: tv.Entries[k]})
			}
		}
	}
	enforce := r.enforce(b)
	for i := 0; i < len(uses); i++ {
		for j := i + 1; j < len(uses); j++ {
			a, c := uses[i], uses[j]
			if a.tv == c.tv {
				continue
			}
			b.sequence(pairName(r.id, a.tv, c.tv),
				span{from: a.entry, to: a.entry}, span{from: c.entry, to: c.entry},
				r.Minutes, goesFirst(a.tv, c.tv), enforce)
		}
	}
	return nil
}

func (r SignalSpacingRule) apply(b *Builder) error {
	enforce := r.enforce(b)
	if r.Block == "" {
		shares := func(a, c *TrainVars) bool { return a.Train.SharesSection(c.Train) }
		b.pairs(shares, func(a, c *TrainVars) {
			b.sequence(pairName(r.id, a, c),
				span{from: a.Start, to: a.Start}, span{from: c.Start, to: c.Start},
				r.GapMinutes, goesFirst(a, c), enforce)
		})
		return nil
	}
	inBlock := func(a, c *TrainVars) bool {
		return a.Train.SectionIndex(r.Block) >= 0 && c.Train.SectionIndex(r.Block) >= 0
	}
	b.pairs(inBlock, func(a, c *TrainVars) {
		ea := a.Entries[a.Train.SectionIndex(r.Block)]
		ec := c.Entries[c.Train.SectionIndex(r.Block)]
		b.sequence(pairName(r.id, a, c), span{from: ea, to: ea}, span{from: ec, to: ec},
			r.GapMinutes, goesFirst(a, c), enforce)
	})
	return nil
}

// apply posts the summed energy estimate (speed^2/10 per section plus 5 per
// minute of positive delay) as a linear bound, using the secant of speed^2 over
// each speed domain. The secant lies above the parabola so the bound is never
// looser than the estimate. Everything is scaled by 10 to stay integral.
func (r EnergyBudgetRule) apply(b *Builder) error {
	if len(b.Vars.Trains) == 0 {
		return nil
	}
	m := b.model()
	var terms []solver.Term
	rhs := 10 * r.Budget
	for _, tv := range b.Vars.Trains {
		for _, sp := range tv.Speeds {
			lo, hi := m.Bounds(sp)
			terms = append(terms, solver.Term{Var: sp, Coef: lo + hi})
			rhs += lo * hi
		}
		terms = append(terms, solver.Term{Var: b.Vars.PositiveDelay(tv), Coef: 50})
	}
	m.AddLinearLE(terms, rhs, r.enforce(b)...)
	return nil
}

func (r PassengerTransferRule) apply(b *Builder) error {
	chain := make([]*TrainVars, 0, len(r.Trains))
	for _, id := range r.Trains {
		tv, ok := b.Vars.ByID(id)
		if !ok {
			return fmt.Errorf("connecting train %s not in request", id)
		}
		if r.StationID != "" && !tv.Train.Serves(r.StationID) {
			b.Log.Warnf("%s: train %s does not serve station %s", r.id, id, r.StationID)
		}
		chain = append(chain, tv)
	}
	enforce := r.enforce(b)
	for k := 1; k < len(chain); k++ {
		b.model().AddPrecedence(chain[k-1].End, r.MinMinutes, chain[k].Start, enforce...)
	}
	return nil
}
