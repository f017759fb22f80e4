// Package validation checks an existing schedule against the scheduling rules
// and request constraints without solving anything.
package validation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/railsched/core/conflict"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
)

// Issue codes.
const (
	CodeDuplicateTrain     = "DUPLICATE_TRAIN"
	CodePlatformRange      = "PLATFORM_OUT_OF_RANGE"
	CodeTimeOrder          = "ARRIVAL_BEFORE_DEPARTURE"
	CodeDelayRange         = "DELAY_OUT_OF_RANGE"
	CodeUnknownTrain       = "UNKNOWN_TRAIN"
	CodeMissingTrain       = "MISSING_TRAIN"
	CodeHeadway            = "HEADWAY_VIOLATION"
	CodePlatformConflict   = "PLATFORM_CONFLICT"
	CodeSafetyDistance     = "SAFETY_DISTANCE_VIOLATION"
	CodePlatformCapacity   = "PLATFORM_CAPACITY_EXCEEDED"
	CodeTrainPriority      = "PRIORITY_ORDER_VIOLATION"
	CodeMaintenanceWindow  = "MAINTENANCE_WINDOW_VIOLATION"
	CodeSpeedLimit         = "SPEED_LIMIT_EXCEEDED"
	CodeCrossingTime       = "CROSSING_TIME_VIOLATION"
	CodeSignalSpacing      = "SIGNAL_SPACING_VIOLATION"
	CodeEnergyBudget       = "ENERGY_BUDGET_EXCEEDED"
	CodePassengerTransfer  = "TRANSFER_TIME_VIOLATION"
	CodeInvalidConstraint  = "INVALID_CONSTRAINT"
	CodeUnsupportedKind    = "UNSUPPORTED_CONSTRAINT"
	CodeEmptySchedule      = "EMPTY_SCHEDULE"
	defaultHeadwayMinutes  = optimizer.DefaultHeadwayMinutes
	energyDelayPerMinute   = 5.0
	energySpeedSquareScale = 10.0
)

// Validator checks schedules.
type Validator struct {
	HeadwayMinutes int
	Log            logger.Logger
}

// New returns a validator using headway minutes between departures on a
// shared section. headway <= 0 selects the optimizer default.
func New(headway int, log logger.Logger) *Validator {
	if headway <= 0 {
		headway = defaultHeadwayMinutes
	}
	return &Validator{HeadwayMinutes: headway, Log: log}
}

type item struct {
	entry model.TrainScheduleEntry
	train model.Train
	known bool
}

type report struct {
	errors   []model.ValidationIssue
	warnings []model.ValidationIssue
}

func (r *report) add(hard bool, code, trainID string, at time.Time, format string, args ...any) {
	is := model.ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...), TrainID: trainID, Timestamp: at}
	if hard {
		r.errors = append(r.errors, is)
	} else {
		r.warnings = append(r.warnings, is)
	}
}

// Validate reports hard violations as errors and soft ones as warnings. The
// schedule is valid when no error is reported. Route aware checks use the
// request trains; without them every entry is assumed to use the section
// and its station.
func (v *Validator) Validate(req model.ValidationRequest) model.ValidationResponse {
	var r report
	items := v.items(req, &r)
	if len(items) == 0 {
		r.add(false, CodeEmptySchedule, "", time.Time{}, "schedule is empty")
	}
	v.checkEntries(items, &r)
	v.checkConflicts(items, &r)
	ref := reference(req.RequestedAt, items)
	for _, c := range req.Constraints {
		v.checkConstraint(c, items, ref, &r)
	}
	v.Log.Debugf("validation %s: %d errors, %d warnings", req.RequestID, len(r.errors), len(r.warnings))
	return model.ValidationResponse{
		RequestID: req.RequestID,
		IsValid:   len(r.errors) == 0,
		Errors:    r.errors,
		Warnings:  r.warnings,
	}
}

func (v *Validator) items(req model.ValidationRequest, r *report) []item {
	byID := make(map[string]model.Train, len(req.Trains))
	for _, t := range req.Trains {
		byID[t.ID] = t
	}
	section := req.SectionID
	if section == "" {
		section = "section"
	}
	seen := map[string]bool{}
	out := make([]item, 0, len(req.Schedule))
	for _, e := range req.Schedule {
		if seen[e.TrainID] {
			r.add(true, CodeDuplicateTrain, e.TrainID, e.Departure, "train %s is scheduled more than once", e.TrainID)
			continue
		}
		seen[e.TrainID] = true
		t, ok := byID[e.TrainID]
		if !ok {
			if len(req.Trains) > 0 {
				r.add(false, CodeUnknownTrain, e.TrainID, e.Departure, "train %s is not part of the request", e.TrainID)
			}
			t = model.Train{ID: e.TrainID, Priority: e.PriorityApplied, OriginStation: section, RouteSections: []string{section}}
		}
		out = append(out, item{entry: e, train: t, known: ok})
	}
	for _, t := range req.Trains {
		if !seen[t.ID] {
			r.add(false, CodeMissingTrain, t.ID, t.ScheduledDeparture, "train %s has no schedule entry", t.ID)
		}
	}
	return out
}

func (v *Validator) checkEntries(items []item, r *report) {
	for _, it := range items {
		e := it.entry
		if e.Platform < optimizer.MinPlatform || e.Platform > optimizer.MaxPlatform {
			r.add(true, CodePlatformRange, e.TrainID, e.Departure, "platform %d outside %d..%d", e.Platform, optimizer.MinPlatform, optimizer.MaxPlatform)
		}
		if !e.Arrival.After(e.Departure) {
			r.add(true, CodeTimeOrder, e.TrainID, e.Departure, "arrival %s is not after departure %s", e.Arrival.Format(time.RFC3339), e.Departure.Format(time.RFC3339))
		}
		if e.DelayMinutes < optimizer.MinDelayMinutes || e.DelayMinutes > optimizer.MaxDelayMinutes {
			r.add(true, CodeDelayRange, e.TrainID, e.Departure, "delay %d min outside %d..%d", e.DelayMinutes, optimizer.MinDelayMinutes, optimizer.MaxDelayMinutes)
		}
	}
}

func (v *Validator) checkConflicts(items []item, r *report) {
	slots := make([]conflict.Slot, 0, len(items))
	for _, it := range items {
		slots = append(slots, slotOf(it))
	}
	for _, c := range conflict.Detect(slots, time.Duration(v.HeadwayMinutes)*time.Minute) {
		switch c.Kind {
		case conflict.KindHeadway:
			r.add(true, CodeHeadway, c.TrainB, c.At, "trains %s and %s depart on %s less than %d minutes apart", c.TrainA, c.TrainB, c.Resource, v.HeadwayMinutes)
		case conflict.KindPlatform:
			r.add(true, CodePlatformConflict, c.TrainB, c.At, "trains %s and %s overlap on platform %s", c.TrainA, c.TrainB, c.Resource)
		}
	}
	eachPair(items, func(a, b item) {
		ra, rb := a.train.Priority.Rank(), b.train.Priority.Rank()
		if ra == rb || !a.train.SharesSection(b.train) {
			return
		}
		hi, lo := a, b
		if rb < ra {
			hi, lo = b, a
		}
		if lo.entry.Departure.Before(hi.entry.Departure) {
			r.add(true, CodeTrainPriority, lo.entry.TrainID, lo.entry.Departure,
				"%s train %s departs before %s train %s on a shared section", lo.train.Priority, lo.entry.TrainID, hi.train.Priority, hi.entry.TrainID)
		}
	})
}

func slotOf(it item) conflict.Slot {
	return conflict.Slot{
		TrainID:     it.entry.TrainID,
		Departure:   it.entry.Departure,
		Arrival:     it.entry.Arrival,
		Platform:    it.entry.Platform,
		Origin:      it.train.OriginStation,
		Destination: it.train.DestinationStation,
		Sections:    it.train.RouteSections,
	}
}

// reference is the origin of window parameters expressed in minutes: the
// request time when given, as for optimization requests, otherwise the
// earliest departure truncated to the minute.
func reference(requestedAt time.Time, items []item) time.Time {
	if !requestedAt.IsZero() {
		return requestedAt
	}
	var ref time.Time
	for _, it := range items {
		if ref.IsZero() || it.entry.Departure.Before(ref) {
			ref = it.entry.Departure
		}
	}
	return ref.Truncate(time.Minute)
}

func (v *Validator) checkConstraint(c model.Constraint, items []item, ref time.Time, r *report) {
	rule, err := optimizer.ParseRule(c)
	if err != nil {
		r.add(false, CodeInvalidConstraint, "", time.Time{}, "%v", err)
		return
	}
	hard := c.Hard
	switch rl := rule.(type) {
	case optimizer.SafetyDistanceRule:
		gap := time.Duration(rl.GapMinutes) * time.Minute
		eachPair(items, func(a, b item) {
			if !sharesListed(a.train, b.train, rl.Sections) {
				return
			}
			first, second := ordered(a, b)
			if second.entry.Departure.Sub(first.entry.Arrival) < gap {
				r.add(hard, CodeSafetyDistance, second.entry.TrainID, second.entry.Departure,
					"%s: %s departs less than %d minutes after %s arrives", c.ID, second.entry.TrainID, rl.GapMinutes, first.entry.TrainID)
			}
		})

	case optimizer.PlatformCapacityRule:
		load := map[int][]item{}
		for _, it := range items {
			if rl.StationID == "" || it.train.Serves(rl.StationID) || !it.known {
				load[it.entry.Platform] = append(load[it.entry.Platform], it)
			}
		}
		platforms := make([]int, 0, len(load))
		for p := range load {
			platforms = append(platforms, p)
		}
		sort.Ints(platforms)
		for _, p := range platforms {
			if n := maxOverlap(load[p]); n > rl.Max {
				r.add(hard, CodePlatformCapacity, "", time.Time{}, "%s: platform %d holds %d trains at once, capacity %d", c.ID, p, n, rl.Max)
			}
		}

	case optimizer.TrainPriorityRule:
		eachPair(items, func(a, b item) {
			ia, ib := rl.ClassIndex(a.train), rl.ClassIndex(b.train)
			if ia < 0 || ib < 0 || ia == ib || !a.train.SharesSection(b.train) {
				return
			}
			hi, lo := a, b
			if ib < ia {
				hi, lo = b, a
			}
			if lo.entry.Departure.Before(hi.entry.Departure) {
				r.add(hard, CodeTrainPriority, lo.entry.TrainID, lo.entry.Departure,
					"%s: %s departs before higher class train %s", c.ID, lo.entry.TrainID, hi.entry.TrainID)
			}
		})

	case optimizer.MaintenanceWindowRule:
		ws := ref.Add(time.Duration(rl.StartMinute) * time.Minute)
		we := ref.Add(time.Duration(rl.EndMinute) * time.Minute)
		for _, it := range items {
			if !usesAny(it.train, rl.Sections) {
				continue
			}
			if it.entry.Departure.Before(we) && ws.Before(it.entry.Arrival) {
				r.add(hard, CodeMaintenanceWindow, it.entry.TrainID, it.entry.Departure,
					"%s: %s runs during maintenance window %s-%s", c.ID, it.entry.TrainID, ws.Format("15:04"), we.Format("15:04"))
			}
		}

	case optimizer.SpeedLimitRule:
		for _, it := range items {
			for k, p := range it.entry.SpeedProfile {
				section := sectionAt(it.train, k)
				if section != "" && len(rl.Sections) > 0 && !contains(rl.Sections, section) {
					continue
				}
				if p.SpeedKmh > float64(rl.MaxKmh) {
					r.add(hard, CodeSpeedLimit, it.entry.TrainID, it.entry.Departure,
						"%s: %s runs %.0f km/h at km %.0f, limit %d", c.ID, it.entry.TrainID, p.SpeedKmh, p.PositionKm, rl.MaxKmh)
				}
			}
		}

	case optimizer.CrossingTimeRule:
		type use struct {
			id string
			at time.Time
		}
		var uses []use
		for _, it := range items {
			for k, s := range it.train.RouteSections {
				if contains(rl.Sections, s) {
					uses = append(uses, use{id: it.entry.TrainID, at: entryTime(it, k)})
				}
			}
		}
		window := time.Duration(rl.Minutes) * time.Minute
		for i := 0; i < len(uses); i++ {
			for j := i + 1; j < len(uses); j++ {
				a, b := uses[i], uses[j]
				if a.id == b.id {
					continue
				}
				d := a.at.Sub(b.at)
				if d < 0 {
					d = -d
				}
				if d < window {
					r.add(hard, CodeCrossingTime, b.id, b.at, "%s: %s and %s use the crossing within %d minutes", c.ID, a.id, b.id, rl.Minutes)
				}
			}
		}

	case optimizer.SignalSpacingRule:
		gap := time.Duration(rl.GapMinutes) * time.Minute
		eachPair(items, func(a, b item) {
			var ta, tb time.Time
			if rl.Block == "" {
				if !a.train.SharesSection(b.train) {
					return
				}
				ta, tb = a.entry.Departure, b.entry.Departure
			} else {
				ka, kb := a.train.SectionIndex(rl.Block), b.train.SectionIndex(rl.Block)
				if ka < 0 || kb < 0 {
					return
				}
				ta, tb = entryTime(a, ka), entryTime(b, kb)
			}
			d := ta.Sub(tb)
			if d < 0 {
				d = -d
			}
			if d < gap {
				r.add(hard, CodeSignalSpacing, b.entry.TrainID, tb, "%s: %s and %s enter the block less than %d minutes apart", c.ID, a.entry.TrainID, b.entry.TrainID, rl.GapMinutes)
			}
		})

	case optimizer.EnergyBudgetRule:
		total := 0.0
		for _, it := range items {
			for _, p := range it.entry.SpeedProfile {
				total += p.SpeedKmh * p.SpeedKmh / energySpeedSquareScale
			}
			total += energyDelayPerMinute * math.Max(0, float64(it.entry.DelayMinutes))
		}
		if total > float64(rl.Budget) {
			r.add(hard, CodeEnergyBudget, "", time.Time{}, "%s: energy estimate %.0f exceeds budget %d", c.ID, total, rl.Budget)
		}

	case optimizer.PassengerTransferRule:
		byID := map[string]item{}
		for _, it := range items {
			byID[it.entry.TrainID] = it
		}
		for k := 1; k < len(rl.Trains); k++ {
			prev, okp := byID[rl.Trains[k-1]]
			next, okn := byID[rl.Trains[k]]
			if !okp || !okn {
				r.add(false, CodeInvalidConstraint, "", time.Time{}, "%s: connecting trains %s/%s not scheduled", c.ID, rl.Trains[k-1], rl.Trains[k])
				continue
			}
			if next.entry.Departure.Sub(prev.entry.Arrival) < time.Duration(rl.MinMinutes)*time.Minute {
				r.add(hard, CodePassengerTransfer, next.entry.TrainID, next.entry.Departure,
					"%s: %s leaves less than %d minutes after %s arrives", c.ID, next.entry.TrainID, rl.MinMinutes, prev.entry.TrainID)
			}
		}

	default:
		r.add(false, CodeUnsupportedKind, "", time.Time{}, "constraint %s has unsupported kind %s", c.ID, c.Kind)
	}
}

func eachPair(items []item, fn func(a, b item)) {
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			fn(items[i], items[j])
		}
	}
}

func ordered(a, b item) (item, item) {
	if b.entry.Departure.Before(a.entry.Departure) {
		return b, a
	}
	return a, b
}

func sharesListed(a, b model.Train, sections []string) bool {
	for _, s := range a.CommonSections(b) {
		if len(sections) == 0 || contains(sections, s) {
			return true
		}
	}
	return false
}

func usesAny(t model.Train, sections []string) bool {
	if len(sections) == 0 {
		return true
	}
	for _, s := range t.RouteSections {
		if contains(sections, s) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sectionAt(t model.Train, k int) string {
	if k < len(t.RouteSections) {
		return t.RouteSections[k]
	}
	return ""
}

// entryTime is when the train enters its k-th route section according to the
// speed profile, or its departure when the profile is shorter.
func entryTime(it item, k int) time.Time {
	if k < len(it.entry.SpeedProfile) {
		return it.entry.Departure.Add(time.Duration(it.entry.SpeedProfile[k].TimeOffsetMinutes * float64(time.Minute)))
	}
	return it.entry.Departure
}

func maxOverlap(items []item) int {
	type event struct {
		at    time.Time
		delta int
	}
	evs := make([]event, 0, 2*len(items))
	for _, it := range items {
		evs = append(evs, event{it.entry.Departure, 1}, event{it.entry.Arrival, -1})
	}
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].at.Equal(evs[j].at) {
			return evs[i].at.Before(evs[j].at)
		}
		return evs[i].delta < evs[j].delta
	})
	best, cur := 0, 0
	for _, ev := range evs {
		cur += ev.delta
		if cur > best {
			best = cur
		}
	}
	return best
}
