package optimizer

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

// Domain limits of the decision variables.
const (
	MaxHorizonMinutes = 1440
	MinPlatform       = 1
	MaxPlatform       = 10
	MinDelayMinutes   = -30
	MaxDelayMinutes   = 60
	MinSectionSpeed   = 20
	SectionLengthKm   = 10
	cruiseCapKmh      = 80
	onTimeMinutes     = 5
)

// TrainVars are the decision variables of one train.
type TrainVars struct {
	Index     int
	Train     model.Train
	Start     solver.VarID
	End       solver.VarID
	Platform  solver.VarID
	Delay     solver.VarID
	Speeds    []solver.VarID
	Entries   []solver.VarID
	Occupancy [][]solver.VarID // [section][minute]
	Offset    int64
	Journey   int64

	posDelay  solver.VarID
	hasPos    bool
	onTime    solver.VarID
	hasOnTime bool
	linked    bool
}

// Exit returns the variable marking when the train leaves route section k.
func (tv *TrainVars) Exit(k int) solver.VarID {
	if k+1 < len(tv.Entries) {
		return tv.Entries[k+1]
	}
	return tv.End
}

// Variables is the decision variable set of a request.
type Variables struct {
	Model   *solver.Model
	Horizon int64
	Ref     time.Time
	Trains  []*TrainVars
}

// JourneyMinutes estimates the running time of a train from the fixed section
// length and 80% of its maximum speed, capped at 80 km/h.
func JourneyMinutes(t model.Train) int64 {
	cruise := math.Min(0.8*t.MaxSpeedKmh, cruiseCapKmh)
	if cruise <= 0 {
		return 0
	}
	return int64(float64(len(t.RouteSections)*SectionLengthKm) / cruise * 60)
}

// CruiseSpeed returns the speed used for the journey estimate.
func CruiseSpeed(t model.Train) int64 {
	return int64(math.Min(0.8*t.MaxSpeedKmh, cruiseCapKmh))
}

// ReferenceTime returns the instant offsets are measured from: the request
// time, or the earliest scheduled departure truncated to the minute.
func ReferenceTime(req model.OptimizationRequest) time.Time {
	if !req.RequestedAt.IsZero() {
		return req.RequestedAt
	}
	var ref time.Time
	for _, t := range req.Trains {
		if t.ScheduledDeparture.IsZero() {
			continue
		}
		if ref.IsZero() || t.ScheduledDeparture.Before(ref) {
			ref = t.ScheduledDeparture
		}
	}
	return ref.Truncate(time.Minute)
}

// MinutesFrom returns the whole minutes from ref to t, rounded down.
func MinutesFrom(ref, t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return int64(math.Floor(t.Sub(ref).Minutes()))
}

// NewVariables allocates the per train variables on m.
func NewVariables(m *solver.Model, trains []model.Train, horizon int, ref time.Time) (*Variables, error) {
	if horizon <= 0 || horizon > MaxHorizonMinutes {
		return nil, &ModelBuildError{Reason: fmt.Sprintf("horizon %d", horizon), Err: ErrInvalidHorizon}
	}
	h := int64(horizon)
	vs := &Variables{Model: m, Horizon: h, Ref: ref}
	for i, t := range trains {
		if err := t.Validate(); err != nil {
			return nil, &ModelBuildError{Reason: "invalid train", Err: err}
		}
		maxSpeed := int64(math.Floor(t.MaxSpeedKmh))
		if maxSpeed < MinSectionSpeed {
			return nil, &ModelBuildError{Reason: fmt.Sprintf("train %s max speed %.0f below %d km/h", t.ID, t.MaxSpeedKmh, MinSectionSpeed)}
		}
		tv := &TrainVars{
			Index:   i,
			Train:   t,
			Offset:  MinutesFrom(ref, t.ScheduledDeparture),
			Journey: JourneyMinutes(t),
		}
		tv.Start = m.NewIntVar(0, h, t.ID+".start")
		tv.End = m.NewIntVar(0, h, t.ID+".end")
		tv.Platform = m.NewIntVar(MinPlatform, MaxPlatform, t.ID+".platform")
		tv.Delay = m.NewIntVar(MinDelayMinutes, MaxDelayMinutes, t.ID+".delay")
		m.SetTiming(tv.Start)
		m.SetHint(tv.Start, tv.Offset)
		m.SetHint(tv.Delay, 0)
		m.SetHint(tv.Platform, preferredPlatform(t))

		cruise := CruiseSpeed(t)
		for k, s := range t.RouteSections {
			sp := m.NewIntVar(MinSectionSpeed, maxSpeed, fmt.Sprintf("%s.speed[%s]", t.ID, s))
			m.SetHint(sp, cruise)
			tv.Speeds = append(tv.Speeds, sp)
			en := m.NewIntVar(0, h, fmt.Sprintf("%s.entry[%s]", t.ID, s))
			m.SetHint(en, tv.Offset+int64(k)*tv.Journey/int64(len(t.RouteSections)))
			tv.Entries = append(tv.Entries, en)
		}
		vs.Trains = append(vs.Trains, tv)
	}
	// Occupancy indicators come last so they never precede the structural
	// variables in branching order.
	for _, tv := range vs.Trains {
		tv.Occupancy = make([][]solver.VarID, len(tv.Train.RouteSections))
		for k := range tv.Train.RouteSections {
			row := make([]solver.VarID, h)
			for minute := range row {
				row[minute] = m.NewBoolVar("")
				m.SetAuxiliary(row[minute])
			}
			tv.Occupancy[k] = row
		}
	}
	return vs, nil
}

func preferredPlatform(t model.Train) int64 {
	for _, p := range t.Traits().RequiredPlatforms {
		if n, err := strconv.Atoi(p); err == nil && n >= MinPlatform && n <= MaxPlatform {
			return int64(n)
		}
	}
	return MinPlatform
}

// PositiveDelay returns a variable bounded below by max(0, delay).
func (vs *Variables) PositiveDelay(tv *TrainVars) solver.VarID {
	if tv.hasPos {
		return tv.posDelay
	}
	pd := vs.Model.NewIntVar(0, MaxDelayMinutes, tv.Train.ID+".positive_delay")
	vs.Model.AddLinearLE([]solver.Term{{Var: tv.Delay, Coef: 1}, {Var: pd, Coef: -1}}, 0)
	tv.posDelay, tv.hasPos = pd, true
	return pd
}

// OnTime returns a boolean that can only be true when delay <= 5 minutes.
func (vs *Variables) OnTime(tv *TrainVars) solver.VarID {
	if tv.hasOnTime {
		return tv.onTime
	}
	b := vs.Model.NewBoolVar(tv.Train.ID + ".on_time")
	vs.Model.AddLinearLE([]solver.Term{{Var: tv.Delay, Coef: 1}}, onTimeMinutes, solver.Yes(b))
	tv.onTime, tv.hasOnTime = b, true
	return b
}

// LinkOccupancy ties the occupancy indicators of a train to its section
// intervals: an indicator may only be true while the train is on the section.
func (vs *Variables) LinkOccupancy(tv *TrainVars) {
	if tv.linked {
		return
	}
	tv.linked = true
	m := vs.Model
	for k, row := range tv.Occupancy {
		entry, exit := tv.Entries[k], tv.Exit(k)
		for minute, occ := range row {
			mm := int64(minute)
			m.AddLinearLE([]solver.Term{{Var: entry, Coef: 1}}, mm, solver.Yes(occ))
			m.AddLinearGE([]solver.Term{{Var: exit, Coef: 1}}, mm+1, solver.Yes(occ))
		}
	}
}

// ByID returns the variables of the train with the given id.
func (vs *Variables) ByID(id string) (*TrainVars, bool) {
	for _, tv := range vs.Trains {
		if tv.Train.ID == id {
			return tv, true
		}
	}
	return nil, false
}
