package optimizer

import (
	"time"

	"github.com/kilianp07/railsched/core/conflict"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/solver"
)

func at(ref time.Time, minutes int64) time.Time {
	return ref.Add(time.Duration(minutes) * time.Minute)
}

// Extract reads one schedule entry per train, in input order. Conflicts of the
// unoptimized plan that the solution removes are attached to the trains they
// involve.
func Extract(res solver.Result, vs *Variables, headway time.Duration) ([]model.TrainScheduleEntry, []conflict.Conflict) {
	if !res.HasSolution() {
		return nil, nil
	}
	entries := make([]model.TrainScheduleEntry, 0, len(vs.Trains))
	for _, tv := range vs.Trains {
		start := res.Value(tv.Start)
		e := model.TrainScheduleEntry{
			TrainID:         tv.Train.ID,
			TrainNumber:     tv.Train.Number,
			Departure:       at(vs.Ref, start),
			Arrival:         at(vs.Ref, res.Value(tv.End)),
			Platform:        int(res.Value(tv.Platform)),
			PriorityApplied: tv.Train.Priority,
			DelayMinutes:    int(res.Value(tv.Delay)),
		}
		for k := range tv.Train.RouteSections {
			e.SpeedProfile = append(e.SpeedProfile, model.SpeedProfilePoint{
				PositionKm:        float64(k * SectionLengthKm),
				SpeedKmh:          float64(res.Value(tv.Speeds[k])),
				TimeOffsetMinutes: float64(res.Value(tv.Entries[k]) - start),
			})
		}
		entries = append(entries, e)
	}

	trains := make([]model.Train, len(vs.Trains))
	for i, tv := range vs.Trains {
		trains[i] = tv.Train
	}
	resolved := conflict.Resolved(
		conflict.Detect(BaselineSlots(vs), headway),
		conflict.Detect(Slots(entries, trains), headway),
	)
	for i := range entries {
		for _, c := range resolved {
			if c.Involves(entries[i].TrainID) {
				entries[i].ConflictsResolved = append(entries[i].ConflictsResolved, c.ID)
			}
		}
	}
	return entries, resolved
}

// BaselineSlots is the plan the trains would follow without optimization:
// scheduled departures, estimated journeys and preferred platforms.
func BaselineSlots(vs *Variables) []conflict.Slot {
	out := make([]conflict.Slot, 0, len(vs.Trains))
	for _, tv := range vs.Trains {
		out = append(out, conflict.Slot{
			TrainID:     tv.Train.ID,
			Departure:   at(vs.Ref, tv.Offset),
			Arrival:     at(vs.Ref, tv.Offset+tv.Journey),
			Platform:    int(preferredPlatform(tv.Train)),
			Origin:      tv.Train.OriginStation,
			Destination: tv.Train.DestinationStation,
			Sections:    tv.Train.RouteSections,
		})
	}
	return out
}

// Slots pairs schedule entries with their trains. Entries without a matching
// train keep their times and platform only.
func Slots(entries []model.TrainScheduleEntry, trains []model.Train) []conflict.Slot {
	byID := make(map[string]model.Train, len(trains))
	for _, t := range trains {
		byID[t.ID] = t
	}
	out := make([]conflict.Slot, 0, len(entries))
	for _, e := range entries {
		t := byID[e.TrainID]
		out = append(out, conflict.Slot{
			TrainID:     e.TrainID,
			Departure:   e.Departure,
			Arrival:     e.Arrival,
			Platform:    e.Platform,
			Origin:      t.OriginStation,
			Destination: t.DestinationStation,
			Sections:    t.RouteSections,
		})
	}
	return out
}
