// Package conflict finds pairs of train movements that violate headway or
// platform exclusivity.
package conflict

import (
	"fmt"
	"sort"
	"time"
)

// Kind classifies a conflict.
type Kind string

const (
	KindHeadway  Kind = "HEADWAY"
	KindPlatform Kind = "PLATFORM"
)

// Slot is the occupation of the section by one train.
type Slot struct {
	TrainID     string
	Departure   time.Time
	Arrival     time.Time
	Platform    int
	Origin      string
	Destination string
	Sections    []string
}

// Conflict is a pair of slots that cannot both hold.
type Conflict struct {
	ID       string
	Kind     Kind
	TrainA   string
	TrainB   string
	Resource string
	At       time.Time
}

// Involves reports whether the conflict concerns the train.
func (c Conflict) Involves(trainID string) bool {
	return c.TrainA == trainID || c.TrainB == trainID
}

func newConflict(kind Kind, a, b Slot, resource string, at time.Time) Conflict {
	x, y := a.TrainID, b.TrainID
	if y < x {
		x, y = y, x
	}
	return Conflict{
		ID:       fmt.Sprintf("%s:%s:%s:%s", kind, resource, x, y),
		Kind:     kind,
		TrainA:   x,
		TrainB:   y,
		Resource: resource,
		At:       at,
	}
}

// Detect returns every headway and platform conflict among slots, sorted by
// ID. Departures on a shared section closer than headway conflict; slots on
// the same platform of a shared station conflict when their intervals overlap.
func Detect(slots []Slot, headway time.Duration) []Conflict {
	var out []Conflict
	for i := 0; i < len(slots); i++ {
		for j := i + 1; j < len(slots); j++ {
			a, b := slots[i], slots[j]
			if s, ok := sharedSection(a, b); ok && headway > 0 {
				gap := a.Departure.Sub(b.Departure)
				if gap < 0 {
					gap = -gap
				}
				if gap < headway {
					out = append(out, newConflict(KindHeadway, a, b, s, later(a.Departure, b.Departure)))
				}
			}
			if st, ok := sharedStation(a, b); ok && a.Platform == b.Platform && overlaps(a, b) {
				res := fmt.Sprintf("%s/%d", st, a.Platform)
				out = append(out, newConflict(KindPlatform, a, b, res, later(a.Departure, b.Departure)))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolved returns the conflicts of before that are absent from after.
func Resolved(before, after []Conflict) []Conflict {
	remaining := make(map[string]bool, len(after))
	for _, c := range after {
		remaining[c.ID] = true
	}
	var out []Conflict
	for _, c := range before {
		if !remaining[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// CountFor returns how many conflicts involve each train.
func CountFor(conflicts []Conflict) map[string]int {
	out := map[string]int{}
	for _, c := range conflicts {
		out[c.TrainA]++
		out[c.TrainB]++
	}
	return out
}

func sharedSection(a, b Slot) (string, bool) {
	for _, s := range a.Sections {
		for _, t := range b.Sections {
			if s == t {
				return s, true
			}
		}
	}
	return "", false
}

func sharedStation(a, b Slot) (string, bool) {
	if a.Origin != "" && a.Origin == b.Origin {
		return a.Origin, true
	}
	if a.Destination != "" && a.Destination == b.Destination {
		return a.Destination, true
	}
	return "", false
}

func overlaps(a, b Slot) bool {
	return a.Departure.Before(b.Arrival) && b.Departure.Before(a.Arrival)
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
