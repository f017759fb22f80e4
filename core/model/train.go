package model

import (
	"fmt"
	"time"
)

// TrainType classifies the service operated by a train.
type TrainType string

const (
	TrainPassenger   TrainType = "PASSENGER"
	TrainExpress     TrainType = "EXPRESS"
	TrainFreight     TrainType = "FREIGHT"
	TrainMail        TrainType = "MAIL"
	TrainMaintenance TrainType = "MAINTENANCE"
	TrainEmpty       TrainType = "EMPTY"
)

// Priority is the dispatching class of a train.
type Priority string

const (
	PriorityEmergency   Priority = "EMERGENCY"
	PriorityExpress     Priority = "EXPRESS"
	PriorityMail        Priority = "MAIL"
	PriorityPassenger   Priority = "PASSENGER"
	PriorityFreight     Priority = "FREIGHT"
	PriorityMaintenance Priority = "MAINTENANCE"
)

// priorityOrder lists classes from highest to lowest.
var priorityOrder = []Priority{
	PriorityEmergency,
	PriorityExpress,
	PriorityMail,
	PriorityPassenger,
	PriorityFreight,
	PriorityMaintenance,
}

// Rank returns the position of the class in the dispatching order, 1 being
// the highest. Unknown classes rank below every known class.
func (p Priority) Rank() int {
	for i, c := range priorityOrder {
		if c == p {
			return i + 1
		}
	}
	return len(priorityOrder) + 1
}

// Outranks reports whether p must be served before o.
func (p Priority) Outranks(o Priority) bool {
	return p.Rank() < o.Rank()
}

// ParsePriority converts a case-sensitive class name into a Priority.
func ParsePriority(s string) (Priority, bool) {
	for _, c := range priorityOrder {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Characteristics holds optional physical properties of the rolling stock.
type Characteristics struct {
	AccelerationMS2      float64
	DecelerationMS2      float64
	PowerKW              float64
	WeightTons           float64
	PassengerLoadPercent int
	Electric             bool
	RequiredPlatforms    []string
}

// DefaultCharacteristics returns the values assumed when a train does not
// carry its own characteristics.
func DefaultCharacteristics() Characteristics {
	return Characteristics{
		AccelerationMS2:      1.0,
		DecelerationMS2:      1.2,
		PowerKW:              2000,
		WeightTons:           400,
		PassengerLoadPercent: 70,
		Electric:             true,
	}
}

// Train is a single service to be scheduled through the section.
type Train struct {
	ID                 string    `validate:"required"`
	Number             int       `validate:"gte=0"`
	Type               TrainType `validate:"omitempty,oneof=PASSENGER EXPRESS FREIGHT MAIL MAINTENANCE EMPTY"`
	Priority           Priority  `validate:"omitempty,oneof=EMERGENCY EXPRESS MAIL PASSENGER FREIGHT MAINTENANCE"`
	CapacityPassengers int       `validate:"gte=0"`
	LengthMeters       float64   `validate:"gte=0"`
	MaxSpeedKmh        float64   `validate:"gt=0"`
	ScheduledDeparture time.Time
	ScheduledArrival   time.Time
	OriginStation      string
	DestinationStation string
	RouteSections      []string `validate:"min=1,dive,required"`
	Characteristics    *Characteristics
}

// Validate checks the structural invariants of a train.
func (t Train) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("train id is required")
	}
	if len(t.RouteSections) == 0 {
		return fmt.Errorf("train %s: route sections must not be empty", t.ID)
	}
	if t.MaxSpeedKmh <= 0 {
		return fmt.Errorf("train %s: max speed must be positive", t.ID)
	}
	return nil
}

// Traits returns the train characteristics or the defaults when absent.
func (t Train) Traits() Characteristics {
	if t.Characteristics == nil {
		return DefaultCharacteristics()
	}
	c := *t.Characteristics
	if c.PowerKW <= 0 {
		c.PowerKW = DefaultCharacteristics().PowerKW
	}
	return c
}

// SharesSection reports whether both trains traverse at least one common
// route section.
func (t Train) SharesSection(o Train) bool {
	return len(t.CommonSections(o)) > 0
}

// CommonSections returns the sections present in both routes, in the order
// they appear in t's route.
func (t Train) CommonSections(o Train) []string {
	var out []string
	for _, s := range t.RouteSections {
		for _, os := range o.RouteSections {
			if s == os {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// SectionIndex returns the position of section in the route or -1.
func (t Train) SectionIndex(section string) int {
	for i, s := range t.RouteSections {
		if s == section {
			return i
		}
	}
	return -1
}

// SharesStation reports whether the trains start or terminate at the same
// station.
func (t Train) SharesStation(o Train) bool {
	return (t.OriginStation != "" && t.OriginStation == o.OriginStation) ||
		(t.DestinationStation != "" && t.DestinationStation == o.DestinationStation)
}

// Serves reports whether the train starts or terminates at station.
func (t Train) Serves(station string) bool {
	return station != "" && (t.OriginStation == station || t.DestinationStation == station)
}
