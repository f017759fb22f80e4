package model

import "time"

// ObjectiveKind names an optimization goal.
type ObjectiveKind string

const (
	ObjectiveMinimizeDelay      ObjectiveKind = "MINIMIZE_DELAY"
	ObjectiveMaximizeThroughput ObjectiveKind = "MAXIMIZE_THROUGHPUT"
	ObjectiveMinimizeEnergy     ObjectiveKind = "MINIMIZE_ENERGY_CONSUMPTION"
	ObjectiveMaximizeUtil       ObjectiveKind = "MAXIMIZE_UTILIZATION"
	ObjectiveMinimizeConflicts  ObjectiveKind = "MINIMIZE_CONFLICTS"
	ObjectiveBalanced           ObjectiveKind = "BALANCED_OPTIMAL"
)

// WeightedObjective is a secondary goal and its weight in the scalarized sum.
type WeightedObjective struct {
	Kind   ObjectiveKind
	Weight float64 `validate:"gte=0"`
}

// Objective describes what the solver minimizes.
type Objective struct {
	Primary       ObjectiveKind
	Secondary     []WeightedObjective `validate:"dive"`
	TimeLimit     time.Duration
	Preprocessing bool
}

// SearchStrategy selects how the solver explores the search tree.
type SearchStrategy string

const (
	StrategyAutomatic SearchStrategy = "AUTOMATIC"
	StrategyFixed     SearchStrategy = "FIXED_SEARCH"
	StrategyPortfolio SearchStrategy = "PORTFOLIO_SEARCH"
)

// SolverConfig bounds a single solve.
type SolverConfig struct {
	MaxTime         time.Duration
	Preprocessing   bool
	Workers         int `validate:"gte=0"`
	Strategy        SearchStrategy
	DetailedLogging bool
}

// DisruptionEvent blocks or degrades a section during a time window.
type DisruptionEvent struct {
	ID              string
	Type            string
	AffectedSection string
	Start           time.Time
	End             time.Time
	Severity        int `validate:"gte=0,lte=10"`
	Metadata        map[string]string
}

// OptimizationRequest is the normalized input of a single optimization.
type OptimizationRequest struct {
	RequestID          string
	SectionID          string
	TimeHorizonMinutes int
	Trains             []Train `validate:"dive"`
	Constraints        []Constraint
	Objective          Objective
	Disruptions        []DisruptionEvent `validate:"dive"`
	RequestedAt        time.Time
	Config             SolverConfig
}
