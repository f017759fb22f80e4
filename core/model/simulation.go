package model

import "time"

// Modification kinds accepted by the simulator.
const (
	ModDelayTrain     = "DELAY_TRAIN"
	ModRemoveTrain    = "REMOVE_TRAIN"
	ModAddTrain       = "ADD_TRAIN"
	ModChangePlatform = "CHANGE_PLATFORM"
)

// What-if condition kinds accepted by the simulator.
const (
	CondSpeedRestriction = "SPEED_RESTRICTION"
	CondSignalFailure    = "SIGNAL_FAILURE"
	CondWeather          = "WEATHER"
	CondBlockSection     = "BLOCK_SECTION"
)

// ScheduleModification edits one train of the base schedule.
type ScheduleModification struct {
	Type       string
	TrainID    string
	Parameters map[string]string
}

// WhatIfCondition perturbs the whole section.
type WhatIfCondition struct {
	Type        string
	Parameters  map[string]string
	ImpactLevel int // 1-10
}

// SimulationEvent is one entry of the simulated timeline.
type SimulationEvent struct {
	Timestamp   time.Time
	EventType   string
	TrainID     string
	SectionID   string
	Description string
}

// SimulationResults summarizes a simulated scenario.
type SimulationResults struct {
	TotalTrains         int
	AverageDelayMinutes float64
	ThroughputPerHour   float64
	ConflictsDetected   int
	UtilizationPercent  float64
	Timeline            []SimulationEvent
}

// PerformanceComparison contrasts the base schedule and the scenario.
type PerformanceComparison struct {
	BaselineDelayMinutes         float64
	ScenarioDelayMinutes         float64
	ImprovementPercent           float64
	BaselineThroughput           float64
	ScenarioThroughput           float64
	ThroughputImprovementPercent float64
}

// SimulationRequest describes a what-if scenario on an existing schedule.
type SimulationRequest struct {
	RequestID      string
	ScenarioName   string
	SectionID      string
	BaseSchedule   []TrainScheduleEntry
	Modifications  []ScheduleModification
	Conditions     []WhatIfCondition
	DurationHours  float64
	HeadwayMinutes int
}

// SimulationResponse is the result of Simulate.
type SimulationResponse struct {
	RequestID       string
	Success         bool
	ScenarioName    string
	Results         SimulationResults
	Comparison      PerformanceComparison
	Recommendations []string
	ErrorMessage    string
}
