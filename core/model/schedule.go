package model

import "time"

// Status is the terminal outcome of an optimization.
type Status string

const (
	StatusOptimal           Status = "OPTIMAL"
	StatusFeasible          Status = "FEASIBLE"
	StatusInfeasible        Status = "INFEASIBLE"
	StatusTimeLimitExceeded Status = "TIME_LIMIT_EXCEEDED"
	StatusError             Status = "ERROR"
)

// Solved reports whether the status carries a schedule.
func (s Status) Solved() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Confidence maps a status to the fixed confidence score reported to callers.
func Confidence(s Status) float64 {
	switch s {
	case StatusOptimal:
		return 1.0
	case StatusFeasible:
		return 0.85
	case StatusTimeLimitExceeded:
		return 0.75
	default:
		return 0.0
	}
}

// SpeedProfilePoint is the planned speed when entering a route section.
type SpeedProfilePoint struct {
	PositionKm        float64
	SpeedKmh          float64
	TimeOffsetMinutes float64
}

// TrainScheduleEntry is the resolved plan of one train.
type TrainScheduleEntry struct {
	TrainID           string
	TrainNumber       int
	Departure         time.Time
	Arrival           time.Time
	Platform          int
	PriorityApplied   Priority
	DelayMinutes      int
	ConflictsResolved []string
	SpeedProfile      []SpeedProfilePoint
}

// PerformanceMetrics aggregates KPIs of a schedule.
type PerformanceMetrics struct {
	TotalDelayMinutes    float64
	AverageDelayMinutes  float64
	ConflictsResolved    int
	ThroughputPerHour    float64
	UtilizationPercent   float64
	EnergyKWh            float64
	PlatformChanges      int
	PassengerWaitMinutes float64
}

// AlternativeSchedule is a schedule produced under a different weighting.
type AlternativeSchedule struct {
	Name        string
	Description string
	Schedule    []TrainScheduleEntry
	Metrics     PerformanceMetrics
	TradeOffs   string
	Score       float64
}

// OptimizationResponse is returned for every optimization request.
type OptimizationResponse struct {
	RequestID       string
	Status          Status
	Schedule        []TrainScheduleEntry
	Metrics         PerformanceMetrics
	Reasoning       string
	ConfidenceScore float64
	Alternatives    []AlternativeSchedule
	ExecutionTime   time.Duration
	CompletedAt     time.Time
	ErrorMessage    string
}
