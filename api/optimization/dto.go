// Package optimization exposes the optimizer, validator and simulator over a
// JSON HTTP API. Durations travel as integer milliseconds and times as
// RFC 3339 strings.
package optimization

import "time"

type CharacteristicsDTO struct {
	AccelerationMS2      float64  `json:"acceleration_ms2"`
	DecelerationMS2      float64  `json:"deceleration_ms2"`
	PowerKW              float64  `json:"power_kw"`
	WeightTons           float64  `json:"weight_tons"`
	PassengerLoadPercent int      `json:"passenger_load_percent"`
	Electric             bool     `json:"electric"`
	RequiredPlatforms    []string `json:"required_platforms,omitempty"`
}

type TrainDTO struct {
	ID                 string              `json:"id"`
	Number             int                 `json:"train_number"`
	Type               string              `json:"train_type"`
	Priority           string              `json:"priority"`
	CapacityPassengers int                 `json:"capacity_passengers"`
	LengthMeters       float64             `json:"length_meters"`
	MaxSpeedKmh        float64             `json:"max_speed_kmh"`
	ScheduledDeparture time.Time           `json:"scheduled_departure"`
	ScheduledArrival   time.Time           `json:"scheduled_arrival"`
	OriginStation      string              `json:"origin_station"`
	DestinationStation string              `json:"destination_station"`
	RouteSections      []string            `json:"route_sections"`
	Characteristics    *CharacteristicsDTO `json:"characteristics,omitempty"`
}

type ConstraintDTO struct {
	ID         string            `json:"id"`
	Kind       string            `json:"type"`
	Priority   int               `json:"priority"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Hard       bool              `json:"is_hard"`
}

type WeightedObjectiveDTO struct {
	Kind   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type ObjectiveDTO struct {
	Primary       string                 `json:"primary_objective"`
	Secondary     []WeightedObjectiveDTO `json:"secondary_objectives,omitempty"`
	TimeLimitMS   int64                  `json:"time_limit_ms"`
	Preprocessing bool                   `json:"enable_preprocessing"`
}

type SolverConfigDTO struct {
	MaxTimeMS       int64  `json:"max_solver_time_ms"`
	Preprocessing   bool   `json:"enable_preprocessing"`
	Workers         int    `json:"num_workers"`
	Strategy        string `json:"search_strategy"`
	DetailedLogging bool   `json:"detailed_logging"`
}

type DisruptionDTO struct {
	ID              string            `json:"event_id"`
	Type            string            `json:"disruption_type"`
	AffectedSection string            `json:"affected_section"`
	Start           time.Time         `json:"start_time"`
	End             time.Time         `json:"end_time"`
	Severity        int               `json:"severity"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type OptimizationRequestDTO struct {
	RequestID          string          `json:"request_id"`
	SectionID          string          `json:"section_id"`
	TimeHorizonMinutes int             `json:"time_horizon_minutes"`
	Trains             []TrainDTO      `json:"trains"`
	Constraints        []ConstraintDTO `json:"constraints"`
	Objective          ObjectiveDTO    `json:"objective"`
	Disruptions        []DisruptionDTO `json:"disruptions,omitempty"`
	RequestedAt        time.Time       `json:"requested_at"`
	Config             SolverConfigDTO `json:"config"`
}

type SpeedProfilePointDTO struct {
	PositionKm        float64 `json:"position_km"`
	SpeedKmh          float64 `json:"speed_kmh"`
	TimeOffsetMinutes float64 `json:"time_offset_minutes"`
}

type ScheduleEntryDTO struct {
	TrainID           string                 `json:"train_id"`
	TrainNumber       int                    `json:"train_number"`
	Departure         time.Time              `json:"scheduled_departure"`
	Arrival           time.Time              `json:"scheduled_arrival"`
	Platform          int                    `json:"platform"`
	PriorityApplied   string                 `json:"priority_applied"`
	DelayMinutes      int                    `json:"delay_minutes"`
	ConflictsResolved []string               `json:"conflicts_resolved"`
	SpeedProfile      []SpeedProfilePointDTO `json:"speed_profile,omitempty"`
}

type MetricsDTO struct {
	TotalDelayMinutes    float64 `json:"total_delay_minutes"`
	AverageDelayMinutes  float64 `json:"average_delay_minutes"`
	ConflictsResolved    int     `json:"conflicts_resolved"`
	ThroughputPerHour    float64 `json:"throughput_trains_per_hour"`
	UtilizationPercent   float64 `json:"utilization_percent"`
	EnergyKWh            float64 `json:"energy_consumption_kwh"`
	PlatformChanges      int     `json:"platform_changes"`
	PassengerWaitMinutes float64 `json:"passenger_wait_time_minutes"`
}

type AlternativeDTO struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Schedule    []ScheduleEntryDTO `json:"schedule"`
	Metrics     MetricsDTO         `json:"kpis"`
	TradeOffs   string             `json:"trade_offs"`
	Score       float64            `json:"score"`
}

type OptimizationResponseDTO struct {
	RequestID       string             `json:"request_id"`
	Status          string             `json:"status"`
	Schedule        []ScheduleEntryDTO `json:"optimized_schedule"`
	Metrics         MetricsDTO         `json:"kpis"`
	Reasoning       string             `json:"reasoning"`
	ConfidenceScore float64            `json:"confidence_score"`
	Alternatives    []AlternativeDTO   `json:"alternatives"`
	ExecutionTimeMS int64              `json:"execution_time_ms"`
	CompletedAt     time.Time          `json:"completed_at"`
	ErrorMessage    string             `json:"error_message,omitempty"`
}

type StatusDTO struct {
	RequestID            string  `json:"request_id"`
	Status               string  `json:"status"`
	ProgressPercent      float64 `json:"progress_percent"`
	CurrentPhase         string  `json:"current_phase,omitempty"`
	EstimatedRemainingMS int64   `json:"estimated_remaining_ms"`
}

type ValidationRequestDTO struct {
	RequestID   string             `json:"request_id"`
	SectionID   string             `json:"section_id"`
	Schedule    []ScheduleEntryDTO `json:"schedule"`
	Trains      []TrainDTO         `json:"trains,omitempty"`
	Constraints []ConstraintDTO    `json:"constraints,omitempty"`
	RequestedAt time.Time          `json:"requested_at"`
}

type ValidationIssueDTO struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	TrainID   string    `json:"train_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationResponseDTO struct {
	RequestID string               `json:"request_id"`
	IsValid   bool                 `json:"is_valid"`
	Errors    []ValidationIssueDTO `json:"errors"`
	Warnings  []ValidationIssueDTO `json:"warnings"`
}

type ModificationDTO struct {
	Type       string            `json:"modification_type"`
	TrainID    string            `json:"train_id"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type ConditionDTO struct {
	Type        string            `json:"condition_type"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ImpactLevel int               `json:"impact_level"`
}

type SimulationRequestDTO struct {
	RequestID      string             `json:"request_id"`
	ScenarioName   string             `json:"scenario_name"`
	SectionID      string             `json:"section_id"`
	BaseSchedule   []ScheduleEntryDTO `json:"base_schedule"`
	Modifications  []ModificationDTO  `json:"modifications,omitempty"`
	Conditions     []ConditionDTO     `json:"what_if_conditions,omitempty"`
	DurationHours  float64            `json:"simulation_duration_hours"`
	HeadwayMinutes int                `json:"headway_minutes,omitempty"`
}

type SimulationEventDTO struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	TrainID     string    `json:"train_id"`
	SectionID   string    `json:"section_id"`
	Description string    `json:"description"`
}

type SimulationResultsDTO struct {
	TotalTrains         int                  `json:"total_trains"`
	AverageDelayMinutes float64              `json:"average_delay_minutes"`
	ThroughputPerHour   float64              `json:"throughput_trains_per_hour"`
	ConflictsDetected   int                  `json:"conflicts_detected"`
	UtilizationPercent  float64              `json:"utilization_percent"`
	Timeline            []SimulationEventDTO `json:"timeline"`
}

type ComparisonDTO struct {
	BaselineDelayMinutes         float64 `json:"baseline_delay_minutes"`
	ScenarioDelayMinutes         float64 `json:"scenario_delay_minutes"`
	ImprovementPercent           float64 `json:"improvement_percent"`
	BaselineThroughput           float64 `json:"baseline_throughput"`
	ScenarioThroughput           float64 `json:"scenario_throughput"`
	ThroughputImprovementPercent float64 `json:"throughput_improvement_percent"`
}

type SimulationResponseDTO struct {
	RequestID       string               `json:"request_id"`
	Success         bool                 `json:"success"`
	ScenarioName    string               `json:"scenario_name"`
	Results         SimulationResultsDTO `json:"results"`
	Comparison      ComparisonDTO        `json:"comparison"`
	Recommendations []string             `json:"recommendations"`
	ErrorMessage    string               `json:"error_message,omitempty"`
}

// ErrorDTO is the body of non-2xx responses.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
