package optimization

import (
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// mapSlice converts each element with f. A nil input stays nil so that
// conversions round-trip.
func mapSlice[T, U any](in []T, f func(T) U) []U {
	if in == nil {
		return nil
	}
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// nonNil returns an empty slice for nil so JSON renders [] instead of null.
func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func copyMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func ms(d time.Duration) int64     { return d.Milliseconds() }
func fromMS(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func TrainToModel(d TrainDTO) model.Train {
	t := model.Train{
		ID:                 d.ID,
		Number:             d.Number,
		Type:               model.TrainType(d.Type),
		Priority:           model.Priority(d.Priority),
		CapacityPassengers: d.CapacityPassengers,
		LengthMeters:       d.LengthMeters,
		MaxSpeedKmh:        d.MaxSpeedKmh,
		ScheduledDeparture: d.ScheduledDeparture,
		ScheduledArrival:   d.ScheduledArrival,
		OriginStation:      d.OriginStation,
		DestinationStation: d.DestinationStation,
		RouteSections:      mapSlice(d.RouteSections, func(s string) string { return s }),
	}
	if c := d.Characteristics; c != nil {
		t.Characteristics = &model.Characteristics{
			AccelerationMS2:      c.AccelerationMS2,
			DecelerationMS2:      c.DecelerationMS2,
			PowerKW:              c.PowerKW,
			WeightTons:           c.WeightTons,
			PassengerLoadPercent: c.PassengerLoadPercent,
			Electric:             c.Electric,
			RequiredPlatforms:    mapSlice(c.RequiredPlatforms, func(s string) string { return s }),
		}
	}
	return t
}

func TrainFromModel(t model.Train) TrainDTO {
	d := TrainDTO{
		ID:                 t.ID,
		Number:             t.Number,
		Type:               string(t.Type),
		Priority:           string(t.Priority),
		CapacityPassengers: t.CapacityPassengers,
		LengthMeters:       t.LengthMeters,
		MaxSpeedKmh:        t.MaxSpeedKmh,
		ScheduledDeparture: t.ScheduledDeparture,
		ScheduledArrival:   t.ScheduledArrival,
		OriginStation:      t.OriginStation,
		DestinationStation: t.DestinationStation,
		RouteSections:      mapSlice(t.RouteSections, func(s string) string { return s }),
	}
	if c := t.Characteristics; c != nil {
		d.Characteristics = &CharacteristicsDTO{
			AccelerationMS2:      c.AccelerationMS2,
			DecelerationMS2:      c.DecelerationMS2,
			PowerKW:              c.PowerKW,
			WeightTons:           c.WeightTons,
			PassengerLoadPercent: c.PassengerLoadPercent,
			Electric:             c.Electric,
			RequiredPlatforms:    mapSlice(c.RequiredPlatforms, func(s string) string { return s }),
		}
	}
	return d
}

func ConstraintToModel(d ConstraintDTO) model.Constraint {
	return model.Constraint{ID: d.ID, Kind: model.ConstraintKind(d.Kind), Priority: d.Priority, Parameters: copyMap(d.Parameters), Hard: d.Hard}
}

func ConstraintFromModel(c model.Constraint) ConstraintDTO {
	return ConstraintDTO{ID: c.ID, Kind: string(c.Kind), Priority: c.Priority, Parameters: copyMap(c.Parameters), Hard: c.Hard}
}

func disruptionToModel(d DisruptionDTO) model.DisruptionEvent {
	return model.DisruptionEvent{
		ID: d.ID, Type: d.Type, AffectedSection: d.AffectedSection,
		Start: d.Start, End: d.End, Severity: d.Severity, Metadata: copyMap(d.Metadata),
	}
}

func disruptionFromModel(e model.DisruptionEvent) DisruptionDTO {
	return DisruptionDTO{
		ID: e.ID, Type: e.Type, AffectedSection: e.AffectedSection,
		Start: e.Start, End: e.End, Severity: e.Severity, Metadata: copyMap(e.Metadata),
	}
}

// RequestToModel converts a wire request to the optimizer input.
func RequestToModel(d OptimizationRequestDTO) model.OptimizationRequest {
	return model.OptimizationRequest{
		RequestID:          d.RequestID,
		SectionID:          d.SectionID,
		TimeHorizonMinutes: d.TimeHorizonMinutes,
		Trains:             mapSlice(d.Trains, TrainToModel),
		Constraints:        mapSlice(d.Constraints, ConstraintToModel),
		Objective: model.Objective{
			Primary: model.ObjectiveKind(d.Objective.Primary),
			Secondary: mapSlice(d.Objective.Secondary, func(w WeightedObjectiveDTO) model.WeightedObjective {
				return model.WeightedObjective{Kind: model.ObjectiveKind(w.Kind), Weight: w.Weight}
			}),
			TimeLimit:     fromMS(d.Objective.TimeLimitMS),
			Preprocessing: d.Objective.Preprocessing,
		},
		Disruptions: mapSlice(d.Disruptions, disruptionToModel),
		RequestedAt: d.RequestedAt,
		Config: model.SolverConfig{
			MaxTime:         fromMS(d.Config.MaxTimeMS),
			Preprocessing:   d.Config.Preprocessing,
			Workers:         d.Config.Workers,
			Strategy:        model.SearchStrategy(d.Config.Strategy),
			DetailedLogging: d.Config.DetailedLogging,
		},
	}
}

// RequestFromModel is the inverse of RequestToModel.
func RequestFromModel(r model.OptimizationRequest) OptimizationRequestDTO {
	return OptimizationRequestDTO{
		RequestID:          r.RequestID,
		SectionID:          r.SectionID,
		TimeHorizonMinutes: r.TimeHorizonMinutes,
		Trains:             mapSlice(r.Trains, TrainFromModel),
		Constraints:        mapSlice(r.Constraints, ConstraintFromModel),
		Objective: ObjectiveDTO{
			Primary: string(r.Objective.Primary),
			Secondary: mapSlice(r.Objective.Secondary, func(w model.WeightedObjective) WeightedObjectiveDTO {
				return WeightedObjectiveDTO{Kind: string(w.Kind), Weight: w.Weight}
			}),
			TimeLimitMS:   ms(r.Objective.TimeLimit),
			Preprocessing: r.Objective.Preprocessing,
		},
		Disruptions: mapSlice(r.Disruptions, disruptionFromModel),
		RequestedAt: r.RequestedAt,
		Config: SolverConfigDTO{
			MaxTimeMS:       ms(r.Config.MaxTime),
			Preprocessing:   r.Config.Preprocessing,
			Workers:         r.Config.Workers,
			Strategy:        string(r.Config.Strategy),
			DetailedLogging: r.Config.DetailedLogging,
		},
	}
}

func EntryToModel(d ScheduleEntryDTO) model.TrainScheduleEntry {
	return model.TrainScheduleEntry{
		TrainID:           d.TrainID,
		TrainNumber:       d.TrainNumber,
		Departure:         d.Departure,
		Arrival:           d.Arrival,
		Platform:          d.Platform,
		PriorityApplied:   model.Priority(d.PriorityApplied),
		DelayMinutes:      d.DelayMinutes,
		ConflictsResolved: mapSlice(d.ConflictsResolved, func(s string) string { return s }),
		SpeedProfile: mapSlice(d.SpeedProfile, func(p SpeedProfilePointDTO) model.SpeedProfilePoint {
			return model.SpeedProfilePoint{PositionKm: p.PositionKm, SpeedKmh: p.SpeedKmh, TimeOffsetMinutes: p.TimeOffsetMinutes}
		}),
	}
}

func EntryFromModel(e model.TrainScheduleEntry) ScheduleEntryDTO {
	return ScheduleEntryDTO{
		TrainID:           e.TrainID,
		TrainNumber:       e.TrainNumber,
		Departure:         e.Departure,
		Arrival:           e.Arrival,
		Platform:          e.Platform,
		PriorityApplied:   string(e.PriorityApplied),
		DelayMinutes:      e.DelayMinutes,
		ConflictsResolved: mapSlice(e.ConflictsResolved, func(s string) string { return s }),
		SpeedProfile: mapSlice(e.SpeedProfile, func(p model.SpeedProfilePoint) SpeedProfilePointDTO {
			return SpeedProfilePointDTO{PositionKm: p.PositionKm, SpeedKmh: p.SpeedKmh, TimeOffsetMinutes: p.TimeOffsetMinutes}
		}),
	}
}

func metricsFromModel(m model.PerformanceMetrics) MetricsDTO {
	return MetricsDTO{
		TotalDelayMinutes:    m.TotalDelayMinutes,
		AverageDelayMinutes:  m.AverageDelayMinutes,
		ConflictsResolved:    m.ConflictsResolved,
		ThroughputPerHour:    m.ThroughputPerHour,
		UtilizationPercent:   m.UtilizationPercent,
		EnergyKWh:            m.EnergyKWh,
		PlatformChanges:      m.PlatformChanges,
		PassengerWaitMinutes: m.PassengerWaitMinutes,
	}
}

func metricsToModel(d MetricsDTO) model.PerformanceMetrics {
	return model.PerformanceMetrics{
		TotalDelayMinutes:    d.TotalDelayMinutes,
		AverageDelayMinutes:  d.AverageDelayMinutes,
		ConflictsResolved:    d.ConflictsResolved,
		ThroughputPerHour:    d.ThroughputPerHour,
		UtilizationPercent:   d.UtilizationPercent,
		EnergyKWh:            d.EnergyKWh,
		PlatformChanges:      d.PlatformChanges,
		PassengerWaitMinutes: d.PassengerWaitMinutes,
	}
}

// ResponseFromModel converts an optimizer response to its wire form.
func ResponseFromModel(r model.OptimizationResponse) OptimizationResponseDTO {
	return OptimizationResponseDTO{
		RequestID: r.RequestID,
		Status:    string(r.Status),
		Schedule:  mapSlice(r.Schedule, EntryFromModel),
		Metrics:   metricsFromModel(r.Metrics),
		Reasoning: r.Reasoning,
		Alternatives: mapSlice(r.Alternatives, func(a model.AlternativeSchedule) AlternativeDTO {
			return AlternativeDTO{
				Name: a.Name, Description: a.Description, Schedule: mapSlice(a.Schedule, EntryFromModel),
				Metrics: metricsFromModel(a.Metrics), TradeOffs: a.TradeOffs, Score: a.Score,
			}
		}),
		ConfidenceScore: r.ConfidenceScore,
		ExecutionTimeMS: ms(r.ExecutionTime),
		CompletedAt:     r.CompletedAt,
		ErrorMessage:    r.ErrorMessage,
	}
}

// ResponseToModel is the inverse of ResponseFromModel, used by clients.
func ResponseToModel(d OptimizationResponseDTO) model.OptimizationResponse {
	return model.OptimizationResponse{
		RequestID: d.RequestID,
		Status:    model.Status(d.Status),
		Schedule:  mapSlice(d.Schedule, EntryToModel),
		Metrics:   metricsToModel(d.Metrics),
		Reasoning: d.Reasoning,
		Alternatives: mapSlice(d.Alternatives, func(a AlternativeDTO) model.AlternativeSchedule {
			return model.AlternativeSchedule{
				Name: a.Name, Description: a.Description, Schedule: mapSlice(a.Schedule, EntryToModel),
				Metrics: metricsToModel(a.Metrics), TradeOffs: a.TradeOffs, Score: a.Score,
			}
		}),
		ConfidenceScore: d.ConfidenceScore,
		ExecutionTime:   fromMS(d.ExecutionTimeMS),
		CompletedAt:     d.CompletedAt,
		ErrorMessage:    d.ErrorMessage,
	}
}

func statusFromModel(r model.StatusReport) StatusDTO {
	return StatusDTO{
		RequestID:            r.RequestID,
		Status:               string(r.State),
		ProgressPercent:      r.ProgressPercent,
		CurrentPhase:         string(r.Phase),
		EstimatedRemainingMS: ms(r.EstimatedRemaining),
	}
}

func ValidationRequestToModel(d ValidationRequestDTO) model.ValidationRequest {
	return model.ValidationRequest{
		RequestID:   d.RequestID,
		SectionID:   d.SectionID,
		Schedule:    mapSlice(d.Schedule, EntryToModel),
		Trains:      mapSlice(d.Trains, TrainToModel),
		Constraints: mapSlice(d.Constraints, ConstraintToModel),
		RequestedAt: d.RequestedAt,
	}
}

func issueFromModel(i model.ValidationIssue) ValidationIssueDTO {
	return ValidationIssueDTO{Code: i.Code, Message: i.Message, TrainID: i.TrainID, Timestamp: i.Timestamp}
}

func ValidationResponseFromModel(r model.ValidationResponse) ValidationResponseDTO {
	return ValidationResponseDTO{
		RequestID: r.RequestID,
		IsValid:   r.IsValid,
		Errors:    nonNil(mapSlice(r.Errors, issueFromModel)),
		Warnings:  nonNil(mapSlice(r.Warnings, issueFromModel)),
	}
}

func SimulationRequestToModel(d SimulationRequestDTO) model.SimulationRequest {
	return model.SimulationRequest{
		RequestID:    d.RequestID,
		ScenarioName: d.ScenarioName,
		SectionID:    d.SectionID,
		BaseSchedule: mapSlice(d.BaseSchedule, EntryToModel),
		Modifications: mapSlice(d.Modifications, func(m ModificationDTO) model.ScheduleModification {
			return model.ScheduleModification{Type: m.Type, TrainID: m.TrainID, Parameters: copyMap(m.Parameters)}
		}),
		Conditions: mapSlice(d.Conditions, func(c ConditionDTO) model.WhatIfCondition {
			return model.WhatIfCondition{Type: c.Type, Parameters: copyMap(c.Parameters), ImpactLevel: c.ImpactLevel}
		}),
		DurationHours:  d.DurationHours,
		HeadwayMinutes: d.HeadwayMinutes,
	}
}

func SimulationResponseFromModel(r model.SimulationResponse) SimulationResponseDTO {
	c := r.Comparison
	return SimulationResponseDTO{
		RequestID:    r.RequestID,
		Success:      r.Success,
		ScenarioName: r.ScenarioName,
		Results: SimulationResultsDTO{
			TotalTrains:         r.Results.TotalTrains,
			AverageDelayMinutes: r.Results.AverageDelayMinutes,
			ThroughputPerHour:   r.Results.ThroughputPerHour,
			ConflictsDetected:   r.Results.ConflictsDetected,
			UtilizationPercent:  r.Results.UtilizationPercent,
			Timeline: nonNil(mapSlice(r.Results.Timeline, func(e model.SimulationEvent) SimulationEventDTO {
				return SimulationEventDTO{Timestamp: e.Timestamp, EventType: e.EventType, TrainID: e.TrainID, SectionID: e.SectionID, Description: e.Description}
			})),
		},
		Comparison: ComparisonDTO{
			BaselineDelayMinutes:         c.BaselineDelayMinutes,
			ScenarioDelayMinutes:         c.ScenarioDelayMinutes,
			ImprovementPercent:           c.ImprovementPercent,
			BaselineThroughput:           c.BaselineThroughput,
			ScenarioThroughput:           c.ScenarioThroughput,
			ThroughputImprovementPercent: c.ThroughputImprovementPercent,
		},
		Recommendations: nonNil(r.Recommendations),
		ErrorMessage:    r.ErrorMessage,
	}
}
