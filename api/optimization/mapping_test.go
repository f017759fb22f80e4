package optimization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/railsched/core/model"
)

func TestRequestMappingIsLossless(t *testing.T) {
	req := model.OptimizationRequest{
		RequestID:          "r1",
		SectionID:          "SEC-1",
		TimeHorizonMinutes: 240,
		Trains: []model.Train{
			{
				ID: "T1", Number: 101, Type: model.TrainExpress, Priority: model.PriorityExpress,
				CapacityPassengers: 400, LengthMeters: 200, MaxSpeedKmh: 160,
				ScheduledDeparture: ref, ScheduledArrival: ref.Add(time.Hour),
				OriginStation: "A", DestinationStation: "B", RouteSections: []string{"S1", "S2"},
				Characteristics: &model.Characteristics{PowerKW: 3000, WeightTons: 350, Electric: true, RequiredPlatforms: []string{"3"}},
			},
			{ID: "T2", MaxSpeedKmh: 80, RouteSections: []string{"S2"}},
		},
		Constraints: []model.Constraint{{ID: "c1", Kind: model.ConstraintSafetyDistance, Priority: 3, Hard: true, Parameters: map[string]string{"min_distance_seconds": "240"}}},
		Objective: model.Objective{
			Primary:       model.ObjectiveBalanced,
			Secondary:     []model.WeightedObjective{{Kind: model.ObjectiveMinimizeEnergy, Weight: 0.25}},
			TimeLimit:     90 * time.Second,
			Preprocessing: true,
		},
		Disruptions: []model.DisruptionEvent{{ID: "d1", Type: "SIGNAL", AffectedSection: "S1", Start: ref, End: ref.Add(20 * time.Minute), Severity: 8, Metadata: map[string]string{"cause": "storm"}}},
		RequestedAt: ref,
		Config:      model.SolverConfig{MaxTime: 30 * time.Second, Workers: 4, Strategy: model.StrategyPortfolio, DetailedLogging: true},
	}
	assert.Equal(t, req, RequestToModel(RequestFromModel(req)))
}

func TestResponseMappingIsLossless(t *testing.T) {
	entry := model.TrainScheduleEntry{
		TrainID: "T1", TrainNumber: 101, Departure: ref, Arrival: ref.Add(12 * time.Minute), Platform: 4,
		PriorityApplied: model.PriorityMail, DelayMinutes: -3, ConflictsResolved: []string{"T2"},
		SpeedProfile: []model.SpeedProfilePoint{{PositionKm: 10, SpeedKmh: 90, TimeOffsetMinutes: 6.5}},
	}
	resp := model.OptimizationResponse{
		RequestID:       "r1",
		Status:          model.StatusFeasible,
		Schedule:        []model.TrainScheduleEntry{entry},
		Metrics:         model.PerformanceMetrics{TotalDelayMinutes: 3, AverageDelayMinutes: 3, ConflictsResolved: 1, ThroughputPerHour: 2, UtilizationPercent: 40, EnergyKWh: 120.5, PlatformChanges: 1, PassengerWaitMinutes: 2},
		Reasoning:       "ok",
		ConfidenceScore: 0.85,
		Alternatives:    []model.AlternativeSchedule{{Name: "delay", Description: "d", Schedule: []model.TrainScheduleEntry{entry}, TradeOffs: "t", Score: 12}},
		ExecutionTime:   2345 * time.Millisecond,
		CompletedAt:     ref,
		ErrorMessage:    "",
	}
	assert.Equal(t, resp, ResponseToModel(ResponseFromModel(resp)))
}

func TestEmptyListsRenderAsArrays(t *testing.T) {
	v := ValidationResponseFromModel(model.ValidationResponse{IsValid: true})
	assert.NotNil(t, v.Errors)
	assert.NotNil(t, v.Warnings)
	s := SimulationResponseFromModel(model.SimulationResponse{})
	assert.NotNil(t, s.Recommendations)
	assert.NotNil(t, s.Results.Timeline)
}

func TestValidationRequestKeepsRequestTime(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	req := ValidationRequestToModel(ValidationRequestDTO{RequestID: "v1", RequestedAt: at})
	assert.Equal(t, at, req.RequestedAt)
}
