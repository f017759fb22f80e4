package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/model"
	infralogger "github.com/kilianp07/railsched/infra/logger"
)

var ref = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func entry(id string, depMinute, journey, platform int) model.TrainScheduleEntry {
	dep := ref.Add(time.Duration(depMinute) * time.Minute)
	return model.TrainScheduleEntry{
		TrainID:   id,
		Departure: dep,
		Arrival:   dep.Add(time.Duration(journey) * time.Minute),
		Platform:  platform,
		SpeedProfile: []model.SpeedProfilePoint{
			{PositionKm: 0, SpeedKmh: 80, TimeOffsetMinutes: 0},
		},
	}
}

func routed(id string, sections ...string) model.Train {
	return model.Train{ID: id, MaxSpeedKmh: 100, OriginStation: "X", RouteSections: sections}
}

func codes(issues []model.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Code)
	}
	return out
}

func hard(id string, kind model.ConstraintKind, params map[string]string) model.Constraint {
	return model.Constraint{ID: id, Kind: kind, Priority: 5, Hard: true, Parameters: params}
}

func validate(req model.ValidationRequest) model.ValidationResponse {
	return New(0, infralogger.NopLogger{}).Validate(req)
}

func TestValidate_CleanSchedule(t *testing.T) {
	resp := validate(model.ValidationRequest{
		RequestID: "v1",
		Schedule:  []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 10, 7, 1)},
	})
	assert.True(t, resp.IsValid)
	assert.Empty(t, resp.Errors)
	assert.Empty(t, resp.Warnings)
	assert.Equal(t, "v1", resp.RequestID)
}

func TestValidate_EntryRanges(t *testing.T) {
	bad := entry("A", 0, 7, 11)
	bad.Arrival = bad.Departure
	bad.DelayMinutes = 61
	resp := validate(model.ValidationRequest{Schedule: []model.TrainScheduleEntry{bad}})
	assert.False(t, resp.IsValid)
	assert.ElementsMatch(t, []string{CodePlatformRange, CodeTimeOrder, CodeDelayRange}, codes(resp.Errors))
}

func TestValidate_HeadwayAndPlatformConflict(t *testing.T) {
	resp := validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 2), entry("B", 3, 7, 2)},
	})
	assert.False(t, resp.IsValid)
	assert.ElementsMatch(t, []string{CodeHeadway, CodePlatformConflict}, codes(resp.Errors))
}

func TestValidate_RouteAwareHeadway(t *testing.T) {
	resp := validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 1, 7, 2)},
		Trains:   []model.Train{routed("A", "S1"), routed("B", "S2")},
	})
	assert.True(t, resp.IsValid, "disjoint routes never conflict: %v", resp.Errors)
}

func TestValidate_DuplicateUnknownAndMissing(t *testing.T) {
	resp := validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("A", 20, 7, 1), entry("Z", 40, 7, 1)},
		Trains:   []model.Train{routed("A", "S1"), routed("B", "S1")},
	})
	assert.Equal(t, []string{CodeDuplicateTrain}, codes(resp.Errors))
	assert.ElementsMatch(t, []string{CodeUnknownTrain, CodeMissingTrain}, codes(resp.Warnings))
}

func TestValidate_EmptySchedule(t *testing.T) {
	resp := validate(model.ValidationRequest{})
	assert.True(t, resp.IsValid)
	assert.Equal(t, []string{CodeEmptySchedule}, codes(resp.Warnings))
}

func TestValidate_Constraints(t *testing.T) {
	cases := []struct {
		name     string
		schedule []model.TrainScheduleEntry
		trains   []model.Train
		c        model.Constraint
		code     string
	}{
		{
			name:     "safety distance",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 8, 7, 2)},
			c:        hard("sd", model.ConstraintSafetyDistance, map[string]string{"min_distance_seconds": "300"}),
			code:     CodeSafetyDistance,
		},
		{
			name:     "maintenance window",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 30, 7, 1)},
			c:        hard("mw", model.ConstraintMaintenanceWindow, map[string]string{"start_time_minutes": "25", "end_time_minutes": "40"}),
			code:     CodeMaintenanceWindow,
		},
		{
			name:     "speed limit",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1)},
			c:        hard("sl", model.ConstraintSpeedLimit, map[string]string{"max_speed_kmh": "60"}),
			code:     CodeSpeedLimit,
		},
		{
			name:     "energy budget",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1)},
			c:        hard("ee", model.ConstraintEnergyEfficiency, map[string]string{"max_energy_consumption": "100"}),
			code:     CodeEnergyBudget,
		},
		{
			name:     "passenger transfer",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 10, 7, 2)},
			c:        hard("pt", model.ConstraintPassengerTransfer, map[string]string{"connecting_trains": "A,B", "min_transfer_minutes": "10"}),
			code:     CodePassengerTransfer,
		},
		{
			name:     "signal spacing",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 5, 7, 2)},
			c:        hard("ss", model.ConstraintSignalSpacing, map[string]string{"min_headway_seconds": "420"}),
			code:     CodeSignalSpacing,
		},
		{
			name:     "crossing time",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1), entry("B", 6, 7, 2)},
			trains:   []model.Train{routed("A", "C1"), routed("B", "C1")},
			c:        hard("ct", model.ConstraintCrossingTime, map[string]string{"crossing_id": "C1", "max_crossing_time_minutes": "10"}),
			code:     CodeCrossingTime,
		},
		{
			name:     "platform capacity",
			schedule: []model.TrainScheduleEntry{entry("A", 0, 20, 1), entry("B", 5, 20, 1), entry("C", 10, 20, 1)},
			trains:   []model.Train{routed("A", "S1"), routed("B", "S2"), routed("C", "S3")},
			c:        hard("pc", model.ConstraintPlatformCapacity, map[string]string{"station_id": "X", "max_trains_per_platform": "2"}),
			code:     CodePlatformCapacity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := model.ValidationRequest{Schedule: tc.schedule, Trains: tc.trains, Constraints: []model.Constraint{tc.c}}
			resp := validate(req)
			assert.Contains(t, codes(resp.Errors), tc.code)
			assert.False(t, resp.IsValid)

			tc.c.Hard = false
			req.Constraints = []model.Constraint{tc.c}
			soft := validate(req)
			assert.Contains(t, codes(soft.Warnings), tc.code)
			assert.NotContains(t, codes(soft.Errors), tc.code)
		})
	}
}

func TestValidate_TrainPriorityOrder(t *testing.T) {
	f := routed("F", "S1")
	f.Type = model.TrainFreight
	m := routed("M", "S1")
	m.Type = model.TrainMail
	resp := validate(model.ValidationRequest{
		Schedule:    []model.TrainScheduleEntry{entry("F", 0, 7, 1), entry("M", 10, 7, 2)},
		Trains:      []model.Train{f, m},
		Constraints: []model.Constraint{hard("tp", model.ConstraintTrainPriority, map[string]string{"priority_rules": "MAIL > FREIGHT"})},
	})
	require.False(t, resp.IsValid)
	assert.Equal(t, []string{CodeTrainPriority}, codes(resp.Errors))
	assert.Equal(t, "F", resp.Errors[0].TrainID)
}

func TestValidate_UnknownAndMalformedConstraints(t *testing.T) {
	resp := validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("A", 0, 7, 1)},
		Constraints: []model.Constraint{
			{ID: "x", Kind: "TELEPORT"},
			hard("bad", model.ConstraintSpeedLimit, map[string]string{"max_speed_kmh": "fast"}),
		},
	})
	assert.True(t, resp.IsValid)
	assert.ElementsMatch(t, []string{CodeUnsupportedKind, CodeInvalidConstraint}, codes(resp.Warnings))
}

func TestValidate_BuiltinPriorityOrder(t *testing.T) {
	freight := routed("F", "S1")
	freight.Priority = model.PriorityFreight
	express := routed("E", "S1")
	express.Priority = model.PriorityExpress
	trains := []model.Train{freight, express}

	resp := validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("F", 0, 7, 1), entry("E", 10, 7, 2)},
		Trains:   trains,
	})
	require.False(t, resp.IsValid)
	assert.Equal(t, []string{CodeTrainPriority}, codes(resp.Errors))
	assert.Equal(t, "F", resp.Errors[0].TrainID)

	resp = validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("F", 10, 7, 1), entry("E", 0, 7, 2)},
		Trains:   trains,
	})
	assert.True(t, resp.IsValid, "%v", resp.Errors)

	other := routed("E", "S2")
	other.Priority = model.PriorityExpress
	resp = validate(model.ValidationRequest{
		Schedule: []model.TrainScheduleEntry{entry("F", 0, 7, 1), entry("E", 10, 7, 2)},
		Trains:   []model.Train{freight, other},
	})
	assert.True(t, resp.IsValid, "disjoint routes are not ordered: %v", resp.Errors)
}

func TestValidate_PriorityOrderFromAppliedPriority(t *testing.T) {
	mail := entry("M", 0, 7, 1)
	mail.PriorityApplied = model.PriorityMail
	express := entry("E", 10, 7, 2)
	express.PriorityApplied = model.PriorityExpress
	resp := validate(model.ValidationRequest{Schedule: []model.TrainScheduleEntry{mail, express}})
	require.False(t, resp.IsValid)
	assert.Equal(t, []string{CodeTrainPriority}, codes(resp.Errors))
}

func TestValidate_WindowsMeasuredFromRequestTime(t *testing.T) {
	window := hard("mw", model.ConstraintMaintenanceWindow, map[string]string{
		"start_time_minutes": "0", "end_time_minutes": "20", "affected_sections": "S1",
	})
	req := model.ValidationRequest{
		Schedule:    []model.TrainScheduleEntry{entry("T1", 20, 7, 1)},
		Trains:      []model.Train{routed("T1", "S1")},
		Constraints: []model.Constraint{window},
		RequestedAt: ref,
	}
	resp := validate(req)
	assert.True(t, resp.IsValid, "train leaves when the window closes: %v", resp.Errors)

	req.RequestedAt = time.Time{}
	resp = validate(req)
	assert.False(t, resp.IsValid, "without a request time the window starts at the first departure")
	assert.Equal(t, []string{CodeMaintenanceWindow}, codes(resp.Errors))
}
