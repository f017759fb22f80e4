package optimizer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/requeststatus"
	"github.com/kilianp07/railsched/core/solver"
	infralogger "github.com/kilianp07/railsched/infra/logger"
	"github.com/kilianp07/railsched/internal/eventbus"
)

var ref = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func train(id string, p model.Priority, depMinute int, sections ...string) model.Train {
	return model.Train{
		ID:                 id,
		Type:               model.TrainPassenger,
		Priority:           p,
		MaxSpeedKmh:        100,
		ScheduledDeparture: ref.Add(time.Duration(depMinute) * time.Minute),
		RouteSections:      sections,
	}
}

func request(horizon int, trains ...model.Train) model.OptimizationRequest {
	return model.OptimizationRequest{
		RequestID:          "req-1",
		SectionID:          "SEC-1",
		TimeHorizonMinutes: horizon,
		Trains:             trains,
		Objective:          model.Objective{Primary: model.ObjectiveMinimizeDelay},
		RequestedAt:        ref,
		Config:             model.SolverConfig{MaxTime: 20 * time.Second, Workers: 1, Strategy: model.StrategyFixed},
	}
}

func newEngine(opts ...Option) *Engine {
	return NewEngine(Config{}, infralogger.NopLogger{}, opts...)
}

func entryByID(t *testing.T, resp model.OptimizationResponse, id string) model.TrainScheduleEntry {
	t.Helper()
	for _, e := range resp.Schedule {
		if e.TrainID == id {
			return e
		}
	}
	t.Fatalf("train %s missing from schedule", id)
	return model.TrainScheduleEntry{}
}

func TestOptimize_InvalidHorizon(t *testing.T) {
	for _, h := range []int{0, -10, MaxHorizonMinutes + 1} {
		e := newEngine()
		resp := e.Optimize(context.Background(), request(h, train("T1", model.PriorityPassenger, 0, "S1")))
		assert.Equal(t, model.StatusError, resp.Status, "horizon %d", h)
		assert.Empty(t, resp.Schedule)
		assert.Zero(t, resp.ConfidenceScore)
		assert.Contains(t, resp.ErrorMessage, "horizon")
		assert.Equal(t, model.StateFailed, e.GetStatus("req-1").State)
	}
}

func TestOptimize_InvalidTrain(t *testing.T) {
	bad := train("T1", model.PriorityPassenger, 0)
	resp := newEngine().Optimize(context.Background(), request(60, bad))
	assert.Equal(t, model.StatusError, resp.Status)
	assert.NotEmpty(t, resp.ErrorMessage)
}

func TestOptimize_ZeroTrains(t *testing.T) {
	resp := newEngine().Optimize(context.Background(), request(60))
	assert.Equal(t, model.StatusOptimal, resp.Status)
	assert.Empty(t, resp.Schedule)
	assert.Equal(t, 1.0, resp.ConfidenceScore)
	assert.Empty(t, resp.ErrorMessage)
}

func TestOptimize_TwoTrainPriorityAndHeadway(t *testing.T) {
	req := request(120,
		train("T2", model.PriorityPassenger, 0, "S1"),
		train("T1", model.PriorityExpress, 0, "S1"),
	)
	resp := newEngine().Optimize(context.Background(), req)
	require.Equal(t, model.StatusOptimal, resp.Status, resp.ErrorMessage)
	require.Len(t, resp.Schedule, 2)
	assert.Equal(t, "T2", resp.Schedule[0].TrainID, "input order preserved")

	t1, t2 := entryByID(t, resp, "T1"), entryByID(t, resp, "T2")
	assert.False(t, t2.Departure.Before(t1.Departure))
	assert.GreaterOrEqual(t, t2.Departure.Sub(t1.Departure), 5*time.Minute)
	assert.Equal(t, 0, t1.DelayMinutes)
	assert.Equal(t, 5, t2.DelayMinutes)
	assert.Equal(t, model.PriorityExpress, t1.PriorityApplied)
	assert.Equal(t, 7*time.Minute, t1.Arrival.Sub(t1.Departure))
	assert.Equal(t, 5.0, resp.Metrics.TotalDelayMinutes)
	assert.Equal(t, 2.5, resp.Metrics.AverageDelayMinutes)
	assert.Equal(t, 1.0, resp.Metrics.ThroughputPerHour)
	assert.Equal(t, 1, resp.Metrics.ConflictsResolved)
	assert.Contains(t, t2.ConflictsResolved, "HEADWAY:S1:T1:T2")
	assert.True(t, strings.HasPrefix(resp.Reasoning, "Found optimal solution for 2 trains"))
}

func TestOptimize_FiftyTrainsInThirtyMinutesInfeasible(t *testing.T) {
	var trains []model.Train
	for i := 0; i < 50; i++ {
		trains = append(trains, train(fmt.Sprintf("T%02d", i), model.PriorityPassenger, 0, "S1"))
	}
	resp := newEngine().Optimize(context.Background(), request(30, trains...))
	assert.Equal(t, model.StatusInfeasible, resp.Status)
	assert.Empty(t, resp.Schedule)
	assert.Zero(t, resp.ConfidenceScore)
	assert.Contains(t, resp.Reasoning, "Consider relaxing constraints")
	assert.Empty(t, resp.ErrorMessage)
}

func TestOptimize_ScheduleShape(t *testing.T) {
	req := request(180,
		train("A", model.PriorityFreight, 0, "S1", "S2"),
		train("B", model.PriorityMail, 3, "S2", "S3"),
		train("C", model.PriorityEmergency, 10, "S1"),
		train("D", model.PriorityPassenger, 20, "S4"),
	)
	req.Trains[0].OriginStation = "X"
	req.Trains[2].OriginStation = "X"
	resp := newEngine().Optimize(context.Background(), req)
	require.True(t, resp.Status.Solved(), resp.Reasoning)
	require.Len(t, resp.Schedule, len(req.Trains))
	for i, e := range resp.Schedule {
		assert.Equal(t, req.Trains[i].ID, e.TrainID)
		assert.GreaterOrEqual(t, e.Platform, MinPlatform)
		assert.LessOrEqual(t, e.Platform, MaxPlatform)
		assert.GreaterOrEqual(t, e.DelayMinutes, MinDelayMinutes)
		assert.LessOrEqual(t, e.DelayMinutes, MaxDelayMinutes)
		assert.Len(t, e.SpeedProfile, len(req.Trains[i].RouteSections))
		assert.True(t, e.Arrival.After(e.Departure))
	}
	a, c := entryByID(t, resp, "A"), entryByID(t, resp, "C")
	assert.False(t, a.Departure.Before(c.Departure), "emergency train departs first on S1")
	gap := a.Departure.Sub(c.Departure)
	assert.GreaterOrEqual(t, gap, 5*time.Minute)
	if a.Platform == c.Platform {
		assert.False(t, a.Departure.Before(c.Arrival), "same platform must not overlap")
	}
}

func TestOptimize_Idempotent(t *testing.T) {
	trains := []model.Train{
		train("A", model.PriorityPassenger, 0, "S1"),
		train("B", model.PriorityPassenger, 0, "S1"),
		train("C", model.PriorityFreight, 2, "S1", "S2"),
	}
	for _, cfg := range []model.SolverConfig{
		{MaxTime: 20 * time.Second, Workers: 1, Strategy: model.StrategyFixed},
		{MaxTime: 20 * time.Second, Workers: 4, Strategy: model.StrategyAutomatic},
	} {
		req := request(120, trains...)
		req.Config = cfg
		first := newEngine().Optimize(context.Background(), req)
		second := newEngine().Optimize(context.Background(), req)
		require.Equal(t, model.StatusOptimal, first.Status)
		assert.Equal(t, first.Schedule, second.Schedule)
		assert.Equal(t, first.Metrics, second.Metrics)
	}
}

func TestOptimize_GeneratesRequestID(t *testing.T) {
	e := newEngine()
	req := request(60)
	req.RequestID = ""
	resp := e.Optimize(context.Background(), req)
	require.NotEmpty(t, resp.RequestID)
	assert.Equal(t, model.StateCompleted, e.GetStatus(resp.RequestID).State)
}

func TestGetStatus(t *testing.T) {
	store := requeststatus.NewMemoryStore(time.Minute)
	e := newEngine(WithStatusTracker(store))
	assert.Equal(t, model.StateNotFound, e.GetStatus("nope").State)

	e.Optimize(context.Background(), request(60, train("T1", model.PriorityPassenger, 0, "S1")))
	r := e.GetStatus("req-1")
	assert.Equal(t, model.StateCompleted, r.State)
	assert.Equal(t, model.PhaseCompleted, r.Phase)
	assert.Equal(t, 100.0, r.ProgressPercent)
}

func TestOptimize_PublishesEvents(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	e := newEngine(WithEventBus(bus))
	req := request(60, train("T1", model.PriorityPassenger, 0, "S1"))
	req.Constraints = []model.Constraint{{ID: "c1", Kind: "TELEPORT", Priority: 1}}
	resp := e.Optimize(context.Background(), req)
	require.Equal(t, model.StatusOptimal, resp.Status)

	var phases []model.Phase
	var skipped []events.ConstraintSkippedEvent
	var done *events.OptimizationEvent
	for done == nil {
		select {
		case ev := <-sub:
			switch v := ev.(type) {
			case events.PhaseEvent:
				phases = append(phases, v.Phase)
			case events.ConstraintSkippedEvent:
				skipped = append(skipped, v)
			case events.OptimizationEvent:
				done = &v
			}
		case <-time.After(time.Second):
			t.Fatalf("missing optimization event")
		}
	}
	assert.Equal(t, []model.Phase{
		model.PhaseReceived,
		model.PhaseModelBuilding,
		model.PhaseConstraintApplication,
		model.PhaseObjectiveComposition,
		model.PhaseSolving,
		model.PhaseExtraction,
	}, phases)
	require.Len(t, skipped, 1)
	assert.Equal(t, "c1", skipped[0].ConstraintID)
	assert.Equal(t, model.StatusOptimal, done.Status)
	assert.Equal(t, 1, done.Skipped)
	assert.Contains(t, resp.Reasoning, "1 constraints could not be applied")
}

func TestOptimize_Alternatives(t *testing.T) {
	e := NewEngine(Config{Alternatives: AlternativesConfig{Enabled: true, Budget: 20 * time.Second}}, infralogger.NopLogger{})
	req := request(120,
		train("T1", model.PriorityExpress, 0, "S1"),
		train("T2", model.PriorityPassenger, 0, "S1"),
	)
	resp := e.Optimize(context.Background(), req)
	require.Equal(t, model.StatusOptimal, resp.Status)
	require.Len(t, resp.Alternatives, 2)
	assert.Equal(t, "throughput-focused", resp.Alternatives[0].Name)
	assert.Equal(t, "energy-focused", resp.Alternatives[1].Name)
	for _, alt := range resp.Alternatives {
		assert.Len(t, alt.Schedule, 2)
		assert.NotEmpty(t, alt.TradeOffs)
		assert.Greater(t, alt.Score, 0.0)
	}
	for _, entry := range resp.Alternatives[1].Schedule {
		for _, p := range entry.SpeedProfile {
			assert.Equal(t, float64(MinSectionSpeed), p.SpeedKmh)
		}
	}
}

var (
	mixedClasses = []model.Priority{model.PriorityExpress, model.PriorityPassenger, model.PriorityFreight, model.PriorityMail}
	mixedRoutes  = [][]string{{"S0", "S1"}, {"S1", "S2"}, {"S2", "S0"}}
)

// mixedTraffic returns n trains two minutes apart, cycling through the
// classes, on routes that pairwise share a section and leave one station.
func mixedTraffic(n int) []model.Train {
	trains := make([]model.Train, n)
	for i := range trains {
		trains[i] = train(fmt.Sprintf("T%02d", i), mixedClasses[i%len(mixedClasses)], 2*i, mixedRoutes[i%len(mixedRoutes)]...)
		trains[i].OriginStation = "A"
	}
	return trains
}

func assertDispatchRules(t *testing.T, trains []model.Train, schedule []model.TrainScheduleEntry) {
	t.Helper()
	require.Len(t, schedule, len(trains))
	for i := range trains {
		for j := i + 1; j < len(trains); j++ {
			a, b := trains[i], trains[j]
			if !a.SharesSection(b) {
				continue
			}
			ea, eb := schedule[i], schedule[j]
			gap := ea.Departure.Sub(eb.Departure)
			if gap < 0 {
				gap = -gap
			}
			assert.GreaterOrEqual(t, gap, 5*time.Minute, "headway %s/%s", a.ID, b.ID)
			if a.Priority.Outranks(b.Priority) {
				assert.False(t, eb.Departure.Before(ea.Departure), "%s departs before %s", b.ID, a.ID)
			}
			if b.Priority.Outranks(a.Priority) {
				assert.False(t, ea.Departure.Before(eb.Departure), "%s departs before %s", a.ID, b.ID)
			}
			if ea.Platform == eb.Platform {
				overlap := ea.Departure.Before(eb.Arrival) && eb.Departure.Before(ea.Arrival)
				assert.False(t, overlap, "%s and %s share platform %d", a.ID, b.ID, ea.Platform)
			}
		}
	}
}

func TestOptimize_MixedPriorityTraffic(t *testing.T) {
	cases := []struct {
		trains int
		obj    model.ObjectiveKind
		limit  time.Duration
	}{
		{12, model.ObjectiveMinimizeDelay, 3 * time.Second},
		{14, model.ObjectiveMinimizeDelay, 2 * time.Second},
		{14, model.ObjectiveBalanced, 2 * time.Second},
		{14, model.ObjectiveMinimizeConflicts, 2 * time.Second},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%s", tc.trains, tc.obj), func(t *testing.T) {
			req := request(240, mixedTraffic(tc.trains)...)
			req.Objective.Primary = tc.obj
			req.Config = model.SolverConfig{MaxTime: tc.limit, Workers: 4, Strategy: model.StrategyAutomatic}
			resp := newEngine().Optimize(context.Background(), req)
			require.Contains(t, []model.Status{model.StatusOptimal, model.StatusFeasible}, resp.Status, resp.Reasoning)
			assert.Less(t, resp.ExecutionTime, tc.limit+2*time.Second)
			assertDispatchRules(t, req.Trains, resp.Schedule)
			for _, e := range resp.Schedule {
				assert.LessOrEqual(t, e.DelayMinutes, MaxDelayMinutes)
			}
		})
	}
}

func TestOptimize_ExpressAheadOfPassengerOnSharedRoute(t *testing.T) {
	req := request(120,
		train("T1", model.PriorityExpress, 0, "S1", "S2"),
		train("T2", model.PriorityPassenger, 5, "S1", "S2"),
	)
	resp := newEngine().Optimize(context.Background(), req)
	require.Contains(t, []model.Status{model.StatusOptimal, model.StatusFeasible}, resp.Status, resp.Reasoning)
	require.Len(t, resp.Schedule, 2)

	t1, t2 := entryByID(t, resp, "T1"), entryByID(t, resp, "T2")
	assert.False(t, t2.Departure.Before(t1.Departure))
	assert.GreaterOrEqual(t, t2.Departure.Sub(t1.Departure), 5*time.Minute)
	assert.Equal(t, 0, t1.DelayMinutes)
	assert.Equal(t, 0, t2.DelayMinutes)
	assert.Equal(t, 15*time.Minute, t1.Arrival.Sub(t1.Departure))
	assert.Equal(t, model.StatusOptimal, resp.Status)
	assert.Equal(t, 1.0, resp.ConfidenceScore)
}

func TestOptimize_TimeLimitKeepsDispatchedSchedule(t *testing.T) {
	req := request(120,
		train("T1", model.PriorityExpress, 0, "S1"),
		train("T2", model.PriorityExpress, 0, "S1"),
	)
	req.Objective.TimeLimit = time.Nanosecond
	resp := newEngine().Optimize(context.Background(), req)
	require.Equal(t, model.StatusFeasible, resp.Status, resp.ErrorMessage)
	assert.Equal(t, 0.85, resp.ConfidenceScore)
	assert.True(t, strings.HasPrefix(resp.Reasoning, "Found feasible solution for 2 trains"), resp.Reasoning)
	require.Len(t, resp.Schedule, 2)
	assert.Equal(t, 0, entryByID(t, resp, "T1").DelayMinutes)
	assert.Equal(t, 5, entryByID(t, resp, "T2").DelayMinutes)
	assert.Equal(t, 5.0, resp.Metrics.TotalDelayMinutes)
}

func TestReasoning_TimeLimitWithoutSchedule(t *testing.T) {
	assert.Equal(t, 0.75, model.Confidence(model.StatusTimeLimitExceeded))
	text := Reasoning(model.StatusTimeLimitExceeded, model.PerformanceMetrics{}, 3, 0)
	assert.True(t, strings.HasPrefix(text, "Time limit reached before any schedule was found"), text)
}

func softWindow(rank int, end string) model.Constraint {
	return model.Constraint{
		ID:       "mw",
		Kind:     model.ConstraintMaintenanceWindow,
		Priority: rank,
		Parameters: map[string]string{
			"start_time_minutes": "0",
			"end_time_minutes":   end,
			"affected_sections":  "S1",
		},
	}
}

func TestSoftWeight(t *testing.T) {
	for rank := 1; rank <= 10; rank++ {
		assert.Equal(t, int64((11-rank)*1000), softWeight(rank), "rank %d", rank)
	}
}

func TestOptimize_SoftRelaxationCost(t *testing.T) {
	e := newEngine()
	req := request(120, train("T1", model.PriorityPassenger, 0, "S1"))
	req.Constraints = []model.Constraint{softWindow(3, "100")}
	p, err := e.prepare(req, req.Objective, ref, func(model.Phase) {})
	require.NoError(t, err)
	res, err := solver.Solve(context.Background(), p.vars.Model, solver.Params{Workers: 1, TimeLimit: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, solver.StatusOptimal, res.Status)
	assert.Equal(t, int64(8000), res.Objective, "the window cannot be kept within the delay range")
	assert.Equal(t, int64(0), res.Value(p.vars.Trains[0].Delay))
}

func TestOptimize_SoftWindowKeptByRank(t *testing.T) {
	// Keeping the ten minute window costs 10 min * weight 4 * 100 = 4000.
	cases := []struct {
		rank  int
		delay int
	}{
		{rank: 5, delay: 10},
		{rank: 9, delay: 0},
	}
	for _, tc := range cases {
		req := request(120, train("T1", model.PriorityPassenger, 0, "S1"))
		req.Constraints = []model.Constraint{softWindow(tc.rank, "10")}
		resp := newEngine().Optimize(context.Background(), req)
		require.Equal(t, model.StatusOptimal, resp.Status, resp.ErrorMessage)
		assert.Equal(t, tc.delay, entryByID(t, resp, "T1").DelayMinutes, "rank %d", tc.rank)
	}
}
