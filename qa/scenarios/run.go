package scenarios

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/railsched/core/simulation"
	"github.com/kilianp07/railsched/infra/logger"
)

// RunScenario simulates sc and checks the outcome against its expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	sim := simulation.New(sc.HeadwayMinutes, logger.NopLogger{})
	resp := sim.Simulate(sc.Request())

	require.Equal(t, sc.Expected.Success, resp.Success, "scenario %s: %s", sc.Name, resp.ErrorMessage)
	if !resp.Success {
		return
	}
	assert.Equal(t, sc.Expected.TotalTrains, resp.Results.TotalTrains, "total trains")
	assert.Equal(t, sc.Expected.Conflicts, resp.Results.ConflictsDetected, "conflicts")
	assert.InDelta(t, sc.Expected.AverageDelayMinutes, resp.Results.AverageDelayMinutes, 0.01, "average delay")

	got := map[string]int{}
	for _, ev := range resp.Results.Timeline {
		got[ev.EventType]++
	}
	for kind, n := range sc.Expected.Events {
		assert.Equal(t, n, got[kind], "%s events", kind)
	}
}
