package optimizer

import (
	"fmt"
	"strings"

	"github.com/kilianp07/railsched/core/model"
)

// Reasoning returns the narrative attached to a response.
func Reasoning(status model.Status, metrics model.PerformanceMetrics, trains int, skipped int) string {
	var b strings.Builder
	switch status {
	case model.StatusOptimal:
		fmt.Fprintf(&b, "Found optimal solution for %d trains. Total delay minimized to %.1f minutes. All constraints satisfied.",
			trains, metrics.TotalDelayMinutes)
	case model.StatusFeasible:
		fmt.Fprintf(&b, "Found feasible solution for %d trains. Total delay: %.1f minutes. Solution may not be globally optimal due to time constraints.",
			trains, metrics.TotalDelayMinutes)
	case model.StatusInfeasible:
		b.WriteString("No feasible solution found. Consider relaxing constraints, extending time horizon, or reducing train density.")
	case model.StatusTimeLimitExceeded:
		b.WriteString("Time limit reached before any schedule was found. Consider extending the time limit or reducing train density.")
	default:
		fmt.Fprintf(&b, "Optimization completed with status: %s", status)
	}
	if status.Solved() && metrics.ConflictsResolved > 0 {
		fmt.Fprintf(&b, " Resolved %d conflicts of the submitted plan.", metrics.ConflictsResolved)
	}
	if skipped > 0 {
		fmt.Fprintf(&b, " %d constraints could not be applied and were skipped.", skipped)
	}
	return b.String()
}
