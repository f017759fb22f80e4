package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/core/model"
)

func TestPromSink_RecordOptimization(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	rec := coremetrics.OptimizationRecord{
		RequestID: "r1",
		SectionID: "SEC-1",
		Status:    model.StatusOptimal,
		Trains:    4,
		Metrics:   model.PerformanceMetrics{TotalDelayMinutes: 12, ConflictsResolved: 3},
		Duration:  150 * time.Millisecond,
	}
	if err := sink.RecordOptimization(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}
	rec.Status = model.StatusInfeasible
	if err := sink.RecordOptimization(rec); err != nil {
		t.Fatalf("record error: %v", err)
	}

	expected := `
# HELP railsched_optimizations_total Total number of optimization requests by outcome
# TYPE railsched_optimizations_total counter
railsched_optimizations_total{section_id="SEC-1",status="INFEASIBLE"} 1
railsched_optimizations_total{section_id="SEC-1",status="OPTIMAL"} 1
`
	if err := testutil.CollectAndCompare(sink.requests, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if got := testutil.ToFloat64(sink.resolved); got != 3 {
		t.Errorf("conflicts resolved = %v, want 3 (infeasible runs are not counted)", got)
	}
	if got := testutil.ToFloat64(sink.lastTrain); got != 4 {
		t.Errorf("last trains = %v", got)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 2 {
		t.Errorf("expected 2 duration series, got %d", c)
	}
}

func TestPromSink_PhasesAndSkips(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordPhase(coremetrics.PhaseRecord{Phase: model.PhaseModelBuilding, Progress: 25})
	_ = sink.RecordConstraintSkip(coremetrics.ConstraintSkipRecord{Kind: "TELEPORT"})
	_ = sink.RecordConstraintSkip(coremetrics.ConstraintSkipRecord{Kind: "TELEPORT"})

	if got := testutil.ToFloat64(sink.phases.WithLabelValues(string(model.PhaseModelBuilding))); got != 1 {
		t.Errorf("phase count = %v", got)
	}
	if got := testutil.ToFloat64(sink.progress); got != 25 {
		t.Errorf("progress = %v", got)
	}
	if got := testutil.ToFloat64(sink.skipped.WithLabelValues("TELEPORT")); got != 2 {
		t.Errorf("skipped = %v", got)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = first.RecordConstraintSkip(coremetrics.ConstraintSkipRecord{Kind: "X"})
	if got := testutil.ToFloat64(second.skipped.WithLabelValues("X")); got != 1 {
		t.Errorf("collectors not shared: %v", got)
	}
}
