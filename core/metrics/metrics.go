package metrics

import (
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// OptimizationRecord summarizes one finished optimization request.
type OptimizationRecord struct {
	RequestID string
	SectionID string
	Status    model.Status
	Trains    int
	Skipped   int
	Metrics   model.PerformanceMetrics
	Duration  time.Duration
	Error     string
	Time      time.Time
}

// MetricsSink records optimization outcomes for observability purposes.
type MetricsSink interface {
	RecordOptimization(rec OptimizationRecord) error
}

// PhaseRecord marks a request entering a pipeline phase.
type PhaseRecord struct {
	RequestID string
	Phase     model.Phase
	Progress  float64
	Time      time.Time
}

// PhaseRecorder records pipeline phase transitions.
type PhaseRecorder interface {
	RecordPhase(rec PhaseRecord) error
}

// ConstraintSkipRecord captures a constraint that could not be applied.
type ConstraintSkipRecord struct {
	RequestID    string
	ConstraintID string
	Kind         model.ConstraintKind
	Reason       string
	Time         time.Time
}

// ConstraintSkipRecorder records skipped constraints.
type ConstraintSkipRecorder interface {
	RecordConstraintSkip(rec ConstraintSkipRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordOptimization(OptimizationRecord) error     { return nil }
func (NopSink) RecordPhase(PhaseRecord) error                   { return nil }
func (NopSink) RecordConstraintSkip(ConstraintSkipRecord) error { return nil }
