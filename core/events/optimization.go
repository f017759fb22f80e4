package events

import (
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// PhaseEvent is published each time a request enters a pipeline phase.
type PhaseEvent struct {
	RequestID string
	Phase     model.Phase
	Progress  float64
	At        time.Time
}

// ConstraintSkippedEvent is published for every constraint absorbed by the
// pipeline instead of being encoded in the model.
type ConstraintSkippedEvent struct {
	RequestID    string
	ConstraintID string
	Kind         model.ConstraintKind
	Err          error
}

// OptimizationEvent summarizes a finished request. Schedule is empty unless a
// solution was found.
type OptimizationEvent struct {
	RequestID string
	SectionID string
	Status    model.Status
	Trains    int
	Skipped   int
	Metrics   model.PerformanceMetrics
	Schedule  []model.TrainScheduleEntry
	Duration  time.Duration
	Err       error
	At        time.Time
}
