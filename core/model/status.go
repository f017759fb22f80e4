package model

import "time"

// Phase is a step of the optimization pipeline.
type Phase string

const (
	PhaseReceived              Phase = "RECEIVED"
	PhaseModelBuilding         Phase = "MODEL_BUILDING"
	PhaseConstraintApplication Phase = "CONSTRAINT_APPLICATION"
	PhaseObjectiveComposition  Phase = "OBJECTIVE_COMPOSITION"
	PhaseSolving               Phase = "SOLVING"
	PhaseExtraction            Phase = "EXTRACTION"
	PhaseCompleted             Phase = "COMPLETED"
	PhaseFailed                Phase = "FAILED"
)

// RequestState is the coarse lifecycle state exposed to status pollers.
type RequestState string

const (
	StateProcessing RequestState = "PROCESSING"
	StateCompleted  RequestState = "COMPLETED"
	StateFailed     RequestState = "FAILED"
	StateNotFound   RequestState = "NOT_FOUND"
)

// StatusReport answers a status poll.
type StatusReport struct {
	RequestID          string
	State              RequestState
	ProgressPercent    float64
	Phase              Phase
	EstimatedRemaining time.Duration
}
