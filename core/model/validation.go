package model

import "time"

// ValidationIssue is one finding of a schedule validation.
type ValidationIssue struct {
	Code      string
	Message   string
	TrainID   string
	Timestamp time.Time
}

// ValidationRequest checks an existing schedule against constraints. Trains
// is optional: when provided, route aware checks are performed.
type ValidationRequest struct {
	RequestID   string
	SectionID   string
	Schedule    []TrainScheduleEntry
	Trains      []Train
	Constraints []Constraint
	// RequestedAt anchors minute based constraint parameters. Zero selects
	// the earliest departure of the schedule.
	RequestedAt time.Time
}

// ValidationResponse lists errors (hard violations) and warnings.
type ValidationResponse struct {
	RequestID string
	IsValid   bool
	Errors    []ValidationIssue
	Warnings  []ValidationIssue
}
