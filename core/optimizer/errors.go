package optimizer

import (
	"errors"
	"fmt"

	"github.com/kilianp07/railsched/core/model"
)

var (
	// ErrInvalidHorizon is wrapped by ModelBuildError for out of range horizons.
	ErrInvalidHorizon = errors.New("time horizon must be between 1 and 1440 minutes")
	// ErrUnsupportedKind is returned when applying an unknown constraint kind.
	ErrUnsupportedKind = errors.New("unsupported constraint kind")
)

// ModelBuildError reports a request that cannot be turned into a model.
type ModelBuildError struct {
	Reason string
	Err    error
}

func (e *ModelBuildError) Error() string {
	if e.Err == nil {
		return "model build: " + e.Reason
	}
	return fmt.Sprintf("model build: %s: %v", e.Reason, e.Err)
}

func (e *ModelBuildError) Unwrap() error { return e.Err }

// ConstraintApplicationError reports a single rule that was skipped.
type ConstraintApplicationError struct {
	ConstraintID string
	Kind         model.ConstraintKind
	Err          error
}

func (e *ConstraintApplicationError) Error() string {
	return fmt.Sprintf("constraint %s (%s): %v", e.ConstraintID, e.Kind, e.Err)
}

func (e *ConstraintApplicationError) Unwrap() error { return e.Err }

// SolverInvocationError reports a fault raised by the solver itself.
type SolverInvocationError struct {
	Err error
}

func (e *SolverInvocationError) Error() string {
	return fmt.Sprintf("solver invocation: %v", e.Err)
}

func (e *SolverInvocationError) Unwrap() error { return e.Err }
