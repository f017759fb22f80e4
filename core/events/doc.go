// Package events defines the optimization pipeline events emitted on the
// event bus.
//
// Available event types:
//   - PhaseEvent: a request entered a pipeline phase
//   - ConstraintSkippedEvent: a request constraint could not be applied
//   - OptimizationEvent: a request finished, successfully or not
package events
