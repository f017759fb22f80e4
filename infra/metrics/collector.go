package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/logger"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// pipeline events. It stops when the context is canceled or the bus closes.
// The returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics: %v", err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.PhaseEvent:
		if r, ok := sink.(coremetrics.PhaseRecorder); ok {
			return r.RecordPhase(coremetrics.PhaseRecord{RequestID: e.RequestID, Phase: e.Phase, Progress: e.Progress, Time: e.At})
		}
	case events.ConstraintSkippedEvent:
		if r, ok := sink.(coremetrics.ConstraintSkipRecorder); ok {
			reason := ""
			if e.Err != nil {
				reason = e.Err.Error()
			}
			return r.RecordConstraintSkip(coremetrics.ConstraintSkipRecord{
				RequestID:    e.RequestID,
				ConstraintID: e.ConstraintID,
				Kind:         e.Kind,
				Reason:       reason,
				Time:         time.Now(),
			})
		}
	case events.OptimizationEvent:
		errStr := ""
		if e.Err != nil {
			errStr = e.Err.Error()
		}
		return sink.RecordOptimization(coremetrics.OptimizationRecord{
			RequestID: e.RequestID,
			SectionID: e.SectionID,
			Status:    e.Status,
			Trains:    e.Trains,
			Skipped:   e.Skipped,
			Metrics:   e.Metrics,
			Duration:  e.Duration,
			Error:     errStr,
			Time:      e.At,
		})
	}
	return nil
}
