package runlog

import (
	"context"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// StartRecorder appends a record for every OptimizationEvent on the bus until
// ctx is cancelled or the bus is closed. The returned channel is closed once
// the recorder has stopped.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store *Store, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
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
				e, ok := ev.(events.OptimizationEvent)
				if !ok {
					continue
				}
				if err := store.Append(FromEvent(e)); err != nil {
					log.Errorf("runlog append %s: %v", e.RequestID, err)
				}
			}
		}
	}()
	return done
}
