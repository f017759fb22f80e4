package mqtt

import (
	"context"
	"time"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/logger"
	coremqtt "github.com/kilianp07/railsched/core/mqtt"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// StartScheduleForwarder publishes every solved schedule seen on the bus.
// When ackTimeout is positive each publication waits for a consumer
// acknowledgment, and a missing one is logged. The returned channel is closed
// once the forwarder has stopped.
func StartScheduleForwarder(ctx context.Context, bus eventbus.EventBus, pub coremqtt.SchedulePublisher, ackTimeout time.Duration, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
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
				if !ok || !e.Status.Solved() || len(e.Schedule) == 0 {
					continue
				}
				forward(pub, e, ackTimeout, log)
			}
		}
	}()
	return done
}

func forward(pub coremqtt.SchedulePublisher, e events.OptimizationEvent, ackTimeout time.Duration, log logger.Logger) {
	id, err := pub.PublishSchedule(coremqtt.ScheduleMessage{
		RequestID:   e.RequestID,
		SectionID:   e.SectionID,
		Status:      e.Status,
		Entries:     e.Schedule,
		PublishedAt: e.At,
	})
	if err != nil {
		log.Errorf("publish schedule %s: %v", e.RequestID, err)
		return
	}
	if ackTimeout <= 0 {
		return
	}
	if ok, err := pub.WaitForAck(id, ackTimeout); err != nil || !ok {
		log.Warnf("schedule %s of request %s not acknowledged: %v", id, e.RequestID, err)
	}
}
