package eventbus

// Event is any value published on the bus. Subscribers switch on the
// concrete types declared in core/events.
type Event interface{}

// EventBus is the untyped publish/subscribe bus shared by the service.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus, a TypedBus over Event.
type Bus struct {
	*TypedBus[Event]
}

// New creates a new Bus.
func New() *Bus { return &Bus{TypedBus: NewTyped[Event]()} }
