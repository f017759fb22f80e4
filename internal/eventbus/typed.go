package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity of each subscriber.
const DefaultBuffer = 32

// TypedBus is a type-safe publish/subscribe bus for events of type T.
// Delivery never blocks the publisher: events are dropped for subscribers
// whose buffer is full and counted in Dropped.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	closed  bool
	buffer  int
	dropped atomic.Int64
}

// NewTyped creates a TypedBus with DefaultBuffer slots per subscriber.
func NewTyped[T any]() *TypedBus[T] { return NewTypedBuffered[T](DefaultBuffer) }

// NewTypedBuffered creates a TypedBus with the given subscriber capacity.
func NewTypedBuffered[T any](buffer int) *TypedBus[T] {
	if buffer < 0 {
		buffer = 0
	}
	return &TypedBus[T]{buffer: buffer}
}

// Publish sends the event to all subscribers.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were skipped on full subscribers.
func (b *TypedBus[T]) Dropped() int64 { return b.dropped.Load() }

// Subscribe registers a subscriber and returns its channel. Subscribing to a
// closed bus returns a closed channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
