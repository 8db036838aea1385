package engine

import (
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/seantiz/hostrunner/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// EventBroker fans lifecycle and host events out to live subscribers such
// as SSE clients. It is safe for concurrent use.
type EventBroker struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	ch     chan model.Event
	filter string
}

func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[int]*subscriber),
	}
}

// Attach subscribes the broker to lifecycle and host events on bus.
func (b *EventBroker) Attach(bus evbus.Bus) error {
	if err := bus.Subscribe(model.TopicLifecycle, b.Publish); err != nil {
		return err
	}
	return bus.Subscribe(model.TopicHostEvent, b.Publish)
}

// Subscribe returns a channel of events and an unsubscribe function. A
// non-empty operation restricts delivery to events of that operation. After
// Close the returned channel is already closed.
func (b *EventBroker) Subscribe(operation string) (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{ch: ch, filter: operation}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (b *EventBroker) Publish(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, s := range b.subs {
		if s.filter != "" && s.filter != ev.Operation {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// Drop for slow subscribers to avoid blocking the engine.
		}
	}
}

// Close closes every subscriber channel. Later Subscribe calls return a
// closed channel.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
}
