package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Emitter accepts events for delivery. Emit must not block the caller for long.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls the function.
func (function EmitterFunc) Emit(event Event) {
	function(event)
}

// Stamp fills the schema version and emission time when they are unset.
func Stamp(event Event) Event {
	event.Version = SchemaVersion
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	return event
}

// ChannelEmitter sends events to a channel until its context is done.
type ChannelEmitter struct {
	ctx context.Context
	out chan<- Event
}

// NewChannelEmitter returns an emitter that writes to out.
func NewChannelEmitter(ctx context.Context, out chan<- Event) *ChannelEmitter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ChannelEmitter{ctx: ctx, out: out}
}

// Send delivers event or returns the context error once the context is done.
func (emitter *ChannelEmitter) Send(event Event) error {
	if emitter.out == nil {
		return errors.New("stream: event channel is nil")
	}
	select {
	case <-emitter.ctx.Done():
		return emitter.ctx.Err()
	case emitter.out <- Stamp(event):
		return nil
	}
}

// Emit is Send without the error.
func (emitter *ChannelEmitter) Emit(event Event) {
	_ = emitter.Send(event)
}

// Hub fans events out to subscribers. A subscriber whose buffer is full misses
// the event rather than stalling the publisher.
type Hub struct {
	mutex       sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	dropped     uint64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[int]chan Event)}
}

// Emit publishes event to every subscriber.
func (hub *Hub) Emit(event Event) {
	stamped := Stamp(event)
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for _, subscriber := range hub.subscribers {
		select {
		case subscriber <- stamped:
		default:
			hub.dropped++
		}
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel; it is safe to call more than once.
func (hub *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 0 {
		buffer = 0
	}
	channel := make(chan Event, buffer)
	hub.mutex.Lock()
	subscriberID := hub.nextID
	hub.nextID++
	hub.subscribers[subscriberID] = channel
	hub.mutex.Unlock()

	var once sync.Once
	return channel, func() {
		once.Do(func() {
			hub.mutex.Lock()
			defer hub.mutex.Unlock()
			delete(hub.subscribers, subscriberID)
			close(channel)
		})
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was full.
func (hub *Hub) Dropped() uint64 {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return hub.dropped
}

// Fanout returns an emitter delivering to every non-nil emitter in order.
func Fanout(emitters ...Emitter) Emitter {
	return EmitterFunc(func(event Event) {
		for _, emitter := range emitters {
			if emitter != nil {
				emitter.Emit(event)
			}
		}
	})
}

var (
	_ Emitter = (*Hub)(nil)
	_ Emitter = (*ChannelEmitter)(nil)
	_ Emitter = EmitterFunc(nil)
)
