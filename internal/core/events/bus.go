package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultBuffer = 64

type subscription struct {
	ch    Subscriber
	types map[Type]struct{} // empty = all
}

// Bus is a fire-and-forget typed pub/sub. Publish never blocks: a full
// subscriber drops the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]subscription
	log  *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[uuid.UUID]subscription), log: log}
}

// Subscribe registers a channel for the given event types, or every type
// when none are given.
func (b *Bus) Subscribe(buffer int, types ...Type) (uuid.UUID, Subscriber) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := subscription{ch: make(Subscriber, buffer), types: make(map[Type]struct{}, len(types))}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	id := uuid.New()
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe removes and closes a subscription.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish delivers an event to every interested subscriber.
func (b *Bus) Publish(t Type, data any) {
	ev := Event{Type: t, Data: data, At: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, sub := range b.subs {
		if len(sub.types) > 0 {
			if _, ok := sub.types[t]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			b.log.Warn("Event dropped, subscriber full", "type", t, "subscriber", id)
		}
	}
}

// Close closes every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}
