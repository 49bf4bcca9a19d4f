package events

import (
	"sync"

	"github.com/kestrelworks/oppintel/internal/contracts"
	"github.com/kestrelworks/oppintel/pkg/logger"
)

// Bus fans pipeline events out to subscribers over typed channels.
// Publishing never blocks: a subscriber that falls behind has events
// dropped and counted against it.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan contracts.Event
	nextID  int
	dropped map[int]int64
	logger  *logger.Logger
	closed  bool
}

const subscriberBuffer = 64

// NewBus creates a new event bus
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs:    make(map[int]chan contracts.Event),
		dropped: make(map[int]int64),
		logger:  log.WithField("module", "events"),
	}
}

// Subscribe registers a new subscriber. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan contracts.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	ch := make(chan contracts.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			delete(b.dropped, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers an event to all subscribers
func (b *Bus) Publish(event contracts.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped[id]++
			if b.dropped[id]%100 == 1 {
				b.logger.WithFields(map[string]interface{}{
					"subscriber": id,
					"dropped":    b.dropped[id],
					"event":      string(event.Kind()),
				}).Warn("Subscriber falling behind, dropping events")
			}
		}
	}
}

// Close shuts the bus down and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
