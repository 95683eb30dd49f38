// Package events provides an in-process pub/sub bus for run-scoped
// lifecycle events. Producers publish envelopes tagged with the run they
// belong to; consumers subscribe with an id and must unsubscribe when the
// stream is no longer wanted, so events never leak into a superseded view.
package events

import (
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/wordcut/wordcut/pkg/log"
)

// Envelope wraps a single published event together with its run identity.
type Envelope struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Event     any       `json:"event"`
}

// Bus fans published envelopes out to all local subscribers.
// Delivery is non-blocking: a subscriber that stops draining its channel
// loses events rather than stalling the producer.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Envelope
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]chan Envelope),
	}
}

// Publish delivers event to every current subscriber.
func (b *Bus) Publish(runID string, event any) {
	envelope := Envelope{
		ID:        xid.New().String(),
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Event:     event,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- envelope:
		default:
			log.Warn("event dropped: subscriber %s buffer full", id)
		}
	}
}

// Subscribe registers a local subscription and returns its channel.
// The caller must call Unsubscribe with the same id to detach.
func (b *Bus) Subscribe(id string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Envelope, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}
