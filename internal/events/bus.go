// Package events is the outbound notification channel for external
// listeners (UI refresh, telemetry consumers). Fire-and-forget: the
// pipelines publish without knowing whether anyone listens, and a slow
// subscriber loses events rather than blocking a batch.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	TypeBatchThroughput = "batch_throughput"
	TypeBatchCompleted  = "batch_completed"
	TypePipelineState   = "pipeline_state"
)

// Event is one broadcast payload.
type Event struct {
	Type       string    `json:"type"`
	Stage      string    `json:"stage,omitempty"`
	BatchSize  int       `json:"batch_size,omitempty"`
	QueueDepth int64     `json:"queue_depth,omitempty"`
	State      string    `json:"state,omitempty"`
	At         time.Time `json:"at"`
}

// Bus fans events out to subscribers. All methods are thread-safe.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

const subscriberBuffer = 16

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking;
// subscribers with a full buffer miss it.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports the current listener count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
