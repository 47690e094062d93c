package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryBus is a thread-safe in-process event bus. Handlers run
// synchronously on the publishing goroutine.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[Topic][]handlerEntry
	nextID   int
	history  []*Event
	maxHist  int
}

type handlerEntry struct {
	id      int
	handler Handler
}

// NewInMemoryBus creates an InMemoryBus with a 1000-event history cap.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[Topic][]handlerEntry),
		maxHist:  1000,
	}
}

// Publish delivers ev to the subscribers of its topic and of TopicAll. ID and
// Timestamp are filled in when empty. Every handler runs even if an earlier
// one fails.
func (b *InMemoryBus) Publish(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.maxHist {
		b.history = b.history[len(b.history)-b.maxHist:]
	}

	// Collect handlers to invoke outside the lock
	var targets []Handler
	for _, e := range b.handlers[ev.Topic] {
		targets = append(targets, e.handler)
	}
	if ev.Topic != TopicAll {
		for _, e := range b.handlers[TopicAll] {
			targets = append(targets, e.handler)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, h := range targets {
		if err := h(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish %s: %d handler error(s): %w", ev.Topic, len(errs), errs[0])
	}
	return nil
}

// Subscribe registers a handler for topic.
func (b *InMemoryBus) Subscribe(topic Topic, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		filtered := entries[:0]
		for _, e := range entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) == 0 {
			delete(b.handlers, topic)
		} else {
			b.handlers[topic] = filtered
		}
	}
}

// History returns the most recent limit events on topic, oldest first. A
// non-positive limit returns all retained events.
func (b *InMemoryBus) History(topic Topic, limit int) []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []*Event
	for i := len(b.history) - 1; i >= 0; i-- {
		ev := b.history[i]
		if topic == TopicAll || ev.Topic == topic {
			result = append(result, ev)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	// Reverse to chronological order
	for l, r := 0, len(result)-1; l < r; l, r = l+1, r-1 {
		result[l], result[r] = result[r], result[l]
	}
	return result
}
