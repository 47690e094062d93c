// Package ws implements a Server-Sent Events (SSE) hub that streams engine
// events to connected dashboards.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/showroom/events"
)

// client represents a single SSE connection.
type client struct {
	ch     chan []byte
	topics map[events.Topic]bool // empty means every topic
}

func (c *client) wants(t events.Topic) bool {
	return len(c.topics) == 0 || c.topics[t]
}

// Hub manages SSE client connections and broadcasts events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

// NewHub creates a Hub ready to accept connections.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Attach forwards every event published on bus to connected clients.
func (h *Hub) Attach(bus events.Bus) (detach func()) {
	return bus.Subscribe(events.TopicAll, func(_ context.Context, ev *events.Event) error {
		h.Broadcast(ev)
		return nil
	})
}

// Broadcast sends an event to all connected clients interested in its topic.
func (h *Hub) Broadcast(ev *events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("hub broadcast marshal", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev.Topic) {
			continue
		}
		select {
		case c.ch <- data:
		default:
			// Drop event if client is slow; never block the publisher
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeSSE handles an SSE connection request. Repeated ?topic= parameters
// narrow the stream.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	c := &client{ch: make(chan []byte, 64), topics: map[events.Topic]bool{}}
	for _, t := range r.URL.Query()["topic"] {
		c.topics[events.Topic(t)] = true
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	fmt.Fprintf(w, "data: {\"type\":\"connected\"}\n\n") //nolint:errcheck
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-c.ch:
			// Each SSE "data:" line must not contain newlines
			for _, line := range strings.Split(string(data), "\n") {
				fmt.Fprintf(w, "data: %s\n", line) //nolint:errcheck
			}
			fmt.Fprintln(w) //nolint:errcheck
			flusher.Flush()
		}
	}
}
