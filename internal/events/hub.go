package events

import (
	"context"
	"sync"

	"leadhunt-engine/internal/domain"
)

const subscriberBuffer = 16

// Hub fans events out to SSE subscribers. Slow subscribers miss events
// rather than block publishers.
type Hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Event]struct{})}
}

func (h *Hub) Subscribe() <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(sub <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		if ch == sub {
			delete(h.clients, ch)
			close(ch)
			return
		}
	}
}

// Publish reports how many subscribers received e.
func (h *Hub) Publish(e Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for ch := range h.clients {
		select {
		case ch <- e:
			sent++
		default:
		}
	}
	return sent
}

// Notify publishes a lead event to every subscriber; it never fails.
func (h *Hub) Notify(_ context.Context, ev domain.LeadEvent) error {
	h.Publish(FromLeadEvent(ev))
	return nil
}
