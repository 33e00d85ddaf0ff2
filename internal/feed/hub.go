package feed

import (
	"context"
	"log"
	"sync"
)

// Subscriber receives broadcast events. Send must not block.
type Subscriber interface {
	ID() string
	Send(ev Event) bool
	Close()
}

// Hub fans events out to connected subscribers. Run owns the subscriber set.
type Hub struct {
	register   chan Subscriber
	unregister chan Subscriber
	broadcast  chan Event
	done       chan struct{}

	mu      sync.RWMutex
	clients map[Subscriber]struct{}
}

// NewHub creates an idle hub; start it with Run.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan Subscriber),
		unregister: make(chan Subscriber),
		broadcast:  make(chan Event, 64),
		done:       make(chan struct{}),
		clients:    make(map[Subscriber]struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then closes
// every remaining subscriber.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}
			h.mu.Unlock()
		case ev := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				// A client that cannot keep up is dropped.
				if !c.Send(ev) {
					log.Printf("Feed client %s is too slow, disconnecting", c.ID())
					delete(h.clients, c)
					c.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds c to the hub. After the hub stops, c is closed instead.
func (h *Hub) Register(c Subscriber) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

// Unregister removes c and closes it.
func (h *Hub) Unregister(c Subscriber) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues ev for every subscriber. Events sent after the hub stops
// are dropped.
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HubPublisher publishes straight into a local hub. It serves single-process
// deployments without Redis.
type HubPublisher struct {
	hub *Hub
}

// NewHubPublisher wraps hub.
func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, ev Event) error {
	select {
	case p.hub.broadcast <- ev:
		return nil
	case <-p.hub.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
