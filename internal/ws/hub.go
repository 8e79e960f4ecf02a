// Package ws pushes store change notifications to the presentation shell
// over WebSocket, so the shell re-reads orders instead of polling the
// bridge.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// EventStoreChanged tells the shell the order store moved to Version.
const EventStoreChanged = "store.changed"

// Event is a message broadcast to every connected shell.
type Event struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
}

// Hub maintains the set of connected shells and broadcasts events to them.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	done       chan struct{}

	mu sync.RWMutex
	lg *zap.Logger
}

// NewHub creates a new Hub instance.
func NewHub(lg *zap.Logger) *Hub {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		lg:         lg,
	}
}

// Run is the hub's main loop. It disconnects every client and returns when
// ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				h.lg.Error("Marshal event", zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues event for every connected shell. It never blocks: when
// the queue is full the event is dropped, the next one carries a newer
// version anyway.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.lg.Warn("Dropping shell event", zap.String("type", event.Type))
	}
}

// StoreChanged adapts Broadcast to a store listener.
func (h *Hub) StoreChanged(version uint64) {
	h.Broadcast(Event{Type: EventStoreChanged, Version: version})
}

// Len returns the number of connected shells.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
