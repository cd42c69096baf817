package hub

import (
	"context"
	"log"
	"sync"
)

// Hub manages WebSocket clients and broadcasts messages.
type Hub struct {
	clients map[*Client]bool
	stopped bool
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Register adds a new client to the hub. A client registered after the hub
// stopped is closed right away.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(c.send)
		return
	}
	h.clients[c] = true
	log.Printf("Client connected (total: %d)", len(h.clients))
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	log.Printf("Client disconnected (total: %d)", len(h.clients))
}

// Send queues a message for one registered client.
func (h *Hub) Send(c *Client, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// Client send buffer full, disconnect
			go h.Unregister(client)
		}
	}
}

// Run keeps the hub open until ctx is done, then disconnects every client.
// Should be run in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
