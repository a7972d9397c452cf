package http

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"bsky-notifier/internal/domain"
)

// Client represents a connected SSE client.
type Client struct {
	send chan []byte
}

// Hub manages all active SSE client connections for the browser channel.
// Single-instance model: all broadcast is in-process.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a new SSE Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a new SSE client.
func (h *Hub) Register(send chan []byte) *Client {
	c := &Client{send: send}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Debug().Msg("SSE client connected")
	return c
}

// Unregister removes an SSE client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	log.Debug().Msg("SSE client disconnected")
}

// Broadcast sends a notification to every connected client and returns how
// many received it. Satisfies the notify.Broadcaster interface.
func (h *Hub) Broadcast(n *domain.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return 0
	}

	msg := buildSSEMessage(n)
	delivered := 0
	for c := range h.clients {
		select {
		case c.send <- msg:
			delivered++
		default:
			// Client is slow/disconnected, skip
			log.Warn().Msg("SSE client send buffer full, skipping")
		}
	}
	return delivered
}

// ConnectedCount returns the number of connected SSE clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// buildSSEMessage formats a notification as an SSE data frame.
func buildSSEMessage(n *domain.Notification) []byte {
	b, _ := json.Marshal(n)
	return []byte("event: notification\ndata: " + string(b) + "\n\n")
}
