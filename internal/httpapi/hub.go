// Package httpapi exposes the Command Surface over HTTP, adapted from
// the teacher's internal/server package: gorilla/mux for the
// request/response RPCs and a gorilla/websocket hub for the GUI's
// event-topic subscriptions (spec §4.10).
package httpapi

import (
	"sync"

	"github.com/gorilla/websocket"
)

// sendBufferSize bounds a subscriber's outbound queue, mirroring the
// teacher hub's WebSocketBufferSize.
const sendBufferSize = 256

// Client is one WebSocket connection subscribed to a single event topic
// (output:{run_id}, error:{run_id}, or complete:{run_id}).
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// Hub fans out bus events to every WebSocket client subscribed to the
// same topic. Unlike the teacher's single broadcast channel, registration
// is keyed by topic since each run's output/error/complete streams are
// independent (spec §4.5).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]bool)}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.topic]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[c.topic] = set
	}
	set[c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; ok {
		delete(set, c)
		close(c.send)
	}
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
}

// BroadcastTopic fans data out to every client subscribed to topic. A
// client whose send buffer is full is dropped for that message rather
// than blocking the publisher, mirroring the event bus's own
// lag-on-overflow policy (spec §4.5) instead of back-pressuring it.
func (h *Hub) BroadcastTopic(topic string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[topic] {
		select {
		case c.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of clients currently subscribed to topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// the GUI never sends data over this connection; reading only
		// detects client-initiated close.
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
