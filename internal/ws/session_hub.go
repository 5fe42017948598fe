package ws

import (
	"encoding/json"
	"sync"
)

// Client is one WebSocket connection watching a payment session.
type Client struct {
	SessionID string
	Send      chan []byte
	hub       *SessionHub
	mu        sync.Mutex
	closed    bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	// Unregister before closing Send: the hub lock serializes against any
	// in-flight broadcast, so nothing can write to a closed channel.
	if c.hub != nil {
		c.hub.unregister(c)
	}
	close(c.Send)
}

// SessionHub pushes status transitions to clients subscribed to a session,
// so the checkout page flips from "waiting for payment" without polling.
type SessionHub struct {
	mu        sync.RWMutex
	bySession map[string]map[*Client]struct{}
}

func NewSessionHub() *SessionHub {
	return &SessionHub{bySession: make(map[string]map[*Client]struct{})}
}

func (h *SessionHub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.hub = h
	if h.bySession[c.SessionID] == nil {
		h.bySession[c.SessionID] = make(map[*Client]struct{})
	}
	h.bySession[c.SessionID][c] = struct{}{}
}

func (h *SessionHub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.bySession[c.SessionID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.bySession, c.SessionID)
		}
	}
}

// StatusUpdate is the wire payload pushed on every session transition.
type StatusUpdate struct {
	Type      string `json:"type"` // always "session_status"
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// BroadcastStatus fans a transition out to every watcher of the session.
// Slow consumers are skipped rather than blocking the hub.
func (h *SessionHub) BroadcastStatus(sessionID, status string) {
	data, _ := json.Marshal(StatusUpdate{Type: "session_status", SessionID: sessionID, Status: status})
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.bySession[sessionID] {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// Watchers returns the number of connections on a session (used in tests).
func (h *SessionHub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySession[sessionID])
}
