package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatcher(h *SessionHub, sessionID string) *Client {
	c := &Client{SessionID: sessionID, Send: make(chan []byte, 8)}
	h.Register(c)
	return c
}

func TestBroadcastReachesSessionWatchers(t *testing.T) {
	h := NewSessionHub()
	a := newWatcher(h, "sess-1")
	b := newWatcher(h, "sess-1")
	other := newWatcher(h, "sess-2")

	h.BroadcastStatus("sess-1", "PAID")

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Send:
			var upd StatusUpdate
			require.NoError(t, json.Unmarshal(data, &upd))
			assert.Equal(t, "session_status", upd.Type)
			assert.Equal(t, "sess-1", upd.SessionID)
			assert.Equal(t, "PAID", upd.Status)
		default:
			t.Fatal("watcher got no update")
		}
	}
	assert.Len(t, other.Send, 0)
}

func TestBroadcastSkipsSlowConsumer(t *testing.T) {
	h := NewSessionHub()
	slow := &Client{SessionID: "sess-1", Send: make(chan []byte)} // unbuffered, nobody reading
	h.Register(slow)

	done := make(chan struct{})
	go func() {
		h.BroadcastStatus("sess-1", "PAID")
		close(done)
	}()
	<-done // must not block
}

func TestCloseUnregisters(t *testing.T) {
	h := NewSessionHub()
	c := newWatcher(h, "sess-1")
	require.Equal(t, 1, h.Watchers("sess-1"))

	c.Close()
	assert.Equal(t, 0, h.Watchers("sess-1"))

	// Idempotent and safe to broadcast afterwards.
	c.Close()
	h.BroadcastStatus("sess-1", "FULFILLED")
}

func TestCloseDuringBroadcast(t *testing.T) {
	h := NewSessionHub()
	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = newWatcher(h, "sess-1")
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.BroadcastStatus("sess-1", "PAID")
		}
		close(done)
	}()
	for _, c := range clients {
		c.Close()
	}
	<-done
}
