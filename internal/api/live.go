package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kudu-data/corridor.watch/internal/engine"
	"github.com/kudu-data/corridor.watch/internal/monitoring"
	"github.com/kudu-data/corridor.watch/internal/track"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	clientSendSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is same-origin in production and proxied in dev.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans engine state changes out to connected dashboard clients. Each
// client gets a buffered send queue; a client that cannot keep up is dropped
// rather than allowed to stall the broadcast loop.
type Hub struct {
	tracker *engine.Tracker

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub over the tracker.
func NewHub(tracker *engine.Tracker) *Hub {
	return &Hub{
		tracker: tracker,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run broadcasts a state frame every time the tracker signals a change, until
// the context is cancelled. The change channel coalesces, so a burst of
// updates becomes one frame.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.tracker.Changes():
			h.broadcastState()
		}
	}
}

// ServeWS upgrades the request and streams state frames to the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("live: upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	monitoring.Logf("live: client connected (%d total)", n)

	// First frame immediately so a new dashboard renders without waiting for
	// the next change.
	if frame, err := h.stateFrame(); err == nil {
		select {
		case c.send <- frame:
		default:
		}
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards inbound frames and detects disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer h.drop(c)
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.drop(c)
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) drop(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	h.mu.Unlock()
}

// stateFrame renders the full dashboard state as one frame.
func (h *Hub) stateFrame() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":     "state",
		"entities": h.tracker.Entities(),
		"alerts":   h.tracker.Alerts(""),
		"counts":   h.tracker.AlertCounts(),
	})
}

func (h *Hub) broadcastState() {
	frame, err := h.stateFrame()
	if err != nil {
		monitoring.Logf("live: encoding state frame: %v", err)
		return
	}
	h.broadcast(frame)
}

// BroadcastReplayPoint pushes one playback sample to all clients.
func (h *Hub) BroadcastReplayPoint(p track.TrailPoint) {
	frame, err := json.Marshal(map[string]any{"type": "replay", "point": p})
	if err != nil {
		return
	}
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.Lock()
	var stalled []*wsClient
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stalled {
		monitoring.Logf("live: dropping stalled client")
		h.drop(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
