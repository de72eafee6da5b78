// Package viewer streams simulation frames to browser clients over WebSocket.
package viewer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/precinct/sim"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

// Hub fans the latest frame out to every connected client. Slow clients
// skip frames instead of holding up the simulation.
type Hub struct {
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	clients map[uint64]chan []byte
	latest  []byte
	layout  []byte
	closed  bool
}

// NewHub creates a hub. layout is the district name of every cell, served
// once from /layout.
func NewHub(layout []string) *Hub {
	b, err := json.Marshal(layout)
	if err != nil {
		b = []byte("[]")
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uint64]chan []byte),
		layout:  b,
	}
}

// Publish encodes the frame once and offers it to every client.
func (h *Hub) Publish(f sim.Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest = b
	for _, ch := range h.clients {
		offer(ch, b)
	}
	return nil
}

// offer replaces any undelivered frame with b.
func offer(ch chan []byte, b []byte) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops accepting frames.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) join() (uint64, chan []byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, nil, false
	}
	id := h.nextID.Add(1)
	ch := make(chan []byte, 1)
	if h.latest != nil {
		ch <- h.latest
	}
	h.clients[id] = ch
	return id, ch, true
}

func (h *Hub) leave(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
}

// Handler returns the HTTP routes: /ws, /layout and /frame.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/layout", h.serveLayout)
	mux.HandleFunc("/frame", h.serveFrame)
	return mux
}

func (h *Hub) serveLayout(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(h.layout)
}

func (h *Hub) serveFrame(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.mu.Lock()
	b := h.latest
	h.mu.Unlock()
	if b == nil {
		rw.WriteHeader(http.StatusNoContent)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(b)
}

func (h *Hub) serveWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, out, ok := h.join()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		return
	}
	defer h.leave(id)
	slog.Debug("viewer client connected", "id", id, "remote", r.RemoteAddr)

	// Writer goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for b := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				slog.Debug("viewer write failed", "id", id, "error", err)
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}()

	// Reader loop only detects disconnects; client messages are ignored.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.leave(id)
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
	slog.Debug("viewer client disconnected", "id", id)
}
