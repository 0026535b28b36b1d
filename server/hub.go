package server

import (
	"log/slog"
	"sync"

	pocketgraph "github.com/hamletlg/POCKETFLOWGRAPH"
	"github.com/hamletlg/POCKETFLOWGRAPH/stream"
)

// ClientConn is the write side of a connected event subscriber. The
// websocket handler satisfies it with a *websocket.Conn wrapper; tests
// use in-memory fakes.
type ClientConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1

// Hub fans run events out to every connected subscriber. Connections
// whose writes fail are dropped.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[ClientConn]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[ClientConn]struct{}),
	}
}

// Add registers a subscriber.
func (h *Hub) Add(c ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Remove unregisters a subscriber without closing it.
func (h *Hub) Remove(c ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// Len reports the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast encodes the event as a wire envelope and writes it to every
// subscriber. A failed write closes and removes that subscriber; the
// remaining connections still receive the event.
func (h *Hub) Broadcast(e pocketgraph.Event) {
	data, err := stream.EncodeEvent(e)
	if err != nil {
		h.logger.Error("encoding run event", "kind", string(e.Kind), "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(textMessage, data); err != nil {
			h.logger.Warn("dropping event subscriber", "error", err)
			_ = c.Close()
			delete(h.conns, c)
		}
	}
}

// CloseAll closes and removes every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		_ = c.Close()
		delete(h.conns, c)
	}
}
