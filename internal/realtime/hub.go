// Package realtime pushes roadmap changes to the owner's open websocket
// connections.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/goalmap/internal/roadmap"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Hub tracks live connections per external user id and fans out events.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*websocket.Conn]struct{}

	broadcast chan roadmap.Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

var _ roadmap.EventPublisher = (*Hub)(nil)

// NewHub creates a hub and starts its broadcast loop.
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:   make(map[string]map[*websocket.Conn]struct{}),
		broadcast: make(chan roadmap.Event, bufferSize),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
	h.wg.Add(1)
	go h.broadcastLoop()
	return h
}

// Publish queues ev for delivery. It never blocks; when the queue is full the
// event is dropped.
func (h *Hub) Publish(ev roadmap.Event) {
	select {
	case <-h.ctx.Done():
		return
	default:
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("Live feed queue full, dropping event", "type", ev.Type, "user_id", ev.OwnerExternalID)
	}
}

// Register adds a connection for userID.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*websocket.Conn]struct{})
		h.clients[userID] = set
	}
	set[conn] = struct{}{}
	h.logger.Debug("Live feed client registered", "user_id", userID, "connections", len(set))
}

// Unregister removes a connection for userID.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ClientCount returns the number of live connections for userID.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Close stops the broadcast loop and closes every connection.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for conn := range set {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.clients, userID)
	}
}

func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-h.broadcast:
			if ev.Timestamp.IsZero() {
				ev.Timestamp = time.Now().UTC()
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("Failed to marshal live feed event", "type", ev.Type, "error", err)
				continue
			}

			h.mu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients[ev.OwnerExternalID]))
			for conn := range h.clients[ev.OwnerExternalID] {
				conns = append(conns, conn)
			}
			h.mu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					h.logger.Debug("Live feed write failed, dropping client", "user_id", ev.OwnerExternalID, "error", err)
					h.Unregister(ev.OwnerExternalID, conn)
					_ = conn.Close(websocket.StatusInternalError, "write failed")
				}
			}
		}
	}
}
