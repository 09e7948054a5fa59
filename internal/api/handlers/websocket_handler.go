package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/pkg/logger"
)

// WebSocketHandler fans created events out to connected clients. Writes are
// serialized per connection by the hub lock.
type WebSocketHandler struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewWebSocketHandler() *WebSocketHandler {
	return &WebSocketHandler{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()

		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	// Drain incoming frames so close and ping control messages are
	// processed. Clients are not expected to send payloads.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

// BroadcastEvent pushes a created event to every connected client. Dead
// connections are dropped from the registry.
func (h *WebSocketHandler) BroadcastEvent(event *models.Event) {
	msg := map[string]interface{}{
		"type":  "event_created",
		"event": event,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(msg); err != nil {
			logger.Warn("Failed to push event to WebSocket client", zap.Error(err))
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
