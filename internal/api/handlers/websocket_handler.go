package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/compliance-rag/backend/internal/compliance"
	"github.com/compliance-rag/backend/internal/monitor"
	"github.com/compliance-rag/backend/pkg/logger"
)

const streamInterval = 5 * time.Second

// WebSocketHandler streams live performance and compliance snapshots to
// dashboard clients.
type WebSocketHandler struct {
	tracker    *monitor.Tracker
	aggregator *compliance.Aggregator
}

func NewWebSocketHandler(tracker *monitor.Tracker, aggregator *compliance.Aggregator) *WebSocketHandler {
	return &WebSocketHandler{
		tracker:    tracker,
		aggregator: aggregator,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	done := make(chan struct{})
	go h.watchClose(c, done)

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	if err := h.sendSnapshot(c); err != nil {
		logger.Error("Failed to send initial snapshot", zap.Error(err))
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.sendSnapshot(c); err != nil {
				logger.Error("Failed to send snapshot", zap.Error(err))
				return
			}
		}
	}
}

// watchClose drains client messages so close frames are processed.
func (h *WebSocketHandler) watchClose(c *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) sendSnapshot(c *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	msg := map[string]interface{}{
		"type":        "snapshot",
		"performance": h.tracker.GetSnapshot(),
		"compliance":  h.aggregator.GetComplianceScore(ctx),
	}

	return c.WriteJSON(msg)
}
