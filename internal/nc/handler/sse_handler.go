package handler

import (
	"fmt"
	"time"

	"github.com/Nikolaihoj1/millpoint-nc/internal/nc/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepaliveInterval = 30 * time.Second

// SSEHandler streams change notifications.
type SSEHandler struct {
	hub    *sse.Hub
	logger *zap.Logger
}

func NewSSEHandler(hub *sse.Hub, logger *zap.Logger) *SSEHandler {
	return &SSEHandler{hub: hub, logger: logger}
}

// Stream GET /api/events?token=xxx
func (h *SSEHandler) Stream(c *gin.Context) {
	userID := GetActor(c).ID
	clientID := fmt.Sprintf("%s_%d", userID, time.Now().UnixNano())

	client := &sse.Client{
		ID:     clientID,
		UserID: userID,
		Events: make(chan sse.Event, 64),
	}
	h.hub.Register(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"clientId\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(keepaliveInterval)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			h.hub.Unregister(clientID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			if _, err := c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data)); err != nil {
				h.logger.Debug("SSE write failed", zap.String("client_id", clientID), zap.Error(err))
				h.hub.Unregister(clientID)
				return
			}
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
