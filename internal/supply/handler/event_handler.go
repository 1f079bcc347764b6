package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/notify"
)

const heartbeatInterval = 30 * time.Second

// EventHandler streams supply request status changes over SSE
type EventHandler struct {
	hub    *notify.Hub
	buffer int
}

func NewEventHandler(hub *notify.Hub) *EventHandler {
	return &EventHandler{hub: hub, buffer: 64}
}

// WithBuffer sets the per-client event channel size
func (h *EventHandler) WithBuffer(n int) *EventHandler {
	if n > 0 {
		h.buffer = n
	}
	return h
}

// Stream GET /api/v1/events?branch_id=
func (h *EventHandler) Stream(c *gin.Context) {
	branchID, ok := uintQuery(c, "branch_id")
	if !ok {
		return
	}
	clientID := uuid.NewString()
	client := &notify.Client{
		ID:       clientID,
		BranchID: branchID,
		Events:   make(chan notify.Event, h.buffer),
	}
	h.hub.Register(client)
	defer h.hub.Unregister(clientID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
