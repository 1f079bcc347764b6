package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"go.uber.org/zap"
)

const EventStatusChange = "supply_request_status"

// Event server-sent event
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client connected SSE client. BranchID 0 receives every branch.
type Client struct {
	ID       string
	BranchID uint
	Events   chan Event
}

// Hub in-process SSE client registry
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("sse client registered", zap.String("client_id", client.ID), zap.Int("total", len(h.clients)))
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("sse client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Count connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends to every client subscribed to branchID. Slow clients drop
// the event.
func (h *Hub) Broadcast(branchID uint, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.BranchID != 0 && client.BranchID != branchID {
			continue
		}
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("sse client buffer full, skipping event", zap.String("client_id", client.ID))
		}
	}
}

func (h *Hub) Name() string { return "sse" }

// Send implements Sink
func (h *Hub) Send(_ context.Context, ev entity.StatusChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Broadcast(ev.BranchID, Event{EventType: EventStatusChange, Data: string(data)})
	return nil
}
