// Package sse fans change notifications out to connected browser clients.
package sse

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event types
const (
	EventMachineUpdate    = "machine_update"
	EventProgramUpdate    = "program_update"
	EventSetupSheetUpdate = "setup_sheet_update"
)

// Event is one server-sent event.
type Event struct {
	EventType string
	Data      string
}

// Client is a connected event stream.
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub tracks connected clients. Broadcasts never block: a client whose
// buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)),
	)
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE client unregistered", zap.String("client_id", clientID), zap.Int("total", len(h.clients)))
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Warn("SSE client buffer full, skipping event", zap.String("client_id", client.ID), zap.String("event", event.EventType))
		}
	}
}

type change struct {
	ID        string `json:"id"`
	ProgramID string `json:"programId,omitempty"`
	Action    string `json:"action"`
}

func (h *Hub) publish(eventType string, c change) {
	if h == nil {
		return
	}
	data, _ := json.Marshal(c)
	h.Broadcast(Event{EventType: eventType, Data: string(data)})
}

// PublishMachine announces a machine change (created, updated, deleted, status).
func (h *Hub) PublishMachine(machineID, action string) {
	h.publish(EventMachineUpdate, change{ID: machineID, Action: action})
}

// PublishProgram announces a program change.
func (h *Hub) PublishProgram(programID, action string) {
	h.publish(EventProgramUpdate, change{ID: programID, Action: action})
}

// PublishSetupSheet announces a setup sheet change.
func (h *Hub) PublishSetupSheet(sheetID, programID, action string) {
	h.publish(EventSetupSheetUpdate, change{ID: sheetID, ProgramID: programID, Action: action})
}
