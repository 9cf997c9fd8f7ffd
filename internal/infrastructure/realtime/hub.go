package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gpus/backend/internal/domain/ports"
)

// Hub tracks sockets per organization and fans payloads out to them.
// A user may hold several sockets (tabs).
type Hub struct {
	mu            sync.RWMutex
	sessions      map[string]*Connection            // sessionID -> connection
	organizations map[string]map[string]*Connection // orgID -> sessionID -> connection
}

// NewHub constructs an empty Hub
func NewHub() *Hub {
	return &Hub{
		sessions:      make(map[string]*Connection),
		organizations: make(map[string]map[string]*Connection),
	}
}

var _ ports.Broadcaster = (*Hub)(nil)

// Attach registers and starts conn
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.sessions[conn.ID] = conn
	org := h.organizations[conn.OrganizationID]
	if org == nil {
		org = make(map[string]*Connection)
		h.organizations[conn.OrganizationID] = org
	}
	org[conn.ID] = conn
	h.mu.Unlock()

	conn.Start()
}

// Detach forgets conn if it is still tracked
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	delete(h.sessions, conn.ID)
	if org := h.organizations[conn.OrganizationID]; org != nil {
		delete(org, conn.ID)
		if len(org) == 0 {
			delete(h.organizations, conn.OrganizationID)
		}
	}
	h.mu.Unlock()
}

// BroadcastOrganization writes payload to every socket of the organization
func (h *Hub) BroadcastOrganization(organizationID string, payload []byte) int {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.organizations[organizationID]))
	for _, conn := range h.organizations[organizationID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// NotifyUser writes payload to every socket the user holds in the organization
func (h *Hub) NotifyUser(organizationID, userID string, payload []byte) int {
	h.mu.RLock()
	var targets []*Connection
	for _, conn := range h.organizations[organizationID] {
		if conn.UserID == userID {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if conn.Send(payload) == nil {
			delivered++
		}
	}
	return delivered
}

// Count returns the number of tracked sockets
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close terminates every socket and clears the hub
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Connection, 0, len(h.sessions))
	for _, conn := range h.sessions {
		sessions = append(sessions, conn)
	}
	h.sessions = make(map[string]*Connection)
	h.organizations = make(map[string]map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range sessions {
		conn.Close(1001, "server shutdown")
	}
	if len(sessions) > 0 {
		log.Printf("🔌 Closed %d realtime connections", len(sessions))
	}
}

// Envelope is the frame pushed to clients
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Encode marshals an Envelope, returning nil when data cannot be encoded
func Encode(eventType string, data interface{}) []byte {
	b, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		log.Printf("⚠️ Failed to encode realtime frame %s: %v", eventType, err)
		return nil
	}
	return b
}
