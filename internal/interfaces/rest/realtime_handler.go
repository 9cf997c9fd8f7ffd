package rest

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/gpus/backend/internal/infrastructure/realtime"
	apperrors "github.com/gpus/backend/pkg/errors"
)

// RealtimeHandler upgrades authenticated requests to organization sockets
type RealtimeHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewRealtimeHandler creates a RealtimeHandler. An empty origin list accepts any origin.
func NewRealtimeHandler(hub *realtime.Hub, allowedOrigins []string) *RealtimeHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || allowed["*"] || origin == "" || allowed[origin]
			},
		},
	}
}

// Connect handles GET /api/realtime
func (h *RealtimeHandler) Connect(c *gin.Context) {
	identity := GetIdentity(c)
	if identity.Subject == "" {
		RespondAppError(c, apperrors.NewUnauthorizedError(""))
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response
		log.Printf("⚠️ Websocket upgrade failed: %v", err)
		return
	}

	conn := realtime.NewConnection(identity.OrganizationID(), identity.Subject, ws)
	h.hub.Attach(conn)
	defer h.hub.Detach(conn)

	_ = conn.Send(realtime.Encode("connected", gin.H{"organizationId": conn.OrganizationID}))
	conn.ReadLoop()
}
