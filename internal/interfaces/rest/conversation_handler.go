package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type ConversationHandler struct {
	svcMgr *services.ServiceManager
}

func NewConversationHandler(svcMgr *services.ServiceManager) *ConversationHandler {
	return &ConversationHandler{svcMgr: svcMgr}
}

// MessageStatusRequest represents a delivery status update
type MessageStatusRequest struct {
	Status models.MessageStatus `json:"status" binding:"required"`
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	filter := models.ConversationFilter{
		Department: c.Query("department"),
		Status:     models.ConversationStatus(c.Query("status")),
		Search:     c.Query("search"),
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		switch {
		case c.Query("studentId") != "":
			return h.svcMgr.Conversations.ByStudent(c.Request.Context(), GetIdentity(c), c.Query("studentId"))
		case c.Query("leadId") != "":
			return h.svcMgr.Conversations.ByLead(c.Request.Context(), GetIdentity(c), c.Query("leadId"))
		}
		return h.svcMgr.Conversations.List(c.Request.Context(), GetIdentity(c), filter)
	})
}

// Get handles GET /api/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Conversations.Get(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	var req models.ConversationInput
	HandleCreateEnvelope(c, "Conversa criada", &req, func() (interface{}, error) {
		return h.svcMgr.Conversations.Create(c.Request.Context(), GetIdentity(c), req)
	})
}

// Update handles PATCH /api/conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	var req models.ConversationInput
	HandleUpdateEnvelope(c, "Conversa atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Conversations.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// Messages handles GET /api/conversations/:id/messages
func (h *ConversationHandler) Messages(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Conversations.ListMessages(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// Send handles POST /api/messages
func (h *ConversationHandler) Send(c *gin.Context) {
	var req models.SendMessageInput
	HandleCreateEnvelope(c, "Mensagem enviada", &req, func() (interface{}, error) {
		return h.svcMgr.Conversations.Send(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateMessageStatus handles PATCH /api/messages/:id/status
func (h *ConversationHandler) UpdateMessageStatus(c *gin.Context) {
	var req MessageStatusRequest
	HandleUpdateEnvelope(c, "Status atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.Conversations.UpdateMessageStatus(c.Request.Context(), c.Param(constants.ParamID), req.Status)
	})
}
