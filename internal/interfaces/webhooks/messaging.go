package webhooks

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

// MessagingPayload is a delivery receipt from the messaging provider
type MessagingPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// NormalizeMessageStatus maps provider statuses to message statuses.
// Unknown statuses count as failures.
func NormalizeMessageStatus(status string) models.MessageStatus {
	switch strings.ToLower(status) {
	case "sending":
		return models.MessageEnviando
	case "sent":
		return models.MessageEnviado
	case "delivered":
		return models.MessageEntregue
	case "read":
		return models.MessageLido
	}
	return models.MessageFalhou
}

// Messaging applies delivery status updates
func (h *Handler) Messaging(c *gin.Context) {
	if !SecretMatches(h.secrets.Messaging, c.GetHeader(constants.HeaderMessagingSecret)) {
		unauthorized(c)
		return
	}

	var payload MessagingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		badRequest(c, "Invalid payload")
		return
	}
	if payload.MessageID == "" || payload.Status == "" {
		badRequest(c, "messageId and status are required")
		return
	}

	msg, err := h.messages.UpdateMessageStatus(c.Request.Context(), payload.MessageID, NormalizeMessageStatus(payload.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": msg.Status})
}
