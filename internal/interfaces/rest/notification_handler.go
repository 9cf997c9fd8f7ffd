package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/pkg/constants"
)

type NotificationHandler struct {
	svcMgr *services.ServiceManager
}

func NewNotificationHandler(svcMgr *services.ServiceManager) *NotificationHandler {
	return &NotificationHandler{svcMgr: svcMgr}
}

// GetNotifications handles GET /api/notifications
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	unreadOnly := false
	if v := queryBool(c, "unread"); v != nil {
		unreadOnly = *v
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Notifications.ListMine(c.Request.Context(), GetIdentity(c), unreadOnly, queryInt(c, "limit", 50))
	})
}

// MarkAsRead handles POST /api/notifications/:id/read
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	HandleUpdateEnvelope(c, "Notification marked as read", nil, func() (interface{}, error) {
		return nil, h.svcMgr.Notifications.MarkRead(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// MarkAllAsRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	HandleUpdateEnvelope(c, "Notifications marked as read", nil, func() (interface{}, error) {
		n, err := h.svcMgr.Notifications.MarkAllRead(c.Request.Context(), GetIdentity(c))
		return gin.H{"updated": n}, err
	})
}
