package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/pkg/constants"
)

type EmailHandler struct {
	svcMgr *services.ServiceManager
}

func NewEmailHandler(svcMgr *services.ServiceManager) *EmailHandler {
	return &EmailHandler{svcMgr: svcMgr}
}

// SubscriptionRequest changes the subscription of a contact
type SubscriptionRequest struct {
	Status string `json:"status" binding:"required,oneof=subscribed unsubscribed"`
}

// ListRequest creates or renames a contact list
type ListRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// ScheduleRequest schedules a campaign
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
}

// ---- contacts ----

// ListContacts handles GET /api/email/contacts
func (h *EmailHandler) ListContacts(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		if email := c.Query("email"); email != "" {
			return h.svcMgr.Email.GetContactByEmail(c.Request.Context(), GetIdentity(c), email)
		}
		return h.svcMgr.Email.ListContacts(c.Request.Context(), GetIdentity(c), c.Query("status"), queryInt(c, "offset", 0), queryInt(c, "limit", 50))
	})
}

// GetContact handles GET /api/email/contacts/:id
func (h *EmailHandler) GetContact(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.GetContact(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// UpdateSubscription handles PATCH /api/email/contacts/:id/subscription
func (h *EmailHandler) UpdateSubscription(c *gin.Context) {
	var req SubscriptionRequest
	HandleUpdateEnvelope(c, "Inscrição atualizada", &req, func() (interface{}, error) {
		return nil, h.svcMgr.Email.UpdateSubscription(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Status)
	})
}

// ContactEvents handles GET /api/email/contacts/:id/events
func (h *EmailHandler) ContactEvents(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.ContactEvents(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), queryInt(c, "limit", 100))
	})
}

// ---- lists ----

// ListLists handles GET /api/email/lists
func (h *EmailHandler) ListLists(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.ListLists(c.Request.Context(), GetIdentity(c))
	})
}

// GetList handles GET /api/email/lists/:id
func (h *EmailHandler) GetList(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.GetList(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// CreateList handles POST /api/email/lists
func (h *EmailHandler) CreateList(c *gin.Context) {
	var req ListRequest
	HandleCreateEnvelope(c, "Lista criada", &req, func() (interface{}, error) {
		return h.svcMgr.Email.CreateList(c.Request.Context(), GetIdentity(c), req.Name, req.Description)
	})
}

// UpdateList handles PATCH /api/email/lists/:id
func (h *EmailHandler) UpdateList(c *gin.Context) {
	var req ListRequest
	HandleUpdateEnvelope(c, "Lista atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Email.UpdateList(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Name, req.Description)
	})
}

// DeleteList handles DELETE /api/email/lists/:id
func (h *EmailHandler) DeleteList(c *gin.Context) {
	HandleDeleteEnvelope(c, "Lista removida", func() error {
		return h.svcMgr.Email.DeleteList(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// AddContact handles POST /api/email/lists/:id/contacts/:contactId
func (h *EmailHandler) AddContact(c *gin.Context) {
	HandleUpdateEnvelope(c, "Contato adicionado", nil, func() (interface{}, error) {
		return nil, h.svcMgr.Email.AddContactToList(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), c.Param("contactId"))
	})
}

// RemoveContact handles DELETE /api/email/lists/:id/contacts/:contactId
func (h *EmailHandler) RemoveContact(c *gin.Context) {
	HandleDeleteEnvelope(c, "Contato removido da lista", func() error {
		return h.svcMgr.Email.RemoveContactFromList(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), c.Param("contactId"))
	})
}

// ---- campaigns ----

// ListCampaigns handles GET /api/email/campaigns
func (h *EmailHandler) ListCampaigns(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.ListCampaigns(c.Request.Context(), GetIdentity(c), c.Query("status"))
	})
}

// GetCampaign handles GET /api/email/campaigns/:id
func (h *EmailHandler) GetCampaign(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.GetCampaign(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// CreateCampaign handles POST /api/email/campaigns
func (h *EmailHandler) CreateCampaign(c *gin.Context) {
	var req services.CampaignInput
	HandleCreateEnvelope(c, "Campanha criada", &req, func() (interface{}, error) {
		return h.svcMgr.Email.CreateCampaign(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateCampaign handles PATCH /api/email/campaigns/:id
func (h *EmailHandler) UpdateCampaign(c *gin.Context) {
	var req services.CampaignInput
	HandleUpdateEnvelope(c, "Campanha atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Email.UpdateCampaign(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// ScheduleCampaign handles POST /api/email/campaigns/:id/schedule
func (h *EmailHandler) ScheduleCampaign(c *gin.Context) {
	var req ScheduleRequest
	HandleUpdateEnvelope(c, "Campanha agendada", &req, func() (interface{}, error) {
		return h.svcMgr.Email.ScheduleCampaign(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.ScheduledAt)
	})
}

// DeleteCampaign handles DELETE /api/email/campaigns/:id
func (h *EmailHandler) DeleteCampaign(c *gin.Context) {
	HandleDeleteEnvelope(c, "Campanha removida", func() error {
		return h.svcMgr.Email.DeleteCampaign(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// CampaignEvents handles GET /api/email/campaigns/:id/events
func (h *EmailHandler) CampaignEvents(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.CampaignEvents(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), queryInt(c, "limit", 100))
	})
}

// ---- templates ----

// ListTemplates handles GET /api/email/templates
func (h *EmailHandler) ListTemplates(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.ListTemplates(c.Request.Context(), GetIdentity(c))
	})
}

// GetTemplate handles GET /api/email/templates/:id
func (h *EmailHandler) GetTemplate(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Email.GetTemplate(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// CreateTemplate handles POST /api/email/templates
func (h *EmailHandler) CreateTemplate(c *gin.Context) {
	var req services.TemplateInput
	HandleCreateEnvelope(c, "Template criado", &req, func() (interface{}, error) {
		return h.svcMgr.Email.CreateTemplate(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateTemplate handles PATCH /api/email/templates/:id
func (h *EmailHandler) UpdateTemplate(c *gin.Context) {
	var req services.TemplateInput
	HandleUpdateEnvelope(c, "Template atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.Email.UpdateTemplate(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// DeleteTemplate handles DELETE /api/email/templates/:id
func (h *EmailHandler) DeleteTemplate(c *gin.Context) {
	HandleDeleteEnvelope(c, "Template removido", func() error {
		return h.svcMgr.Email.DeleteTemplate(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}
