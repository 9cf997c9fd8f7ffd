package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type MarketingLeadHandler struct {
	svcMgr *services.ServiceManager
}

func NewMarketingLeadHandler(svcMgr *services.ServiceManager) *MarketingLeadHandler {
	return &MarketingLeadHandler{svcMgr: svcMgr}
}

// StatusRequest changes the status of a marketing lead
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreatePublic handles POST /public/marketing-leads
func (h *MarketingLeadHandler) CreatePublic(c *gin.Context) {
	var req models.MarketingLeadInput
	if !BindJSON(c, &req) {
		return
	}
	ml, created, err := h.svcMgr.MarketingLeads.Create(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":                 true,
		"id":                      ml.ID,
		"duplicate":               !created,
		constants.ResponseMessage: "Cadastro recebido com sucesso",
	})
}

// List handles GET /api/marketing-leads
func (h *MarketingLeadHandler) List(c *gin.Context) {
	filter := models.MarketingLeadFilter{
		Status:   c.Query("status"),
		Interest: c.Query("interest"),
		Limit:    queryInt(c, "limit", 50),
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.MarketingLeads.List(c.Request.Context(), GetIdentity(c), filter)
	})
}

// Get handles GET /api/marketing-leads/:id
func (h *MarketingLeadHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.MarketingLeads.Get(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// UpdateStatus handles PATCH /api/marketing-leads/:id/status
func (h *MarketingLeadHandler) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	HandleUpdateEnvelope(c, "Status atualizado", &req, func() (interface{}, error) {
		return nil, h.svcMgr.MarketingLeads.UpdateStatus(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Status)
	})
}

// Convert handles POST /api/marketing-leads/:id/convert
func (h *MarketingLeadHandler) Convert(c *gin.Context) {
	HandleCreateEnvelope(c, "Lead criado a partir da captação", nil, func() (interface{}, error) {
		id, err := h.svcMgr.MarketingLeads.ConvertToLead(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
		if err != nil {
			return nil, err
		}
		return gin.H{"leadId": id}, nil
	})
}
