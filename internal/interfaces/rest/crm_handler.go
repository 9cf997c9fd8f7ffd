package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

// CRMHandler serves activities, settings, objections and referrals
type CRMHandler struct {
	svcMgr *services.ServiceManager
}

func NewCRMHandler(svcMgr *services.ServiceManager) *CRMHandler {
	return &CRMHandler{svcMgr: svcMgr}
}

// SetSettingRequest stores one organization setting
type SetSettingRequest struct {
	Value string `json:"value"`
}

// ---- activities ----

// LeadActivities handles GET /api/activities/leads/:id
func (h *CRMHandler) LeadActivities(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Activities.ListByLead(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), queryInt(c, "limit", 50))
	})
}

// StudentActivities handles GET /api/activities/students/:id
func (h *CRMHandler) StudentActivities(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Activities.ListByStudent(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), queryInt(c, "limit", 50))
	})
}

// LogActivity handles POST /api/activities
func (h *CRMHandler) LogActivity(c *gin.Context) {
	var req services.ActivityInput
	HandleCreateEnvelope(c, "Atividade registrada", &req, func() (interface{}, error) {
		return h.svcMgr.Activities.Log(c.Request.Context(), GetIdentity(c), req)
	})
}

// ---- settings ----

// ListSettings handles GET /api/settings
func (h *CRMHandler) ListSettings(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Settings.List(c.Request.Context(), GetIdentity(c))
	})
}

// GetSetting handles GET /api/settings/:key
func (h *CRMHandler) GetSetting(c *gin.Context) {
	HandleGetEnvelope(c, "value", func() (interface{}, error) {
		return h.svcMgr.Settings.Get(c.Request.Context(), GetIdentity(c), c.Param("key"))
	})
}

// SetSetting handles PUT /api/settings/:key
func (h *CRMHandler) SetSetting(c *gin.Context) {
	var req SetSettingRequest
	HandleUpdateEnvelope(c, "Configuração salva", &req, func() (interface{}, error) {
		return nil, h.svcMgr.Settings.Set(c.Request.Context(), GetIdentity(c), c.Param("key"), req.Value)
	})
}

// IntegrationConfig handles GET /api/settings/integrations/:name
func (h *CRMHandler) IntegrationConfig(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Settings.IntegrationConfig(c.Request.Context(), GetIdentity(c), c.Param("name"))
	})
}

// ---- objections ----

// LeadObjections handles GET /api/objections?leadId=
func (h *CRMHandler) LeadObjections(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Objections.ListByLead(c.Request.Context(), GetIdentity(c), c.Query("leadId"))
	})
}

// ObjectionStats handles GET /api/objections/stats
func (h *CRMHandler) ObjectionStats(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Objections.Stats(c.Request.Context(), GetIdentity(c))
	})
}

// AddObjection handles POST /api/objections
func (h *CRMHandler) AddObjection(c *gin.Context) {
	var req services.ObjectionInput
	HandleCreateEnvelope(c, "Objeção registrada", &req, func() (interface{}, error) {
		return h.svcMgr.Objections.Add(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateObjection handles PATCH /api/objections/:id
func (h *CRMHandler) UpdateObjection(c *gin.Context) {
	var req services.ObjectionInput
	HandleUpdateEnvelope(c, "Objeção atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Objections.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// DeleteObjection handles DELETE /api/objections/:id
func (h *CRMHandler) DeleteObjection(c *gin.Context) {
	HandleDeleteEnvelope(c, "Objeção removida", func() error {
		return h.svcMgr.Objections.Delete(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// ---- referrals ----

// CashbackConfig handles GET /api/referrals/config
func (h *CRMHandler) CashbackConfig(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Referrals.Config(c.Request.Context(), GetIdentity(c))
	})
}

// SetCashbackConfig handles PUT /api/referrals/config
func (h *CRMHandler) SetCashbackConfig(c *gin.Context) {
	var req models.CashbackConfig
	HandleUpdateEnvelope(c, "Configuração de cashback salva", &req, func() (interface{}, error) {
		return req, h.svcMgr.Referrals.SetConfig(c.Request.Context(), GetIdentity(c), req)
	})
}

// ReferralStats handles GET /api/referrals/stats
func (h *CRMHandler) ReferralStats(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Referrals.Stats(c.Request.Context(), GetIdentity(c))
	})
}

// LeadReferrals handles GET /api/referrals/leads/:id
func (h *CRMHandler) LeadReferrals(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Referrals.MyReferrals(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// ---- dashboard ----

// Dashboard handles GET /api/dashboard
func (h *CRMHandler) Dashboard(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Dashboard.Dashboard(c.Request.Context(), GetIdentity(c))
	})
}
