package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type CustomFieldHandler struct {
	svcMgr *services.ServiceManager
}

func NewCustomFieldHandler(svcMgr *services.ServiceManager) *CustomFieldHandler {
	return &CustomFieldHandler{svcMgr: svcMgr}
}

// SetValueRequest stores the value of a field for one entity
type SetValueRequest struct {
	FieldID  string      `json:"fieldId" binding:"required"`
	EntityID string      `json:"entityId" binding:"required"`
	Value    interface{} `json:"value"`
}

// List handles GET /api/custom-fields?entityType=lead
func (h *CustomFieldHandler) List(c *gin.Context) {
	includeInactive := false
	if v := queryBool(c, "includeInactive"); v != nil {
		includeInactive = *v
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.CustomFields.List(c.Request.Context(), GetIdentity(c), c.Query("entityType"), includeInactive)
	})
}

// Create handles POST /api/custom-fields
func (h *CustomFieldHandler) Create(c *gin.Context) {
	var req models.CustomFieldInput
	HandleCreateEnvelope(c, "Campo criado", &req, func() (interface{}, error) {
		return h.svcMgr.CustomFields.Create(c.Request.Context(), GetIdentity(c), req)
	})
}

// Update handles PATCH /api/custom-fields/:id
func (h *CustomFieldHandler) Update(c *gin.Context) {
	var req models.CustomFieldInput
	HandleUpdateEnvelope(c, "Campo atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.CustomFields.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// Delete handles DELETE /api/custom-fields/:id
func (h *CustomFieldHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Campo desativado", func() error {
		return h.svcMgr.CustomFields.Delete(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// SetValue handles PUT /api/custom-fields/values
func (h *CustomFieldHandler) SetValue(c *gin.Context) {
	var req SetValueRequest
	HandleUpdateEnvelope(c, "Valor salvo", &req, func() (interface{}, error) {
		return nil, h.svcMgr.CustomFields.SetValue(c.Request.Context(), GetIdentity(c), req.FieldID, req.EntityID, req.Value)
	})
}

// Values handles GET /api/custom-fields/values/:entityType/:entityId
func (h *CustomFieldHandler) Values(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.CustomFields.Values(c.Request.Context(), GetIdentity(c), c.Param("entityType"), c.Param("entityId"))
	})
}
