package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/pkg/constants"
)

type TagHandler struct {
	svcMgr *services.ServiceManager
}

func NewTagHandler(svcMgr *services.ServiceManager) *TagHandler {
	return &TagHandler{svcMgr: svcMgr}
}

// CreateTagRequest represents a new tag
type CreateTagRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Color string `json:"color"`
}

// List handles GET /api/tags (with ?q= it searches)
func (h *TagHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		if q, ok := c.GetQuery("q"); ok {
			return h.svcMgr.Tags.Search(c.Request.Context(), GetIdentity(c), q)
		}
		return h.svcMgr.Tags.List(c.Request.Context(), GetIdentity(c))
	})
}

// Create handles POST /api/tags
func (h *TagHandler) Create(c *gin.Context) {
	var req CreateTagRequest
	HandleCreateEnvelope(c, "Tag criada", &req, func() (interface{}, error) {
		return h.svcMgr.Tags.Create(c.Request.Context(), GetIdentity(c), req.Name, req.Color)
	})
}

// Delete handles DELETE /api/tags/:id
func (h *TagHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Tag removida", func() error {
		return h.svcMgr.Tags.Delete(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// LeadTags handles GET /api/leads/:id/tags
func (h *TagHandler) LeadTags(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Tags.LeadTags(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// AddToLead handles POST /api/leads/:id/tags/:tagId
func (h *TagHandler) AddToLead(c *gin.Context) {
	HandleUpdateEnvelope(c, "Tag adicionada", nil, func() (interface{}, error) {
		return nil, h.svcMgr.Tags.AddToLead(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), c.Param("tagId"))
	})
}

// RemoveFromLead handles DELETE /api/leads/:id/tags/:tagId
func (h *TagHandler) RemoveFromLead(c *gin.Context) {
	HandleDeleteEnvelope(c, "Tag removida do lead", func() error {
		return h.svcMgr.Tags.RemoveFromLead(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), c.Param("tagId"))
	})
}
