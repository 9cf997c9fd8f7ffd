package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
)

// LeadService defines the lead operations used by the HTTP layer
type LeadService interface {
	Create(ctx context.Context, identity auth.Identity, input models.LeadInput) (string, error)
	CreatePublic(ctx context.Context, input models.LeadInput, clientIP string) (string, error)
	List(ctx context.Context, identity auth.Identity, filter models.LeadFilter) (*models.LeadPage, error)
	Get(ctx context.Context, identity auth.Identity, id string) (*models.Lead, error)
	Recent(ctx context.Context, identity auth.Identity, limit int) ([]models.Lead, error)
	Search(ctx context.Context, identity auth.Identity, query string, limit int) ([]models.Lead, error)
	UpdateStage(ctx context.Context, identity auth.Identity, id string, stage models.LeadStage, lostReason *string) (*models.Lead, error)
	Update(ctx context.Context, identity auth.Identity, id string, input models.LeadInput) (*models.Lead, error)
	Delete(ctx context.Context, identity auth.Identity, id string) error
	Deduplicate(ctx context.Context, identity auth.Identity, dryRun bool) (*models.DeduplicationReport, error)
	Import(ctx context.Context, identity auth.Identity, rows []models.LeadInput) []models.ImportRowResult
}

// LeadHandler serves the sales pipeline endpoints
type LeadHandler struct {
	svc LeadService
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(svc LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

// StageRequest moves a lead through the pipeline
type StageRequest struct {
	Stage      models.LeadStage `json:"stage" binding:"required"`
	LostReason *string          `json:"lostReason,omitempty"`
}

// ImportRequest carries rows of a bulk import
type ImportRequest struct {
	Rows []models.LeadInput `json:"rows" binding:"required,min=1,max=1000"`
}

// List handles GET /api/leads
func (h *LeadHandler) List(c *gin.Context) {
	filter := models.LeadFilter{
		Products:   queryList(c, "products"),
		Source:     c.Query("source"),
		Search:     c.Query("search"),
		Tags:       queryList(c, "tags"),
		AssignedTo: c.Query("assignedTo"),
		Cursor:     c.Query("cursor"),
		Limit:      queryInt(c, "limit", constants.DefaultLimit),
	}
	for _, s := range queryList(c, "stages") {
		filter.Stages = append(filter.Stages, models.LeadStage(s))
	}
	for _, t := range queryList(c, "temperature") {
		filter.Temperatures = append(filter.Temperatures, models.Temperature(t))
	}

	page, err := h.svc.List(c.Request.Context(), GetIdentity(c), filter)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Recent handles GET /api/leads/recent
func (h *LeadHandler) Recent(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.Recent(c.Request.Context(), GetIdentity(c), queryInt(c, "limit", 10))
	})
}

// Search handles GET /api/leads/search?q=
func (h *LeadHandler) Search(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.Search(c.Request.Context(), GetIdentity(c), c.Query("q"), queryInt(c, "limit", 10))
	})
}

// Get handles GET /api/leads/:id
func (h *LeadHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), GetIdentity(c), c.Param("id"))
	})
}

// Create handles POST /api/leads
func (h *LeadHandler) Create(c *gin.Context) {
	var req models.LeadInput
	HandleCreateEnvelope(c, "Lead criado com sucesso", &req, func() (interface{}, error) {
		id, err := h.svc.Create(c.Request.Context(), GetIdentity(c), req)
		if err != nil {
			return nil, err
		}
		return gin.H{"id": id}, nil
	})
}

// CreatePublic handles POST /public/leads
func (h *LeadHandler) CreatePublic(c *gin.Context) {
	var req models.LeadInput
	HandleCreateEnvelope(c, "Lead recebido", &req, func() (interface{}, error) {
		id, err := h.svc.CreatePublic(c.Request.Context(), req, c.ClientIP())
		if err != nil {
			return nil, err
		}
		return gin.H{"id": id}, nil
	})
}

// Update handles PATCH /api/leads/:id
func (h *LeadHandler) Update(c *gin.Context) {
	var req models.LeadInput
	HandleUpdateEnvelope(c, "Lead atualizado", &req, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), GetIdentity(c), c.Param("id"), req)
	})
}

// UpdateStage handles PATCH /api/leads/:id/stage
func (h *LeadHandler) UpdateStage(c *gin.Context) {
	var req StageRequest
	HandleUpdateEnvelope(c, "Etapa atualizada", &req, func() (interface{}, error) {
		return h.svc.UpdateStage(c.Request.Context(), GetIdentity(c), c.Param("id"), req.Stage, req.LostReason)
	})
}

// Delete handles DELETE /api/leads/:id
func (h *LeadHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Lead removido", func() error {
		return h.svc.Delete(c.Request.Context(), GetIdentity(c), c.Param("id"))
	})
}

// Deduplicate handles POST /api/leads/deduplicate?dryRun=true
func (h *LeadHandler) Deduplicate(c *gin.Context) {
	dryRun := true
	if v := queryBool(c, "dryRun"); v != nil {
		dryRun = *v
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.Deduplicate(c.Request.Context(), GetIdentity(c), dryRun)
	})
}

// Import handles POST /api/leads/import
func (h *LeadHandler) Import(c *gin.Context) {
	var req ImportRequest
	if !BindJSON(c, &req) {
		return
	}
	results := h.svc.Import(c.Request.Context(), GetIdentity(c), req.Rows)
	c.JSON(http.StatusOK, gin.H{constants.ResponseData: results})
}
