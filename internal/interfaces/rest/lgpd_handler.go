package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type LGPDHandler struct {
	svcMgr *services.ServiceManager
}

func NewLGPDHandler(svcMgr *services.ServiceManager) *LGPDHandler {
	return &LGPDHandler{svcMgr: svcMgr}
}

// RejectRequest carries the rejection reason
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelRequest carries the identity proof of the data subject
type CancelRequest struct {
	IdentityProof string `json:"identityProof" binding:"required"`
}

// WithdrawRequest carries the withdrawal reason
type WithdrawRequest struct {
	Reason string `json:"reason"`
}

// AuditRequest records a manual audit entry
type AuditRequest struct {
	StudentID    *string                `json:"studentId,omitempty"`
	ActionType   models.AuditAction     `json:"actionType" binding:"required"`
	DataCategory string                 `json:"dataCategory" binding:"required"`
	Description  string                 `json:"description" binding:"required"`
	LegalBasis   string                 `json:"legalBasis"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ---- requests ----

// CreateRequest handles POST /api/lgpd/requests
func (h *LGPDHandler) CreateRequest(c *gin.Context) {
	var req models.LGPDRequestInput
	HandleCreateEnvelope(c, "Solicitação registrada", &req, func() (interface{}, error) {
		req.IPAddress = c.ClientIP()
		req.UserAgent = c.Request.UserAgent()
		return h.svcMgr.LGPD.CreateRequest(c.Request.Context(), GetIdentity(c), req)
	})
}

// ListRequests handles GET /api/lgpd/requests
func (h *LGPDHandler) ListRequests(c *gin.Context) {
	filter := models.LGPDRequestFilter{
		StudentID:   c.Query("studentId"),
		Status:      models.LGPDRequestStatus(c.Query("status")),
		RequestType: models.LGPDRequestType(c.Query("type")),
		Limit:       queryInt(c, "limit", 100),
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ListRequests(c.Request.Context(), GetIdentity(c), filter)
	})
}

// GetRequest handles GET /api/lgpd/requests/:id
func (h *LGPDHandler) GetRequest(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.GetRequest(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// ProcessRequest handles POST /api/lgpd/requests/:id/process
func (h *LGPDHandler) ProcessRequest(c *gin.Context) {
	HandleUpdateEnvelope(c, "Solicitação processada", nil, func() (interface{}, error) {
		return h.svcMgr.LGPD.ProcessRequest(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// RejectRequest handles POST /api/lgpd/requests/:id/reject
func (h *LGPDHandler) RejectRequest(c *gin.Context) {
	var req RejectRequest
	HandleUpdateEnvelope(c, "Solicitação rejeitada", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.RejectRequest(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Reason)
	})
}

// CancelRequest handles POST /api/lgpd/requests/:id/cancel
func (h *LGPDHandler) CancelRequest(c *gin.Context) {
	var req CancelRequest
	HandleUpdateEnvelope(c, "Solicitação cancelada", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.CancelRequest(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.IdentityProof)
	})
}

// ---- audit ----

// ListAudit handles GET /api/lgpd/audit
func (h *LGPDHandler) ListAudit(c *gin.Context) {
	filter := models.AuditFilter{
		StudentID:    c.Query("studentId"),
		ActorID:      c.Query("actorId"),
		ActionType:   models.AuditAction(c.Query("actionType")),
		DataCategory: c.Query("dataCategory"),
		Limit:        queryInt(c, "limit", 100),
	}
	if days := queryInt(c, "days", 0); days > 0 {
		since := time.Now().UTC().AddDate(0, 0, -days)
		filter.Since = &since
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ListAudit(c.Request.Context(), GetIdentity(c), filter)
	})
}

// LogAudit handles POST /api/lgpd/audit
func (h *LGPDHandler) LogAudit(c *gin.Context) {
	var req AuditRequest
	HandleCreateEnvelope(c, "Registro de auditoria criado", &req, func() (interface{}, error) {
		ip := c.ClientIP()
		ua := c.Request.UserAgent()
		identity := GetIdentity(c)
		return h.svcMgr.LGPD.LogAudit(c.Request.Context(), identity, services.AuditInput{
			StudentID:    req.StudentID,
			ActorID:      identity.Subject,
			ActionType:   req.ActionType,
			DataCategory: req.DataCategory,
			Description:  req.Description,
			LegalBasis:   req.LegalBasis,
			Metadata:     req.Metadata,
			IPAddress:    &ip,
			UserAgent:    &ua,
		})
	})
}

// ---- consents ----

// ListConsents handles GET /api/lgpd/students/:id/consents
func (h *LGPDHandler) ListConsents(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ListConsents(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// GrantConsent handles POST /api/lgpd/consents
func (h *LGPDHandler) GrantConsent(c *gin.Context) {
	var req models.ConsentInput
	HandleCreateEnvelope(c, "Consentimento registrado", &req, func() (interface{}, error) {
		req.IPAddress = c.ClientIP()
		return h.svcMgr.LGPD.GrantConsent(c.Request.Context(), GetIdentity(c), req)
	})
}

// WithdrawConsent handles POST /api/lgpd/consents/:id/withdraw
func (h *LGPDHandler) WithdrawConsent(c *gin.Context) {
	var req WithdrawRequest
	HandleUpdateEnvelope(c, "Consentimento revogado", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.WithdrawConsent(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Reason)
	})
}

// ProcessingBasis handles GET /api/lgpd/students/:id/basis?purpose=
func (h *LGPDHandler) ProcessingBasis(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		allowed, err := h.svcMgr.LGPD.CheckProcessingBasis(c.Request.Context(), GetIdentity(c).OrganizationID(), c.Param(constants.ParamID), c.Query("purpose"))
		if err != nil {
			return nil, err
		}
		return gin.H{"allowed": allowed}, nil
	})
}

// ---- retention ----

// ListRetentionPolicies handles GET /api/lgpd/retention-policies
func (h *LGPDHandler) ListRetentionPolicies(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ListRetentionPolicies(c.Request.Context(), GetIdentity(c))
	})
}

// UpsertRetentionPolicy handles PUT /api/lgpd/retention-policies
func (h *LGPDHandler) UpsertRetentionPolicy(c *gin.Context) {
	var req services.RetentionPolicyInput
	HandleUpdateEnvelope(c, "Política de retenção salva", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.UpsertRetentionPolicy(c.Request.Context(), GetIdentity(c), req)
	})
}

// DeleteRetentionPolicy handles DELETE /api/lgpd/retention-policies/:id
func (h *LGPDHandler) DeleteRetentionPolicy(c *gin.Context) {
	HandleDeleteEnvelope(c, "Política de retenção removida", func() error {
		return h.svcMgr.LGPD.DeleteRetentionPolicy(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// ---- breaches ----

// ListBreaches handles GET /api/lgpd/breaches
func (h *LGPDHandler) ListBreaches(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ListBreaches(c.Request.Context(), GetIdentity(c))
	})
}

// RegisterBreach handles POST /api/lgpd/breaches
func (h *LGPDHandler) RegisterBreach(c *gin.Context) {
	var req models.DataBreachInput
	HandleCreateEnvelope(c, "Incidente registrado", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.RegisterBreach(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateBreach handles PATCH /api/lgpd/breaches/:id
func (h *LGPDHandler) UpdateBreach(c *gin.Context) {
	var req models.DataBreachInput
	HandleUpdateEnvelope(c, "Incidente atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.LGPD.UpdateBreach(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// ComplianceReport handles GET /api/lgpd/report?days=30
func (h *LGPDHandler) ComplianceReport(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.LGPD.ComplianceReport(c.Request.Context(), GetIdentity(c), queryInt(c, "days", 30))
	})
}
