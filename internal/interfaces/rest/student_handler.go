package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type StudentHandler struct {
	svcMgr *services.ServiceManager
}

func NewStudentHandler(svcMgr *services.ServiceManager) *StudentHandler {
	return &StudentHandler{svcMgr: svcMgr}
}

// List handles GET /api/students
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Status:     models.StudentStatus(c.Query("status")),
		ChurnRisk:  models.ChurnRisk(c.Query("churnRisk")),
		Product:    c.Query("product"),
		Search:     c.Query("search"),
		AssignedCS: c.Query("assignedCS"),
		Limit:      queryInt(c, "limit", 50),
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Students.List(c.Request.Context(), GetIdentity(c), filter)
	})
}

// Get handles GET /api/students/:id
func (h *StudentHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Students.Get(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// Create handles POST /api/students
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.StudentInput
	HandleCreateEnvelope(c, "Aluno criado com sucesso", &req, func() (interface{}, error) {
		return h.svcMgr.Students.Create(c.Request.Context(), GetIdentity(c), req)
	})
}

// Update handles PATCH /api/students/:id
func (h *StudentHandler) Update(c *gin.Context) {
	var req models.StudentInput
	HandleUpdateEnvelope(c, "Aluno atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.Students.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// ChurnAlerts handles GET /api/students/churn-alerts
func (h *StudentHandler) ChurnAlerts(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Students.ChurnAlerts(c.Request.Context(), GetIdentity(c))
	})
}

// SyncAsaasCustomer handles POST /api/students/:id/asaas-customer
func (h *StudentHandler) SyncAsaasCustomer(c *gin.Context) {
	HandleUpdateEnvelope(c, "Cliente Asaas sincronizado", nil, func() (interface{}, error) {
		return h.svcMgr.Students.SyncAsaasCustomer(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// Enrollments handles GET /api/students/:id/enrollments
func (h *StudentHandler) Enrollments(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Enrollments.ListByStudent(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// CreateEnrollment handles POST /api/enrollments
func (h *StudentHandler) CreateEnrollment(c *gin.Context) {
	var req models.EnrollmentInput
	HandleCreateEnvelope(c, "Matrícula criada", &req, func() (interface{}, error) {
		return h.svcMgr.Enrollments.Create(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateEnrollment handles PATCH /api/enrollments/:id
func (h *StudentHandler) UpdateEnrollment(c *gin.Context) {
	var req models.EnrollmentInput
	HandleUpdateEnvelope(c, "Matrícula atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Enrollments.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// Payments handles GET /api/students/:id/payments
func (h *StudentHandler) Payments(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Payments.ListByStudent(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// PaymentSummary handles GET /api/payments/summary
func (h *StudentHandler) PaymentSummary(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Payments.Summary(c.Request.Context(), GetIdentity(c))
	})
}
