package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
)

type TaskHandler struct {
	svcMgr *services.ServiceManager
}

func NewTaskHandler(svcMgr *services.ServiceManager) *TaskHandler {
	return &TaskHandler{svcMgr: svcMgr}
}

// List handles GET /api/tasks
func (h *TaskHandler) List(c *gin.Context) {
	filter := models.TaskFilter{
		LeadID:     c.Query("leadId"),
		AssignedTo: c.Query("assignedTo"),
		Completed:  queryBool(c, "completed"),
		Limit:      queryInt(c, "limit", 50),
	}
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Tasks.List(c.Request.Context(), GetIdentity(c), filter)
	})
}

// Mine handles GET /api/tasks/mine
func (h *TaskHandler) Mine(c *gin.Context) {
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svcMgr.Tasks.MyTasks(c.Request.Context(), GetIdentity(c))
	})
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req models.TaskInput
	HandleCreateEnvelope(c, "Tarefa criada", &req, func() (interface{}, error) {
		return h.svcMgr.Tasks.Create(c.Request.Context(), GetIdentity(c), req)
	})
}

// Update handles PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var req models.TaskInput
	HandleUpdateEnvelope(c, "Tarefa atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Tasks.Update(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req)
	})
}

// Complete handles POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	HandleUpdateEnvelope(c, "Tarefa concluída", nil, func() (interface{}, error) {
		return h.svcMgr.Tasks.Complete(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}

// Delete handles DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Tarefa removida", func() error {
		return h.svcMgr.Tasks.Delete(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}
