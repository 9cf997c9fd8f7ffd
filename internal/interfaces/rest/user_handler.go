package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/pkg/constants"
)

type UserHandler struct {
	svcMgr *services.ServiceManager
}

func NewUserHandler(svcMgr *services.ServiceManager) *UserHandler {
	return &UserHandler{svcMgr: svcMgr}
}

// UpdateProfileRequest represents a self profile update
type UpdateProfileRequest struct {
	Name   string  `json:"name" binding:"required,min=2,max=100"`
	Avatar *string `json:"avatar,omitempty"`
}

// UpdateRoleRequest represents a role change
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// GetMe handles GET /api/auth/me. The first call of a new identity creates its user.
func (h *UserHandler) GetMe(c *gin.Context) {
	HandleGetEnvelope(c, "user", func() (interface{}, error) {
		return h.svcMgr.Users.EnsureUser(c.Request.Context(), GetIdentity(c))
	})
}

// GetUsers handles GET /api/users
func (h *UserHandler) GetUsers(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Users.List(c.Request.Context(), GetIdentity(c))
	})
}

// GetCSUsers handles GET /api/users/cs
func (h *UserHandler) GetCSUsers(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Users.ListCSUsers(c.Request.Context(), GetIdentity(c))
	})
}

// GetVendors handles GET /api/users/vendors
func (h *UserHandler) GetVendors(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Users.ListVendors(c.Request.Context(), GetIdentity(c))
	})
}

// Search handles GET /api/users/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svcMgr.Users.Search(c.Request.Context(), GetIdentity(c), c.Query("q"), queryInt(c, "limit", 10))
	})
}

// UpdateProfile handles PATCH /api/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	HandleUpdateEnvelope(c, "Perfil atualizado", &req, func() (interface{}, error) {
		return h.svcMgr.Users.UpdateProfile(c.Request.Context(), GetIdentity(c), req.Name, req.Avatar)
	})
}

// Invite handles POST /api/users/invite
func (h *UserHandler) Invite(c *gin.Context) {
	var req services.InviteInput
	HandleCreateEnvelope(c, "Convite criado", &req, func() (interface{}, error) {
		return h.svcMgr.Users.Invite(c.Request.Context(), GetIdentity(c), req)
	})
}

// UpdateRole handles PATCH /api/users/:id/role
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req UpdateRoleRequest
	HandleUpdateEnvelope(c, "Função atualizada", &req, func() (interface{}, error) {
		return h.svcMgr.Users.UpdateRole(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID), req.Role)
	})
}

// Remove handles DELETE /api/users/:id
func (h *UserHandler) Remove(c *gin.Context) {
	HandleDeleteEnvelope(c, "Usuário removido", func() error {
		return h.svcMgr.Users.Remove(c.Request.Context(), GetIdentity(c), c.Param(constants.ParamID))
	})
}
