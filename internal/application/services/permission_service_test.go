package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/infrastructure/cache"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestPermissionService_OrgAdminClaim(t *testing.T) {
	users := new(mockUserRepository)
	ps := NewPermissionService(users, nil)

	identity := auth.Identity{Subject: "user_1", OrgRole: auth.OrgAdminRole}
	assert.True(t, ps.HasPermission(context.Background(), identity, auth.PermTeamManage))
	users.AssertNotCalled(t, "GetByClerkID", mock.Anything, mock.Anything)
}

func TestPermissionService_PermissionClaim(t *testing.T) {
	users := new(mockUserRepository)
	ps := NewPermissionService(users, nil)

	identity := auth.Identity{Subject: "user_1", OrgPermissions: []string{string(auth.PermLeadsRead)}}
	assert.True(t, ps.HasPermission(context.Background(), identity, auth.PermLeadsRead))
}

func TestPermissionService_StoredRole(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepository)
	users.On("GetByClerkID", ctx, "user_sdr").Return(&models.User{ID: "u1", Role: "org:sdr", IsActive: true}, nil).Once()

	ps := NewPermissionService(users, cache.NewMemoryCache())
	identity := auth.Identity{Subject: "user_sdr"}

	assert.True(t, ps.HasPermission(ctx, identity, auth.PermLeadsWrite))
	assert.False(t, ps.HasPermission(ctx, identity, auth.PermTeamManage), "served from the cache")

	err := ps.Require(ctx, identity, auth.PermSettingsWrite)
	var permErr *apperrors.PermissionError
	require.ErrorAs(t, err, &permErr)

	users.AssertExpectations(t)
}

func TestPermissionService_InactiveUser(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepository)
	users.On("GetByClerkID", ctx, "user_off").Return(&models.User{Role: auth.RoleAdmin, IsActive: false}, nil).Once()

	ps := NewPermissionService(users, cache.NewMemoryCache())

	role, err := ps.UserRole(ctx, "user_off")
	require.NoError(t, err)
	assert.Empty(t, role)

	// absence is cached too
	role, err = ps.UserRole(ctx, "user_off")
	require.NoError(t, err)
	assert.Empty(t, role)
	users.AssertExpectations(t)
}

func TestPermissionService_InvalidateRole(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepository)
	users.On("GetByClerkID", ctx, "user_1").Return(&models.User{Role: auth.RoleMember, IsActive: true}, nil).Once()
	users.On("GetByClerkID", ctx, "user_1").Return(&models.User{Role: auth.RoleManager, IsActive: true}, nil).Once()

	ps := NewPermissionService(users, cache.NewMemoryCache())

	role, _ := ps.UserRole(ctx, "user_1")
	assert.Equal(t, auth.RoleMember, role)

	ps.InvalidateRole(ctx, "user_1")

	role, _ = ps.UserRole(ctx, "user_1")
	assert.Equal(t, auth.RoleManager, role)
	users.AssertExpectations(t)
}

func TestPermissionService_RepositoryError(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepository)
	users.On("GetByClerkID", ctx, "user_1").Return(nil, errors.New("connection refused"))

	ps := NewPermissionService(users, nil)
	assert.False(t, ps.HasPermission(ctx, auth.Identity{Subject: "user_1"}, auth.PermStudentsRead))
}

func TestPermissionService_OrgRoles(t *testing.T) {
	ctx := context.Background()
	users := new(mockUserRepository)
	users.On("GetByClerkID", ctx, "user_cs").Return(&models.User{Role: auth.RoleCS, IsActive: true}, nil)

	ps := NewPermissionService(users, nil)

	assert.True(t, ps.IsOrgAdmin(ctx, auth.Identity{Subject: "user_x", OrgRole: "org:admin"}))
	assert.True(t, ps.HasOrgRole(ctx, auth.Identity{Subject: "user_cs"}, auth.RoleCS, auth.RoleSupport))
	assert.False(t, ps.IsOrgAdmin(ctx, auth.Identity{Subject: "user_cs"}))
	assert.Error(t, ps.RequireOrgRole(ctx, auth.Identity{Subject: "user_cs"}, auth.RoleOwner))
}
