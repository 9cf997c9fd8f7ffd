package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
)

// RoleCacheTTL is how long a stored role is served from the cache
const RoleCacheTTL = 5 * time.Minute

// roleNone marks a subject without an active user row in the cache
const roleNone = "-"

// PermissionService resolves permissions of an authenticated identity.
//
// Evaluation order:
//  1. org:admin organization role grants everything
//  2. org_permissions claim containing the permission or "all"
//  3. role of the stored user (by subject) from the static role table
type PermissionService struct {
	users ports.UserRepository
	cache ports.Cache
}

// NewPermissionService creates a new PermissionService. cache may be nil.
func NewPermissionService(users ports.UserRepository, cache ports.Cache) *PermissionService {
	return &PermissionService{users: users, cache: cache}
}

// HasPermission reports whether identity holds perm
func (ps *PermissionService) HasPermission(ctx context.Context, identity auth.Identity, perm auth.Permission) bool {
	if auth.ClaimsGrant(identity, perm) {
		return true
	}
	role, err := ps.UserRole(ctx, identity.Subject)
	if err != nil {
		log.Printf("⚠️ PermissionService: failed to load role for %s: %v", identity.Subject, err)
		return false
	}
	return role != "" && auth.RoleHasPermission(role, perm)
}

// Require returns a PermissionError unless identity holds perm
func (ps *PermissionService) Require(ctx context.Context, identity auth.Identity, perm auth.Permission) error {
	if ps.HasPermission(ctx, identity, perm) {
		return nil
	}
	return apperrors.NewPermissionError(string(perm))
}

// HasOrgRole reports whether the organization role claim or the stored role is one of roles
func (ps *PermissionService) HasOrgRole(ctx context.Context, identity auth.Identity, roles ...string) bool {
	claimRole := auth.NormalizeRole(identity.OrgRole)
	for _, r := range roles {
		if claimRole != "" && claimRole == auth.NormalizeRole(r) {
			return true
		}
	}
	stored, err := ps.UserRole(ctx, identity.Subject)
	if err != nil || stored == "" {
		return false
	}
	for _, r := range roles {
		if auth.NormalizeRole(r) == stored {
			return true
		}
	}
	return false
}

// RequireOrgRole returns a PermissionError listing roles unless identity has one of them
func (ps *PermissionService) RequireOrgRole(ctx context.Context, identity auth.Identity, roles ...string) error {
	if ps.HasOrgRole(ctx, identity, roles...) {
		return nil
	}
	return apperrors.NewRoleError(roles...)
}

// IsOrgAdmin reports whether identity administers its organization
func (ps *PermissionService) IsOrgAdmin(ctx context.Context, identity auth.Identity) bool {
	return ps.HasOrgRole(ctx, identity, auth.RoleAdmin, auth.RoleOwner)
}

// UserRole returns the role of the active user with the given subject, or ""
// when there is none. Cache failures fall back to the database.
func (ps *PermissionService) UserRole(ctx context.Context, subject string) (string, error) {
	if subject == "" {
		return "", nil
	}
	key := roleCacheKey(subject)
	if ps.cache != nil {
		cached, err := ps.cache.Get(ctx, key)
		switch {
		case err == nil:
			if cached == roleNone {
				return "", nil
			}
			return cached, nil
		case !errors.Is(err, ports.ErrCacheMiss):
			log.Printf("⚠️ Role cache read failed: %v", err)
		}
	}

	user, err := ps.users.GetByClerkID(ctx, subject)
	if err != nil {
		return "", err
	}
	role := ""
	if user != nil && user.IsActive {
		role = auth.NormalizeRole(user.Role)
	}

	if ps.cache != nil {
		value := role
		if value == "" {
			value = roleNone
		}
		if err := ps.cache.Set(ctx, key, value, RoleCacheTTL); err != nil {
			log.Printf("⚠️ Role cache write failed: %v", err)
		}
	}
	return role, nil
}

// InvalidateRole drops the cached role of subject
func (ps *PermissionService) InvalidateRole(ctx context.Context, subject string) {
	if ps.cache == nil || subject == "" {
		return
	}
	if _, err := ps.cache.Del(ctx, roleCacheKey(subject)); err != nil {
		log.Printf("⚠️ Role cache invalidation failed: %v", err)
	}
}

func roleCacheKey(subject string) string {
	return "user_role:" + subject
}
