package auth

import "strings"

// Permission is a resource:action capability string
type Permission string

const (
	PermAll                 Permission = "all"
	PermLeadsRead           Permission = "leads:read"
	PermLeadsWrite          Permission = "leads:write"
	PermMarketingLeadsRead  Permission = "marketing_leads:read"
	PermMarketingLeadsWrite Permission = "marketing_leads:write"
	PermConversationsRead   Permission = "conversations:read"
	PermConversationsWrite  Permission = "conversations:write"
	PermStudentsRead        Permission = "students:read"
	PermStudentsWrite       Permission = "students:write"
	PermTicketsRead         Permission = "tickets:read"
	PermTicketsWrite        Permission = "tickets:write"
	PermReportsRead         Permission = "reports:read"
	PermSettingsWrite       Permission = "settings:write"
	PermDashboardRead       Permission = "dashboard:read"
	PermTeamManage          Permission = "team:manage"
	PermTeamRead            Permission = "team:read"
	PermManageSettings      Permission = "manage:settings"
	PermManageContent       Permission = "manage:content"
	PermViewContent         Permission = "view:content"
)

// Team roles stored on the users table
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
	RoleSDR     = "sdr"
	RoleCS      = "cs"
	RoleSupport = "support"

	// OrgAdminRole is the identity-provider organization admin role claim
	OrgAdminRole = "org:admin"
)

// RolePermissions maps each team role to the permissions it grants
var RolePermissions = map[string][]Permission{
	RoleOwner:   {PermAll},
	RoleAdmin:   {PermAll, PermManageSettings, PermTeamManage},
	RoleManager: {PermStudentsRead, PermConversationsRead, PermReportsRead, PermTeamRead, PermManageContent},
	RoleMember:  {PermConversationsRead, PermStudentsRead, PermViewContent},
	RoleSDR: {
		PermLeadsRead, PermLeadsWrite, PermMarketingLeadsRead, PermMarketingLeadsWrite,
		PermStudentsRead, PermConversationsRead, PermConversationsWrite,
	},
	RoleCS: {
		PermStudentsRead, PermStudentsWrite, PermConversationsRead, PermConversationsWrite, PermReportsRead,
	},
	RoleSupport: {
		PermConversationsRead, PermConversationsWrite, PermTicketsRead, PermTicketsWrite, PermStudentsRead,
	},
}

// ValidRole reports whether role is a known team role
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}

// RoleHasPermission checks the static role table. "all" grants everything.
func RoleHasPermission(role string, perm Permission) bool {
	for _, p := range RolePermissions[NormalizeRole(role)] {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// ClaimsGrant resolves a permission from the token alone. A false result is
// not a denial: the caller must fall back to the stored user role.
func ClaimsGrant(identity Identity, perm Permission) bool {
	if identity.OrgRole == OrgAdminRole {
		return true
	}
	for _, p := range identity.OrgPermissions {
		if Permission(p) == perm || Permission(p) == PermAll {
			return true
		}
	}
	return false
}

// NormalizeRole strips the identity-provider "org:" prefix
func NormalizeRole(role string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(role)), "org:")
}

// IsAdminRole reports whether the role administers the organization
func IsAdminRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleAdmin, RoleOwner:
		return true
	}
	return false
}
