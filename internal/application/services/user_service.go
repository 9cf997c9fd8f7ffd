package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// pendingClerkPrefix marks invited users that have not signed in yet
const pendingClerkPrefix = "pending_"

// IdentityUser is a user record pushed by the identity provider
type IdentityUser struct {
	ClerkID        string
	Email          string
	Name           string
	Avatar         *string
	OrganizationID string
	Role           string
}

// InviteInput carries an invitation
type InviteInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// UserService administers team members
type UserService struct {
	users       ports.UserRepository
	activities  ports.ActivityRepository
	permissions *PermissionService
	auditor     Auditor
	defaultOrg  string
}

// NewUserService creates a new UserService
func NewUserService(repos Repositories, permissions *PermissionService, auditor Auditor, infra Infrastructure) *UserService {
	return &UserService{
		users:       repos.Users,
		activities:  repos.Activities,
		permissions: permissions,
		auditor:     auditor,
		defaultOrg:  infra.DefaultOrganizationID,
	}
}

// Current returns the caller's user row, or nil before the first login
func (s *UserService) Current(ctx context.Context, identity auth.Identity) (*models.User, error) {
	return s.users.GetByClerkID(ctx, identity.Subject)
}

// EnsureUser returns the caller's user, creating it on first login with role sdr
func (s *UserService) EnsureUser(ctx context.Context, identity auth.Identity) (*models.User, error) {
	user, err := s.users.GetByClerkID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	now := nowFunc()
	if user != nil {
		user.LastLoginAt = &now
		user.UpdatedAt = now
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}

	orgID := identity.OrganizationID()
	if identity.Email != "" {
		invited, err := s.users.FindByEmail(ctx, orgID, identity.Email)
		if err != nil {
			return nil, err
		}
		if invited != nil && strings.HasPrefix(invited.ClerkID, pendingClerkPrefix) {
			invited.ClerkID = identity.Subject
			invited.IsActive = true
			invited.LastLoginAt = &now
			invited.UpdatedAt = now
			if identity.Name != "" {
				invited.Name = identity.Name
			}
			if err := s.users.Update(ctx, invited); err != nil {
				return nil, err
			}
			s.permissions.InvalidateRole(ctx, identity.Subject)
			return invited, nil
		}
	}

	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name = identity.Email
	}
	user = &models.User{
		ID:             utils.GenerateID(),
		ClerkID:        identity.Subject,
		OrganizationID: orgID,
		Name:           name,
		Email:          strings.ToLower(identity.Email),
		Role:           auth.RoleSDR,
		IsActive:       true,
		LastLoginAt:    &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logActivity(ctx, orgID, user.ID, constants.ActivityUserCreated, fmt.Sprintf("Usuário %s criado", user.Name))
	s.permissions.InvalidateRole(ctx, identity.Subject)
	log.Printf("👤 User %s created on first login", user.ID)
	return user, nil
}

// List returns every member of the organization
func (s *UserService) List(ctx context.Context, identity auth.Identity) ([]models.User, error) {
	return s.users.List(ctx, identity.OrganizationID())
}

// ListCSUsers returns the active customer success members
func (s *UserService) ListCSUsers(ctx context.Context, identity auth.Identity) ([]models.UserSummary, error) {
	return s.summaries(ctx, identity.OrganizationID(), auth.RoleCS)
}

// ListVendors returns the active sales members
func (s *UserService) ListVendors(ctx context.Context, identity auth.Identity) ([]models.UserSummary, error) {
	return s.summaries(ctx, identity.OrganizationID(), auth.RoleSDR)
}

func (s *UserService) summaries(ctx context.Context, orgID, role string) ([]models.UserSummary, error) {
	users, err := s.users.ListActiveByRole(ctx, orgID, role)
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// Search matches members by name or e-mail
func (s *UserService) Search(ctx context.Context, identity auth.Identity, query string, limit int) ([]models.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.UserSummary{}, nil
	}
	users, err := s.users.Search(ctx, identity.OrganizationID(), query, utils.ClampLimit(limit, 10, 50))
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.Summary())
	}
	return out, nil
}

// UpdateProfile changes the caller's own name and avatar
func (s *UserService) UpdateProfile(ctx context.Context, identity auth.Identity, name string, avatar *string) (*models.User, error) {
	user, err := s.current(ctx, identity)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		if n := len([]rune(name)); n < 2 || n > 100 {
			return nil, apperrors.NewValidationError("name", "Nome deve ter entre 2 e 100 caracteres")
		}
		user.Name = name
	}
	if avatar != nil {
		user.Avatar = utils.NonEmptyPtr(strings.TrimSpace(*avatar))
	}
	user.UpdatedAt = nowFunc()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Invite registers an inactive member that becomes active on first sign in
func (s *UserService) Invite(ctx context.Context, identity auth.Identity, input InviteInput) (*models.User, error) {
	if err := s.permissions.Require(ctx, identity, auth.PermTeamManage); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !validator.IsValidEmail(email) {
		return nil, apperrors.NewValidationError("email", "Email inválido")
	}
	role := auth.NormalizeRole(input.Role)
	if role == "" {
		role = auth.RoleMember
	}
	if !auth.ValidRole(role) {
		return nil, apperrors.NewValidationError("role", "Papel inválido")
	}
	if err := s.checkGrant(ctx, identity, role); err != nil {
		return nil, err
	}

	orgID := identity.OrganizationID()
	existing, err := s.users.FindByEmail(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("Usuário", "Já existe um usuário com este email")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	inviter := s.actor(ctx, identity)
	now := nowFunc()
	user := &models.User{
		ID:             utils.GenerateID(),
		ClerkID:        pendingClerkPrefix + utils.GenerateID(),
		OrganizationID: orgID,
		Name:           name,
		Email:          email,
		Role:           role,
		IsActive:       false,
		InvitedBy:      utils.NonEmptyPtr(inviter),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logActivity(ctx, orgID, inviter, constants.ActivityUserCreated, fmt.Sprintf("Convite enviado para %s", email))
	return user, nil
}

// UpdateRole changes a member's role. Members cannot change their own role and
// only owners and admins may grant admin or owner.
func (s *UserService) UpdateRole(ctx context.Context, identity auth.Identity, userID, role string) (*models.User, error) {
	if err := s.permissions.Require(ctx, identity, auth.PermTeamManage); err != nil {
		return nil, err
	}
	role = auth.NormalizeRole(role)
	if !auth.ValidRole(role) {
		return nil, apperrors.NewValidationError("role", "Papel inválido")
	}
	user, err := s.get(ctx, identity.OrganizationID(), userID)
	if err != nil {
		return nil, err
	}
	if user.ClerkID == identity.Subject {
		return nil, apperrors.NewValidationError("role", "Você não pode alterar seu próprio papel")
	}
	if err := s.checkGrant(ctx, identity, role); err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	previous := user.Role
	user.Role = role
	user.UpdatedAt = nowFunc()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.permissions.InvalidateRole(ctx, user.ClerkID)
	s.logActivity(ctx, user.OrganizationID, s.actor(ctx, identity), constants.ActivityRoleChanged,
		fmt.Sprintf("Papel de %s alterado de %s para %s", user.Name, previous, role))
	recordAudit(ctx, s.auditor, identity, AuditInput{
		ActionType:   models.AuditSecurityEvent,
		DataCategory: models.CategoryAuditoria,
		Description:  fmt.Sprintf("Papel alterado: %s → %s", previous, role),
		LegalBasis:   LegalBasisLegal,
		Metadata:     map[string]interface{}{"userId": user.ID, "previousRole": previous, "newRole": role},
	})
	return user, nil
}

// Remove deactivates a member. Members cannot remove themselves.
func (s *UserService) Remove(ctx context.Context, identity auth.Identity, userID string) error {
	if err := s.permissions.Require(ctx, identity, auth.PermTeamManage); err != nil {
		return err
	}
	user, err := s.get(ctx, identity.OrganizationID(), userID)
	if err != nil {
		return err
	}
	if user.ClerkID == identity.Subject {
		return apperrors.NewValidationError("userId", "Você não pode remover a si mesmo")
	}
	if !user.IsActive {
		return nil
	}
	user.IsActive = false
	user.UpdatedAt = nowFunc()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.permissions.InvalidateRole(ctx, user.ClerkID)
	recordAudit(ctx, s.auditor, identity, AuditInput{
		ActionType:   models.AuditSecurityEvent,
		DataCategory: models.CategoryAuditoria,
		Description:  "Usuário removido da equipe",
		LegalBasis:   LegalBasisLegal,
		Metadata:     map[string]interface{}{"userId": user.ID},
	})
	return nil
}

// UpsertFromIdentityProvider mirrors a user created or updated in the identity provider
func (s *UserService) UpsertFromIdentityProvider(ctx context.Context, in IdentityUser) (*models.User, error) {
	if in.ClerkID == "" {
		return nil, apperrors.NewValidationError("id", "Usuário sem identificador")
	}
	orgID := in.OrganizationID
	if orgID == "" {
		orgID = s.defaultOrg
	}
	if orgID == "" {
		orgID = in.ClerkID
	}
	role := auth.NormalizeRole(in.Role)
	if !auth.ValidRole(role) {
		role = auth.RoleMember
	}
	now := nowFunc()

	user, err := s.users.GetByClerkID(ctx, in.ClerkID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = &models.User{
			ID:             utils.GenerateID(),
			ClerkID:        in.ClerkID,
			OrganizationID: orgID,
			Role:           role,
			IsActive:       true,
			CreatedAt:      now,
		}
		applyIdentityUser(user, in)
		user.UpdatedAt = now
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		s.logActivity(ctx, orgID, user.ID, constants.ActivityUserCreated, fmt.Sprintf("Usuário %s criado", user.Name))
		return user, nil
	}

	applyIdentityUser(user, in)
	if in.Role != "" && role != user.Role {
		user.Role = role
	}
	user.IsActive = true
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.permissions.InvalidateRole(ctx, user.ClerkID)
	return user, nil
}

// DeactivateFromIdentityProvider disables a user deleted in the identity provider
func (s *UserService) DeactivateFromIdentityProvider(ctx context.Context, clerkID string) error {
	user, err := s.users.GetByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return nil
	}
	user.IsActive = false
	user.UpdatedAt = nowFunc()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	s.permissions.InvalidateRole(ctx, clerkID)
	log.Printf("👤 User %s deactivated by identity provider", user.ID)
	return nil
}

func applyIdentityUser(user *models.User, in IdentityUser) {
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" {
		user.Email = email
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = name
	} else if user.Name == "" {
		user.Name = user.Email
	}
	if in.Avatar != nil {
		user.Avatar = utils.NonEmptyPtr(*in.Avatar)
	}
}

// checkGrant allows admin and owner roles to be granted by owners and admins only
func (s *UserService) checkGrant(ctx context.Context, identity auth.Identity, role string) error {
	if !auth.IsAdminRole(role) {
		return nil
	}
	return s.permissions.RequireOrgRole(ctx, identity, auth.RoleOwner, auth.RoleAdmin)
}

func (s *UserService) logActivity(ctx context.Context, orgID, userID, activityType, description string) {
	activity := newActivity(orgID, activityType, description)
	activity.UserID = utils.NonEmptyPtr(userID)
	if err := s.activities.Create(ctx, activity); err != nil {
		log.Printf("⚠️ Failed to log %s activity: %v", activityType, err)
	}
}

func (s *UserService) actor(ctx context.Context, identity auth.Identity) string {
	return actorUserID(ctx, s.users, identity)
}

func (s *UserService) current(ctx context.Context, identity auth.Identity) (*models.User, error) {
	user, err := s.users.GetByClerkID(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("Usuário", identity.Subject)
	}
	return user, nil
}

func (s *UserService) get(ctx context.Context, orgID, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFoundError("Usuário", id)
	}
	return user, nil
}
