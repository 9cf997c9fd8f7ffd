package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// DefaultTagColor is used when a tag is created without a color
const DefaultTagColor = "#6b7280"

// TagService labels leads
type TagService struct {
	tags  ports.TagRepository
	leads ports.LeadRepository
	users ports.UserRepository
}

// NewTagService creates a new TagService
func NewTagService(repos Repositories) *TagService {
	return &TagService{tags: repos.Tags, leads: repos.Leads, users: repos.Users}
}

// List returns the tags of the organization
func (s *TagService) List(ctx context.Context, identity auth.Identity) ([]models.Tag, error) {
	return s.tags.List(ctx, identity.OrganizationID())
}

// Search matches tag names case-insensitively
func (s *TagService) Search(ctx context.Context, identity auth.Identity, query string) ([]models.Tag, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Tag{}, nil
	}
	return s.tags.Search(ctx, identity.OrganizationID(), strings.TrimSpace(query))
}

// Create adds a tag. Names are unique per organization.
func (s *TagService) Create(ctx context.Context, identity auth.Identity, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "Nome da tag é obrigatório")
	}
	orgID := identity.OrganizationID()
	existing, err := s.tags.FindByName(ctx, orgID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.NewConflictError("tag", fmt.Sprintf("A tag \"%s\" já existe nesta organização.", name))
	}
	if color == "" {
		color = DefaultTagColor
	}

	tag := &models.Tag{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		Name:           name,
		Color:          color,
		CreatedBy:      actorUserID(ctx, s.users, identity),
		CreatedAt:      nowFunc(),
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}
	return tag, nil
}

// Delete removes a tag and its lead links
func (s *TagService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	orgID := identity.OrganizationID()
	if _, err := s.getTag(ctx, orgID, id); err != nil {
		return err
	}
	return s.tags.Delete(ctx, orgID, id)
}

// AddToLead links a tag to a lead. Linking twice is a no-op.
func (s *TagService) AddToLead(ctx context.Context, identity auth.Identity, leadID, tagID string) error {
	orgID := identity.OrganizationID()
	if err := s.checkLead(ctx, orgID, leadID); err != nil {
		return err
	}
	if _, err := s.getTag(ctx, orgID, tagID); err != nil {
		return err
	}
	return s.tags.AddToLead(ctx, orgID, leadID, tagID)
}

// RemoveFromLead unlinks a tag from a lead
func (s *TagService) RemoveFromLead(ctx context.Context, identity auth.Identity, leadID, tagID string) error {
	orgID := identity.OrganizationID()
	if err := s.checkLead(ctx, orgID, leadID); err != nil {
		return err
	}
	return s.tags.RemoveFromLead(ctx, orgID, leadID, tagID)
}

// LeadTags lists the tags of a lead
func (s *TagService) LeadTags(ctx context.Context, identity auth.Identity, leadID string) ([]models.Tag, error) {
	orgID := identity.OrganizationID()
	if err := s.checkLead(ctx, orgID, leadID); err != nil {
		return nil, err
	}
	return s.tags.ListByLead(ctx, orgID, leadID)
}

func (s *TagService) getTag(ctx context.Context, orgID, id string) (*models.Tag, error) {
	tag, err := s.tags.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, apperrors.NewNotFoundError("Tag", id)
	}
	return tag, nil
}

func (s *TagService) checkLead(ctx context.Context, orgID, leadID string) error {
	lead, err := s.leads.GetByID(ctx, orgID, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return apperrors.NewNotFoundError("Lead", leadID)
	}
	return nil
}
