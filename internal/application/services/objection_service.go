package services

import (
	"context"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// ObjectionInput carries create/update fields
type ObjectionInput struct {
	LeadID      string  `json:"leadId"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Resolved    *bool   `json:"resolved,omitempty"`
	Resolution  *string `json:"resolution,omitempty"`
}

// ObjectionService records sales objections
type ObjectionService struct {
	objections ports.ObjectionRepository
	leads      ports.LeadRepository
	users      ports.UserRepository
}

// NewObjectionService creates a new ObjectionService
func NewObjectionService(repos Repositories) *ObjectionService {
	return &ObjectionService{objections: repos.Objections, leads: repos.Leads, users: repos.Users}
}

// ListByLead returns the objections of a lead
func (s *ObjectionService) ListByLead(ctx context.Context, identity auth.Identity, leadID string) ([]models.Objection, error) {
	orgID := identity.OrganizationID()
	if err := s.checkLead(ctx, orgID, leadID); err != nil {
		return nil, err
	}
	return s.objections.ListByLead(ctx, orgID, leadID)
}

// Stats counts objections by category and resolution
func (s *ObjectionService) Stats(ctx context.Context, identity auth.Identity) (*models.ObjectionStats, error) {
	all, err := s.objections.ListByOrganization(ctx, identity.OrganizationID())
	if err != nil {
		return nil, err
	}
	stats := &models.ObjectionStats{ByCategory: map[string]int{}}
	for _, o := range all {
		stats.Total++
		if o.Resolved {
			stats.Resolved++
		} else {
			stats.Unresolved++
		}
		stats.ByCategory[o.Category]++
	}
	return stats, nil
}

// Add records an objection raised by a lead
func (s *ObjectionService) Add(ctx context.Context, identity auth.Identity, input ObjectionInput) (*models.Objection, error) {
	orgID := identity.OrganizationID()
	if strings.TrimSpace(input.Category) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.Invalid("Categoria e descrição são obrigatórias")
	}
	if err := s.checkLead(ctx, orgID, input.LeadID); err != nil {
		return nil, err
	}
	objection := &models.Objection{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		LeadID:         input.LeadID,
		Category:       strings.TrimSpace(input.Category),
		Description:    strings.TrimSpace(input.Description),
		RecordedBy:     actorUserID(ctx, s.users, identity),
		RecordedAt:     nowFunc(),
	}
	if err := s.objections.Create(ctx, objection); err != nil {
		return nil, err
	}
	return objection, nil
}

// Update edits an objection. Marking it resolved stamps the resolution time.
func (s *ObjectionService) Update(ctx context.Context, identity auth.Identity, id string, input ObjectionInput) (*models.Objection, error) {
	objection, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if c := strings.TrimSpace(input.Category); c != "" {
		objection.Category = c
	}
	if d := strings.TrimSpace(input.Description); d != "" {
		objection.Description = d
	}
	if input.Resolution != nil {
		objection.Resolution = input.Resolution
	}
	if input.Resolved != nil && *input.Resolved != objection.Resolved {
		objection.Resolved = *input.Resolved
		if objection.Resolved {
			objection.ResolvedAt = utils.TimePtr(nowFunc())
		} else {
			objection.ResolvedAt = nil
		}
	}
	if err := s.objections.Update(ctx, objection); err != nil {
		return nil, err
	}
	return objection, nil
}

// Delete removes an objection
func (s *ObjectionService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	orgID := identity.OrganizationID()
	if _, err := s.get(ctx, orgID, id); err != nil {
		return err
	}
	return s.objections.Delete(ctx, orgID, id)
}

func (s *ObjectionService) get(ctx context.Context, orgID, id string) (*models.Objection, error) {
	objection, err := s.objections.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if objection == nil {
		return nil, apperrors.NewNotFoundError("Objeção", id)
	}
	return objection, nil
}

func (s *ObjectionService) checkLead(ctx context.Context, orgID, leadID string) error {
	lead, err := s.leads.GetByID(ctx, orgID, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return apperrors.NewNotFoundError("Lead", leadID)
	}
	return nil
}
