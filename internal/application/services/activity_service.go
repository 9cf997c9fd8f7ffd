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

// ActivityInput is a manual timeline entry such as a note
type ActivityInput struct {
	Type         string                 `json:"type"`
	Description  string                 `json:"description"`
	LeadID       *string                `json:"leadId,omitempty"`
	StudentID    *string                `json:"studentId,omitempty"`
	EnrollmentID *string                `json:"enrollmentId,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ActivityService reads and writes the activity timeline
type ActivityService struct {
	activities ports.ActivityRepository
	leads      ports.LeadRepository
	students   ports.StudentRepository
	users      ports.UserRepository
}

// NewActivityService creates a new ActivityService
func NewActivityService(repos Repositories) *ActivityService {
	return &ActivityService{
		activities: repos.Activities,
		leads:      repos.Leads,
		students:   repos.Students,
		users:      repos.Users,
	}
}

// ListByLead returns the timeline of a lead, newest first
func (s *ActivityService) ListByLead(ctx context.Context, identity auth.Identity, leadID string, limit int) ([]models.Activity, error) {
	return s.activities.ListByLead(ctx, identity.OrganizationID(), leadID, utils.ClampLimit(limit, 50, 200))
}

// ListByStudent returns the timeline of a student, newest first
func (s *ActivityService) ListByStudent(ctx context.Context, identity auth.Identity, studentID string, limit int) ([]models.Activity, error) {
	return s.activities.ListByStudent(ctx, identity.OrganizationID(), studentID, utils.ClampLimit(limit, 50, 200))
}

// Log appends an entry to the timeline of a lead or student of the organization
func (s *ActivityService) Log(ctx context.Context, identity auth.Identity, input ActivityInput) (*models.Activity, error) {
	if strings.TrimSpace(input.Type) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.Invalid("Tipo e descrição são obrigatórios")
	}
	orgID := identity.OrganizationID()
	if input.LeadID != nil {
		lead, err := s.leads.GetByID(ctx, orgID, *input.LeadID)
		if err != nil {
			return nil, err
		}
		if lead == nil {
			return nil, apperrors.NewNotFoundError("Lead", *input.LeadID)
		}
	}
	if input.StudentID != nil {
		student, err := s.students.GetByID(ctx, orgID, *input.StudentID)
		if err != nil {
			return nil, err
		}
		if student == nil {
			return nil, apperrors.NewNotFoundError("Aluno", *input.StudentID)
		}
	}

	activity := newActivity(orgID, input.Type, strings.TrimSpace(input.Description))
	activity.LeadID = input.LeadID
	activity.StudentID = input.StudentID
	activity.EnrollmentID = input.EnrollmentID
	activity.UserID = utils.NonEmptyPtr(actorUserID(ctx, s.users, identity))
	activity.Metadata = input.Metadata
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, err
	}
	return activity, nil
}
