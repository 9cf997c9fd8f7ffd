package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// Contact sync states
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncFailed  = "failed"
)

// EmailSyncTask is the payload of the email:sync_contact task
type EmailSyncTask struct {
	OrganizationID string `json:"organizationId"`
	Source         string `json:"source"`
	SourceID       string `json:"sourceId"`
	Email          string `json:"email"`
	Name           string `json:"name"`
}

// EmailEventInput is a provider event after normalization
type EmailEventInput struct {
	OrganizationID string
	Email          string
	EventType      string
	RawEvent       string
	CampaignID     string
	Link           *string
	Reason         *string
	Metadata       map[string]interface{}
	OccurredAt     time.Time
}

// unsubscribingEvents mark the contact unsubscribed
var unsubscribingEvents = map[string]bool{
	"unsubscribed":  true,
	"hard_bounce":   true,
	"invalid_email": true,
}

// CampaignInput carries campaign create/update fields
type CampaignInput struct {
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	HTMLContent *string    `json:"htmlContent,omitempty"`
	TemplateID  *string    `json:"templateId,omitempty"`
	ListIDs     []string   `json:"listIds,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// TemplateInput carries template create/update fields
type TemplateInput struct {
	Name        string  `json:"name"`
	Subject     string  `json:"subject"`
	HTMLContent string  `json:"htmlContent"`
	Category    *string `json:"category,omitempty"`
}

// EmailMarketingService manages marketing contacts, lists, campaigns, templates and delivery events
type EmailMarketingService struct {
	email ports.EmailRepository
	users ports.UserRepository
}

// NewEmailMarketingService creates a new EmailMarketingService
func NewEmailMarketingService(repos Repositories) *EmailMarketingService {
	return &EmailMarketingService{email: repos.Email, users: repos.Users}
}

// ---- contacts ----

// UpsertContact creates or refreshes the contact of a CRM entity. Returns true when created.
func (s *EmailMarketingService) UpsertContact(ctx context.Context, task EmailSyncTask) (*models.EmailContact, bool, error) {
	email := strings.ToLower(strings.TrimSpace(task.Email))
	if !validator.IsValidEmail(email) {
		return nil, false, apperrors.NewValidationError("email", "Email inválido")
	}
	switch task.Source {
	case models.ContactSourceLead, models.ContactSourceStudent, models.ContactSourceMarketingLead:
	default:
		return nil, false, apperrors.NewValidationError("source", "Origem inválida")
	}

	first, last := splitName(task.Name)
	now := nowFunc()
	contact := &models.EmailContact{
		ID:             utils.GenerateID(),
		OrganizationID: task.OrganizationID,
		Email:          email,
		FirstName:      utils.NonEmptyPtr(first),
		LastName:       utils.NonEmptyPtr(last),
		Source:         task.Source,
		SourceID:       utils.NonEmptyPtr(task.SourceID),
		Status:         models.SubscriptionSubscribed,
		SyncStatus:     SyncPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.email.UpsertContact(ctx, contact)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Printf("📧 Email contact %s created from %s %s", contact.ID, task.Source, task.SourceID)
	}
	return contact, created, nil
}

// ListContacts pages through contacts
func (s *EmailMarketingService) ListContacts(ctx context.Context, identity auth.Identity, status string, offset, limit int) ([]models.EmailContact, error) {
	if status != "" && status != models.SubscriptionSubscribed && status != models.SubscriptionUnsubscribed {
		return nil, apperrors.NewValidationError("status", "Status inválido")
	}
	if offset < 0 {
		offset = 0
	}
	return s.email.ListContacts(ctx, identity.OrganizationID(), status, offset, utils.ClampLimit(limit, 50, 500))
}

// GetContact loads one contact
func (s *EmailMarketingService) GetContact(ctx context.Context, identity auth.Identity, id string) (*models.EmailContact, error) {
	contact, err := s.email.GetContact(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, apperrors.NewNotFoundError("Contato", id)
	}
	return contact, nil
}

// GetContactByEmail loads a contact by address
func (s *EmailMarketingService) GetContactByEmail(ctx context.Context, identity auth.Identity, email string) (*models.EmailContact, error) {
	contact, err := s.email.GetContactByEmail(ctx, identity.OrganizationID(), strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, apperrors.NewNotFoundError("Contato", email)
	}
	return contact, nil
}

// UpdateSubscription subscribes or unsubscribes a contact
func (s *EmailMarketingService) UpdateSubscription(ctx context.Context, identity auth.Identity, id, status string) error {
	if status != models.SubscriptionSubscribed && status != models.SubscriptionUnsubscribed {
		return apperrors.NewValidationError("status", "Status inválido")
	}
	if _, err := s.GetContact(ctx, identity, id); err != nil {
		return err
	}
	return s.email.UpdateContactSubscription(ctx, identity.OrganizationID(), id, status)
}

// ---- lists ----

// ListLists returns the organization's lists with contact counts
func (s *EmailMarketingService) ListLists(ctx context.Context, identity auth.Identity) ([]models.EmailList, error) {
	return s.email.ListLists(ctx, identity.OrganizationID())
}

// GetList loads one list
func (s *EmailMarketingService) GetList(ctx context.Context, identity auth.Identity, id string) (*models.EmailList, error) {
	list, err := s.email.GetList(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, apperrors.NewNotFoundError("Lista", id)
	}
	return list, nil
}

// CreateList adds a list
func (s *EmailMarketingService) CreateList(ctx context.Context, identity auth.Identity, name string, description *string) (*models.EmailList, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", "Nome é obrigatório")
	}
	now := nowFunc()
	list := &models.EmailList{
		ID:             utils.GenerateID(),
		OrganizationID: identity.OrganizationID(),
		Name:           name,
		Description:    trimmedPtr(description),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.email.CreateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateList renames a list or changes its description
func (s *EmailMarketingService) UpdateList(ctx context.Context, identity auth.Identity, id, name string, description *string) (*models.EmailList, error) {
	list, err := s.GetList(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(name); n != "" {
		list.Name = n
	}
	if description != nil {
		list.Description = trimmedPtr(description)
	}
	list.UpdatedAt = nowFunc()
	if err := s.email.UpdateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteList removes a list and its memberships
func (s *EmailMarketingService) DeleteList(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.GetList(ctx, identity, id); err != nil {
		return err
	}
	return s.email.DeleteList(ctx, identity.OrganizationID(), id)
}

// AddContactToList adds a membership. Adding twice is a no-op.
func (s *EmailMarketingService) AddContactToList(ctx context.Context, identity auth.Identity, listID, contactID string) error {
	if _, err := s.GetList(ctx, identity, listID); err != nil {
		return err
	}
	if _, err := s.GetContact(ctx, identity, contactID); err != nil {
		return err
	}
	return s.email.AddContactToList(ctx, listID, contactID)
}

// RemoveContactFromList deletes a membership
func (s *EmailMarketingService) RemoveContactFromList(ctx context.Context, identity auth.Identity, listID, contactID string) error {
	if _, err := s.GetList(ctx, identity, listID); err != nil {
		return err
	}
	return s.email.RemoveContactFromList(ctx, listID, contactID)
}

// ---- campaigns ----

// ListCampaigns returns campaigns, optionally by status
func (s *EmailMarketingService) ListCampaigns(ctx context.Context, identity auth.Identity, status string) ([]models.EmailCampaign, error) {
	return s.email.ListCampaigns(ctx, identity.OrganizationID(), status)
}

// GetCampaign loads one campaign with its stats
func (s *EmailMarketingService) GetCampaign(ctx context.Context, identity auth.Identity, id string) (*models.EmailCampaign, error) {
	campaign, err := s.email.GetCampaign(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, apperrors.NewNotFoundError("Campanha", id)
	}
	return campaign, nil
}

// CreateCampaign adds a draft campaign
func (s *EmailMarketingService) CreateCampaign(ctx context.Context, identity auth.Identity, input CampaignInput) (*models.EmailCampaign, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name", "Nome é obrigatório")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return nil, apperrors.NewValidationError("subject", "Assunto é obrigatório")
	}
	now := nowFunc()
	campaign := &models.EmailCampaign{
		ID:             utils.GenerateID(),
		OrganizationID: identity.OrganizationID(),
		Status:         models.CampaignDraft,
		ListIDs:        []string{},
		CreatedBy:      actorUserID(ctx, s.users, identity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.applyCampaignInput(ctx, identity, campaign, input); err != nil {
		return nil, err
	}
	if err := s.email.CreateCampaign(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// UpdateCampaign edits a campaign that has not been sent
func (s *EmailMarketingService) UpdateCampaign(ctx context.Context, identity auth.Identity, id string, input CampaignInput) (*models.EmailCampaign, error) {
	campaign, err := s.GetCampaign(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignDraft && campaign.Status != models.CampaignScheduled {
		return nil, apperrors.NewValidationError("status", "Campanha já enviada não pode ser alterada")
	}
	if err := s.applyCampaignInput(ctx, identity, campaign, input); err != nil {
		return nil, err
	}
	campaign.UpdatedAt = nowFunc()
	if err := s.email.UpdateCampaign(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// ScheduleCampaign schedules a draft for a future time
func (s *EmailMarketingService) ScheduleCampaign(ctx context.Context, identity auth.Identity, id string, at time.Time) (*models.EmailCampaign, error) {
	if !at.After(nowFunc()) {
		return nil, apperrors.NewValidationError("scheduledAt", "Data de agendamento deve ser futura")
	}
	campaign, err := s.GetCampaign(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignDraft && campaign.Status != models.CampaignScheduled {
		return nil, apperrors.NewValidationError("status", "Somente rascunhos podem ser agendados")
	}
	at = at.UTC()
	campaign.ScheduledAt = &at
	campaign.Status = models.CampaignScheduled
	campaign.UpdatedAt = nowFunc()
	if err := s.email.UpdateCampaign(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// DeleteCampaign removes a campaign
func (s *EmailMarketingService) DeleteCampaign(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.GetCampaign(ctx, identity, id); err != nil {
		return err
	}
	return s.email.DeleteCampaign(ctx, identity.OrganizationID(), id)
}

func (s *EmailMarketingService) applyCampaignInput(ctx context.Context, identity auth.Identity, c *models.EmailCampaign, input CampaignInput) error {
	if n := strings.TrimSpace(input.Name); n != "" {
		c.Name = n
	}
	if subject := strings.TrimSpace(input.Subject); subject != "" {
		c.Subject = subject
	}
	if input.HTMLContent != nil {
		c.HTMLContent = input.HTMLContent
	}
	if input.TemplateID != nil && *input.TemplateID != "" {
		if _, err := s.GetTemplate(ctx, identity, *input.TemplateID); err != nil {
			return err
		}
		c.TemplateID = input.TemplateID
	}
	if input.ListIDs != nil {
		for _, listID := range input.ListIDs {
			if _, err := s.GetList(ctx, identity, listID); err != nil {
				return err
			}
		}
		c.ListIDs = uniqueStrings(input.ListIDs)
	}
	if input.ScheduledAt != nil {
		if !input.ScheduledAt.After(nowFunc()) {
			return apperrors.NewValidationError("scheduledAt", "Data de agendamento deve ser futura")
		}
		at := input.ScheduledAt.UTC()
		c.ScheduledAt = &at
		c.Status = models.CampaignScheduled
	}
	return nil
}

// ---- templates ----

// ListTemplates returns the organization's templates
func (s *EmailMarketingService) ListTemplates(ctx context.Context, identity auth.Identity) ([]models.EmailTemplate, error) {
	return s.email.ListTemplates(ctx, identity.OrganizationID())
}

// GetTemplate loads one template
func (s *EmailMarketingService) GetTemplate(ctx context.Context, identity auth.Identity, id string) (*models.EmailTemplate, error) {
	template, err := s.email.GetTemplate(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperrors.NewNotFoundError("Template", id)
	}
	return template, nil
}

// CreateTemplate adds a template
func (s *EmailMarketingService) CreateTemplate(ctx context.Context, identity auth.Identity, input TemplateInput) (*models.EmailTemplate, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.NewValidationError("name", "Nome é obrigatório")
	}
	if strings.TrimSpace(input.HTMLContent) == "" {
		return nil, apperrors.NewValidationError("htmlContent", "Conteúdo é obrigatório")
	}
	now := nowFunc()
	template := &models.EmailTemplate{
		ID:             utils.GenerateID(),
		OrganizationID: identity.OrganizationID(),
		Name:           strings.TrimSpace(input.Name),
		Subject:        strings.TrimSpace(input.Subject),
		HTMLContent:    input.HTMLContent,
		Category:       trimmedPtr(input.Category),
		CreatedBy:      actorUserID(ctx, s.users, identity),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.email.CreateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// UpdateTemplate edits a template
func (s *EmailMarketingService) UpdateTemplate(ctx context.Context, identity auth.Identity, id string, input TemplateInput) (*models.EmailTemplate, error) {
	template, err := s.GetTemplate(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if n := strings.TrimSpace(input.Name); n != "" {
		template.Name = n
	}
	if subject := strings.TrimSpace(input.Subject); subject != "" {
		template.Subject = subject
	}
	if strings.TrimSpace(input.HTMLContent) != "" {
		template.HTMLContent = input.HTMLContent
	}
	if input.Category != nil {
		template.Category = trimmedPtr(input.Category)
	}
	template.UpdatedAt = nowFunc()
	if err := s.email.UpdateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// DeleteTemplate removes a template
func (s *EmailMarketingService) DeleteTemplate(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.GetTemplate(ctx, identity, id); err != nil {
		return err
	}
	return s.email.DeleteTemplate(ctx, identity.OrganizationID(), id)
}

// ---- events ----

// RecordEvent stores a delivery event, bumps the campaign counters and
// unsubscribes the contact on unsubscribe and hard bounce events
func (s *EmailMarketingService) RecordEvent(ctx context.Context, input EmailEventInput) (*models.EmailEvent, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, apperrors.NewValidationError("email", "Email é obrigatório")
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = nowFunc()
	}

	event := &models.EmailEvent{
		ID:             utils.GenerateID(),
		OrganizationID: input.OrganizationID,
		Email:          email,
		EventType:      input.EventType,
		RawEvent:       input.RawEvent,
		Link:           input.Link,
		Reason:         input.Reason,
		Metadata:       input.Metadata,
		OccurredAt:     occurredAt.UTC(),
		CreatedAt:      nowFunc(),
	}

	contact, err := s.email.GetContactByEmail(ctx, input.OrganizationID, email)
	if err != nil {
		return nil, err
	}
	if contact != nil {
		event.ContactID = &contact.ID
	}
	if input.CampaignID != "" {
		campaign, err := s.email.GetCampaign(ctx, input.OrganizationID, input.CampaignID)
		if err != nil {
			return nil, err
		}
		if campaign != nil {
			event.CampaignID = &campaign.ID
		}
	}

	if err := s.email.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	if event.CampaignID != nil {
		if err := s.email.IncrementCampaignStat(ctx, *event.CampaignID, event.EventType); err != nil {
			log.Printf("⚠️ Failed to update stats of campaign %s: %v", *event.CampaignID, err)
		}
	}
	if unsubscribingEvents[input.RawEvent] || event.EventType == models.EmailEventUnsubscribed {
		if err := s.email.UnsubscribeByEmail(ctx, input.OrganizationID, email); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// CampaignEvents lists the latest events of a campaign
func (s *EmailMarketingService) CampaignEvents(ctx context.Context, identity auth.Identity, campaignID string, limit int) ([]models.EmailEvent, error) {
	if _, err := s.GetCampaign(ctx, identity, campaignID); err != nil {
		return nil, err
	}
	return s.email.ListEventsByCampaign(ctx, identity.OrganizationID(), campaignID, utils.ClampLimit(limit, 100, 1000))
}

// ContactEvents lists the latest events of a contact
func (s *EmailMarketingService) ContactEvents(ctx context.Context, identity auth.Identity, contactID string, limit int) ([]models.EmailEvent, error) {
	if _, err := s.GetContact(ctx, identity, contactID); err != nil {
		return nil, err
	}
	return s.email.ListEventsByContact(ctx, identity.OrganizationID(), contactID, utils.ClampLimit(limit, 100, 1000))
}
