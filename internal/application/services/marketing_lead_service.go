package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// MarketingLeadService captures top-of-funnel contacts from public forms
type MarketingLeadService struct {
	marketingLeads ports.MarketingLeadRepository
	leadService    *LeadService
	auditor        Auditor
	tx             ports.Transactor
	outbox         ports.EventOutbox
	limiter        ports.RateLimiter
	defaultOrgID   string
}

// NewMarketingLeadService creates a new MarketingLeadService
func NewMarketingLeadService(repos Repositories, leads *LeadService, auditor Auditor, infra Infrastructure) *MarketingLeadService {
	return &MarketingLeadService{
		marketingLeads: repos.MarketingLeads,
		leadService:    leads,
		auditor:        auditor,
		tx:             infra.Tx,
		outbox:         infra.Outbox,
		limiter:        infra.Limiter,
		defaultOrgID:   infra.DefaultOrganizationID,
	}
}

// Create stores a public capture. An e-mail already captured returns the existing record.
func (s *MarketingLeadService) Create(ctx context.Context, input models.MarketingLeadInput, clientIP, userAgent string) (*models.MarketingLead, bool, error) {
	if input.Honeypot != "" {
		return nil, false, apperrors.Invalid("Requisição inválida")
	}
	if err := ValidateMarketingLeadInput(input); err != nil {
		return nil, false, err
	}
	if s.defaultOrgID == "" {
		return nil, false, apperrors.NewServiceUnavailableError("marketing lead capture", errors.New("DEFAULT_ORGANIZATION_ID is not configured"))
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if clientIP != "" {
		if err := checkRate(ctx, s.limiter, "marketing_lead:ip:"+clientIP); err != nil {
			return nil, false, err
		}
	}
	if err := checkRate(ctx, s.limiter, "marketing_lead:email:"+email); err != nil {
		return nil, false, err
	}

	existing, err := s.marketingLeads.FindByEmail(ctx, s.defaultOrgID, email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	interest := input.Interest
	if !validator.ValidInterest(interest) {
		interest = validator.MapTypebotInterest(interest)
	}
	origin := input.Origin
	if origin == "" {
		origin = models.OriginLandingPage
	}

	now := nowFunc()
	lead := &models.MarketingLead{
		ID:                utils.GenerateID(),
		OrganizationID:    s.defaultOrgID,
		Name:              strings.TrimSpace(input.Name),
		Email:             email,
		Phone:             strings.TrimSpace(input.Phone),
		Interest:          interest,
		Message:           trimmedPtr(input.Message),
		LGPDConsent:       input.LGPDConsent,
		WhatsappConsent:   input.WhatsappConsent,
		Status:            models.MarketingLeadNew,
		Origin:            origin,
		Company:           trimmedPtr(input.Company),
		JobRole:           trimmedPtr(input.JobRole),
		UTMSource:         input.UTMSource,
		UTMMedium:         input.UTMMedium,
		UTMCampaign:       input.UTMCampaign,
		UTMTerm:           input.UTMTerm,
		UTMContent:        input.UTMContent,
		TypebotID:         input.TypebotID,
		ResultID:          input.ResultID,
		ExternalTimestamp: input.ExternalTimestamp,
		IPAddress:         utils.NonEmptyPtr(clientIP),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.marketingLeads.Create(ctx, lead); err != nil {
			return err
		}
		return publish(ctx, s.outbox, events.MarketingLeadCreated, events.Payload{
			OrganizationID: lead.OrganizationID,
			EntityType:     models.ContactSourceMarketingLead,
			EntityID:       lead.ID,
			Email:          lead.Email,
			Name:           lead.Name,
			ActorID:        constants.DefaultPublicFormActor,
		})
	})
	if err != nil {
		return nil, false, err
	}

	recordAudit(ctx, s.auditor, SystemIdentity(lead.OrganizationID), AuditInput{
		ActorID:      constants.DefaultPublicFormActor,
		ActionType:   models.AuditDataCreation,
		DataCategory: models.CategoryContato,
		Description:  "Lead de marketing capturado: " + lead.Origin,
		LegalBasis:   LegalBasisConsent,
		Metadata:     map[string]interface{}{"marketingLeadId": lead.ID, "whatsappConsent": lead.WhatsappConsent},
		IPAddress:    utils.NonEmptyPtr(clientIP),
		UserAgent:    utils.NonEmptyPtr(userAgent),
	})
	log.Printf("✅ Marketing lead %s captured from %s", lead.ID, lead.Origin)
	return lead, true, nil
}

// ValidateMarketingLeadInput checks a public capture payload
func ValidateMarketingLeadInput(input models.MarketingLeadInput) error {
	var field string
	var details []string
	fail := func(name, msg string) {
		if field == "" {
			field = name
		}
		details = append(details, msg)
	}
	if n := len([]rune(strings.TrimSpace(input.Name))); n < 2 {
		fail("name", "Nome deve ter pelo menos 2 caracteres")
	}
	if !validator.IsValidEmail(strings.TrimSpace(input.Email)) {
		fail("email", "Email inválido")
	}
	if !validator.PhoneDigitsBetween(input.Phone, 10, 15) {
		fail("phone", "Telefone deve ter entre 10 e 15 dígitos")
	}
	if !input.LGPDConsent {
		fail("lgpdConsent", "Consentimento LGPD é obrigatório")
	}
	if len(details) == 0 {
		return nil
	}
	return &apperrors.ValidationError{Field: field, Message: details[0], Details: details}
}

// List returns captures filtered by status and interest
func (s *MarketingLeadService) List(ctx context.Context, identity auth.Identity, filter models.MarketingLeadFilter) ([]models.MarketingLead, error) {
	if filter.Status != "" && !models.ValidMarketingLeadStatus(filter.Status) {
		return nil, apperrors.NewValidationError("status", "Status inválido")
	}
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = utils.ClampLimit(filter.Limit, 50, 500)
	return s.marketingLeads.List(ctx, filter)
}

// Get loads one capture
func (s *MarketingLeadService) Get(ctx context.Context, identity auth.Identity, id string) (*models.MarketingLead, error) {
	lead, err := s.marketingLeads.GetByID(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NewNotFoundError("Lead de marketing", id)
	}
	return lead, nil
}

// UpdateStatus moves a capture through new, contacted, converted and unsubscribed
func (s *MarketingLeadService) UpdateStatus(ctx context.Context, identity auth.Identity, id, status string) error {
	if !models.ValidMarketingLeadStatus(status) {
		return apperrors.NewValidationError("status", "Status inválido")
	}
	if _, err := s.Get(ctx, identity, id); err != nil {
		return err
	}
	return s.marketingLeads.UpdateStatus(ctx, identity.OrganizationID(), id, status)
}

// ConvertToLead creates a pipeline lead from a capture and links both records
func (s *MarketingLeadService) ConvertToLead(ctx context.Context, identity auth.Identity, id string) (string, error) {
	ml, err := s.Get(ctx, identity, id)
	if err != nil {
		return "", err
	}
	if ml.ConvertedLeadID != nil && *ml.ConvertedLeadID != "" {
		return *ml.ConvertedLeadID, nil
	}

	email := ml.Email
	input := models.LeadInput{
		Name:              ml.Name,
		Phone:             nationalPhone(ml.Phone),
		Email:             &email,
		Source:            models.SourceLandingPage,
		InterestedProduct: models.ProductIndefinido,
		MainDesire:        utils.NonEmptyPtr(ml.Interest),
		UTMSource:         ml.UTMSource,
		UTMCampaign:       ml.UTMCampaign,
		UTMMedium:         ml.UTMMedium,
	}

	var leadID string
	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		lead, _, err := s.leadService.create(ctx, ml.OrganizationID, actorUserID(ctx, s.leadService.users, identity), input)
		if err != nil {
			return err
		}
		leadID = lead.ID
		return s.marketingLeads.SetConverted(ctx, ml.ID, lead.ID)
	})
	if err != nil {
		return "", err
	}
	return leadID, nil
}

// nationalPhone drops the Brazilian country code from a captured number
func nationalPhone(phone string) string {
	d := utils.OnlyDigits(phone)
	if strings.HasPrefix(d, "55") && (len(d) == 12 || len(d) == 13) {
		return d[2:]
	}
	return d
}
