package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/scoring"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// Public form limits
const (
	PublicFormLimit  = 5
	PublicFormWindow = time.Hour
)

// Import row outcomes
const (
	ImportCreated   = "created"
	ImportDuplicate = "duplicate"
	ImportError     = "error"
)

// ReferralCashbackTask is the payload of the referral:cashback task
type ReferralCashbackTask struct {
	OrganizationID string `json:"organizationId"`
	LeadID         string `json:"leadId"`
}

// LeadService runs the sales pipeline
type LeadService struct {
	leads         ports.LeadRepository
	activities    ports.ActivityRepository
	tasks         ports.TaskRepository
	notifications ports.NotificationRepository
	settings      ports.SettingRepository
	users         ports.UserRepository
	fields        *CustomFieldService
	tx            ports.Transactor
	outbox        ports.EventOutbox
	queue         ports.TaskQueue
	limiter       ports.RateLimiter
	scorer        *scoring.Engine
	defaultOrgID  string
}

// NewLeadService creates a new LeadService
func NewLeadService(repos Repositories, fields *CustomFieldService, infra Infrastructure) *LeadService {
	return &LeadService{
		leads:         repos.Leads,
		activities:    repos.Activities,
		tasks:         repos.Tasks,
		notifications: repos.Notifications,
		settings:      repos.Settings,
		users:         repos.Users,
		fields:        fields,
		tx:            infra.Tx,
		outbox:        infra.Outbox,
		queue:         infra.Queue,
		limiter:       infra.Limiter,
		scorer:        scoring.NewEngine(),
		defaultOrgID:  infra.DefaultOrganizationID,
	}
}

// Create registers a lead. A lead with the same phone in the organization is
// returned instead of creating a duplicate.
func (s *LeadService) Create(ctx context.Context, identity auth.Identity, input models.LeadInput) (string, error) {
	lead, _, err := s.create(ctx, identity.OrganizationID(), actorUserID(ctx, s.users, identity), input)
	if err != nil {
		return "", err
	}
	return lead.ID, nil
}

// CreatePublic registers a lead from the public form
func (s *LeadService) CreatePublic(ctx context.Context, input models.LeadInput, clientIP string) (string, error) {
	if input.Honeypot != "" {
		return "", apperrors.Invalid("Requisição inválida")
	}
	if s.defaultOrgID == "" {
		return "", apperrors.NewServiceUnavailableError("public lead capture", fmt.Errorf("DEFAULT_ORGANIZATION_ID is not configured"))
	}
	if err := checkRate(ctx, s.limiter, "public_lead:ip:"+clientIP); err != nil {
		return "", err
	}
	lead, _, err := s.create(ctx, s.defaultOrgID, constants.DefaultPublicFormActor, input)
	if err != nil {
		return "", err
	}
	return lead.ID, nil
}

func (s *LeadService) create(ctx context.Context, orgID, actorID string, input models.LeadInput) (*models.Lead, bool, error) {
	if err := validateLeadInput(input, true); err != nil {
		return nil, false, err
	}
	phone := utils.OnlyDigits(input.Phone)

	existing, err := s.leads.FindByPhone(ctx, orgID, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if input.ReferredByID != nil && *input.ReferredByID != "" {
		referrer, err := s.leads.GetByID(ctx, orgID, *input.ReferredByID)
		if err != nil {
			return nil, false, err
		}
		if referrer == nil {
			return nil, false, apperrors.NewValidationError("referredById", "Indicador não encontrado")
		}
	}

	now := nowFunc()
	lead := &models.Lead{
		ID:                utils.GenerateID(),
		OrganizationID:    orgID,
		Stage:             models.StageNovo,
		Temperature:       models.TemperatureFrio,
		InterestedProduct: models.ProductIndefinido,
		Source:            models.SourceOutro,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	applyLeadInput(lead, input)
	lead.Score = s.score(ctx, lead)
	if input.Score != nil {
		lead.Score = *input.Score
	}

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.leads.Create(ctx, lead); err != nil {
			return err
		}
		if err := s.fields.ApplyValues(ctx, orgID, models.EntityLead, lead.ID, input.CustomFields); err != nil {
			return err
		}
		activity := newActivity(orgID, constants.ActivityLeadCreated, fmt.Sprintf("Lead \"%s\" criado", lead.Name))
		activity.LeadID = &lead.ID
		activity.UserID = utils.NonEmptyPtr(actorID)
		if err := s.activities.Create(ctx, activity); err != nil {
			return err
		}
		return publish(ctx, s.outbox, events.LeadCreated, events.Payload{
			OrganizationID: orgID,
			EntityType:     models.ContactSourceLead,
			EntityID:       lead.ID,
			Email:          utils.Deref(lead.Email),
			Name:           lead.Name,
			ActorID:        actorID,
		})
	})
	if err != nil {
		return nil, false, err
	}
	log.Printf("✅ Lead %s created in %s", lead.ID, orgID)
	return lead, true, nil
}

// List returns one cursor page of leads, newest first
func (s *LeadService) List(ctx context.Context, identity auth.Identity, filter models.LeadFilter) (*models.LeadPage, error) {
	limit := utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.MaxLimit)
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = limit + 1

	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &models.LeadPage{Page: leads, IsDone: true}
	if len(leads) > limit {
		page.Page = leads[:limit]
		page.IsDone = false
	}
	if n := len(page.Page); n > 0 {
		page.ContinueCursor = page.Page[n-1].ID
	}
	return page, nil
}

// Get loads a lead of the caller's organization
func (s *LeadService) Get(ctx context.Context, identity auth.Identity, id string) (*models.Lead, error) {
	return s.get(ctx, identity.OrganizationID(), id)
}

// Recent returns the latest leads
func (s *LeadService) Recent(ctx context.Context, identity auth.Identity, limit int) ([]models.Lead, error) {
	return s.leads.Recent(ctx, identity.OrganizationID(), utils.ClampLimit(limit, 10, 50))
}

// Search matches name, phone or e-mail. An empty query matches nothing.
func (s *LeadService) Search(ctx context.Context, identity auth.Identity, query string, limit int) ([]models.Lead, error) {
	if strings.TrimSpace(query) == "" {
		return []models.Lead{}, nil
	}
	return s.leads.Search(ctx, identity.OrganizationID(), query, utils.ClampLimit(limit, 10, 50))
}

// UpdateStage moves a lead through the pipeline
func (s *LeadService) UpdateStage(ctx context.Context, identity auth.Identity, id string, stage models.LeadStage, lostReason *string) (*models.Lead, error) {
	if !stage.Valid() {
		return nil, apperrors.NewValidationError("stage", "Etapa inválida")
	}
	orgID := identity.OrganizationID()
	actorID := actorUserID(ctx, s.users, identity)

	var lead *models.Lead
	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		var err error
		lead, err = s.get(ctx, orgID, id)
		if err != nil {
			return err
		}
		from := lead.Stage
		lead.Stage = stage
		if lostReason != nil {
			lead.LostReason = lostReason
		}
		lead.UpdatedAt = nowFunc()
		lead.Score = s.score(ctx, lead)
		if err := s.leads.Update(ctx, lead); err != nil {
			return err
		}
		return s.recordStageChange(ctx, lead, from, actorID)
	})
	if err != nil {
		return nil, err
	}

	s.maybeScheduleCashback(ctx, lead)
	return lead, nil
}

// Update patches the mutable fields of a lead and rescores it
func (s *LeadService) Update(ctx context.Context, identity auth.Identity, id string, input models.LeadInput) (*models.Lead, error) {
	if err := validateLeadInput(input, false); err != nil {
		return nil, err
	}
	orgID := identity.OrganizationID()
	actorID := actorUserID(ctx, s.users, identity)

	var lead *models.Lead
	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		var err error
		lead, err = s.get(ctx, orgID, id)
		if err != nil {
			return err
		}
		from := lead.Stage
		if input.Phone != "" {
			input.Phone = utils.OnlyDigits(input.Phone)
		}
		applyLeadInput(lead, input)
		lead.UpdatedAt = nowFunc()
		lead.Score = s.score(ctx, lead)
		if input.Score != nil {
			lead.Score = *input.Score
		}
		if err := s.leads.Update(ctx, lead); err != nil {
			return err
		}
		if err := s.fields.ApplyValues(ctx, orgID, models.EntityLead, lead.ID, input.CustomFields); err != nil {
			return err
		}
		if lead.Stage != from {
			return s.recordStageChange(ctx, lead, from, actorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.maybeScheduleCashback(ctx, lead)
	return lead, nil
}

// Delete removes a lead and its tag links
func (s *LeadService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	orgID := identity.OrganizationID()
	if _, err := s.get(ctx, orgID, id); err != nil {
		return err
	}
	return s.leads.Delete(ctx, orgID, id)
}

// Deduplicate groups leads by phone, keeps the oldest of each group and
// removes the rest unless dryRun is set
func (s *LeadService) Deduplicate(ctx context.Context, identity auth.Identity, dryRun bool) (*models.DeduplicationReport, error) {
	orgID := identity.OrganizationID()
	leads, err := s.leads.ListForDeduplication(ctx, orgID)
	if err != nil {
		return nil, err
	}

	report := &models.DeduplicationReport{DryRun: dryRun, Groups: []models.DuplicateLeadGroup{}}
	index := map[string]int{}
	for _, lead := range leads {
		phone := utils.OnlyDigits(lead.Phone)
		if phone == "" {
			continue
		}
		i, seen := index[phone]
		if !seen {
			index[phone] = len(report.Groups)
			report.Groups = append(report.Groups, models.DuplicateLeadGroup{Phone: phone, KeptID: lead.ID})
			continue
		}
		report.Groups[i].RemovedIDs = append(report.Groups[i].RemovedIDs, lead.ID)
	}

	groups := report.Groups[:0]
	for _, g := range report.Groups {
		if len(g.RemovedIDs) > 0 {
			groups = append(groups, g)
		}
	}
	report.Groups = groups
	report.DuplicateGroups = len(groups)
	if dryRun || len(groups) == 0 {
		return report, nil
	}

	actorID := actorUserID(ctx, s.users, identity)
	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		for _, g := range groups {
			for _, id := range g.RemovedIDs {
				if err := s.leads.Delete(ctx, orgID, id); err != nil {
					return err
				}
				report.Removed++
			}
		}
		activity := newActivity(orgID, constants.ActivityLeadsDeduplicated,
			fmt.Sprintf("%d leads duplicados removidos", report.Removed))
		activity.UserID = utils.NonEmptyPtr(actorID)
		activity.Metadata = map[string]interface{}{"groups": len(groups)}
		return s.activities.Create(ctx, activity)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Removed %d duplicate leads in %s", report.Removed, orgID)
	return report, nil
}

// ReactivateIdle returns leads stuck in early stages back to novo, schedules
// a follow-up task for the next day and notifies the assignee
func (s *LeadService) ReactivateIdle(ctx context.Context, days, limit int) (int, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := nowFunc().AddDate(0, 0, -days)
	idle, err := s.leads.ListIdle(ctx, []models.LeadStage{models.StagePrimeiroContato, models.StageQualificado}, cutoff, utils.ClampLimit(limit, 100, 500))
	if err != nil {
		return 0, err
	}

	reactivated := 0
	for i := range idle {
		lead := idle[i]
		err := withinTx(ctx, s.tx, func(ctx context.Context) error {
			from := lead.Stage
			now := nowFunc()
			lead.Stage = models.StageNovo
			lead.UpdatedAt = now
			if err := s.leads.Update(ctx, &lead); err != nil {
				return err
			}

			activity := newActivity(lead.OrganizationID, constants.ActivityLeadReactivated,
				fmt.Sprintf("Lead reativado após %d dias sem interação", days))
			activity.LeadID = &lead.ID
			activity.Metadata = map[string]interface{}{"from": string(from), "to": string(models.StageNovo)}
			if err := s.activities.Create(ctx, activity); err != nil {
				return err
			}

			due := now.AddDate(0, 0, 1)
			task := &models.Task{
				ID:               utils.GenerateID(),
				OrganizationID:   lead.OrganizationID,
				Description:      fmt.Sprintf("Retomar contato com %s", lead.Name),
				LeadID:           &lead.ID,
				AssignedTo:       lead.AssignedTo,
				MentionedUserIDs: []string{},
				DueDate:          &due,
				CreatedBy:        constants.DefaultSystemActor,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.tasks.Create(ctx, task); err != nil {
				return err
			}

			if lead.AssignedTo != nil && *lead.AssignedTo != "" {
				link := "/leads/" + lead.ID
				return s.notifications.Create(ctx, newNotification(lead.OrganizationID, *lead.AssignedTo,
					constants.NotificationLeadReactivated, "Lead reativado",
					fmt.Sprintf("%s voltou para novo após %d dias sem interação", lead.Name, days), &link))
			}
			return nil
		})
		if err != nil {
			log.Printf("⚠️ Failed to reactivate lead %s: %v", lead.ID, err)
			continue
		}
		reactivated++
	}
	return reactivated, nil
}

// Import creates leads row by row and reports the outcome of each row
func (s *LeadService) Import(ctx context.Context, identity auth.Identity, rows []models.LeadInput) []models.ImportRowResult {
	orgID := identity.OrganizationID()
	actorID := actorUserID(ctx, s.users, identity)

	results := make([]models.ImportRowResult, 0, len(rows))
	for i, row := range rows {
		result := models.ImportRowResult{Row: i + 1}
		lead, created, err := s.create(ctx, orgID, actorID, row)
		switch {
		case err != nil:
			result.Status = ImportError
			result.Error = err.Error()
		case created:
			result.Status = ImportCreated
			result.LeadID = lead.ID
		default:
			result.Status = ImportDuplicate
			result.LeadID = lead.ID
		}
		results = append(results, result)
	}
	return results
}

// ScoringRules returns the organization rules, falling back to the defaults
func (s *LeadService) ScoringRules(ctx context.Context, orgID string) []scoring.Rule {
	setting, err := s.settings.Get(ctx, orgID, constants.SettingKeyLeadScoring)
	if err != nil || setting == nil || setting.Value == "" {
		return scoring.DefaultRules
	}
	var rules []scoring.Rule
	if err := json.Unmarshal([]byte(setting.Value), &rules); err != nil || len(rules) == 0 {
		log.Printf("⚠️ Invalid lead scoring rules for %s, using defaults", orgID)
		return scoring.DefaultRules
	}
	return rules
}

func (s *LeadService) score(ctx context.Context, lead *models.Lead) int {
	env := scoring.LeadEnv(scoring.LeadFacts{
		Stage:       string(lead.Stage),
		Temperature: string(lead.Temperature),
		Source:      lead.Source,
		Product:     lead.InterestedProduct,
		Email:       utils.Deref(lead.Email),
		Profession:  utils.Deref(lead.Profession),
		HasClinic:   lead.HasClinic,
		HasReferrer: lead.ReferredByID != nil && *lead.ReferredByID != "",
		MainPain:    utils.Deref(lead.MainPain),
	})
	return s.scorer.Score(s.ScoringRules(ctx, lead.OrganizationID), env)
}

func (s *LeadService) recordStageChange(ctx context.Context, lead *models.Lead, from models.LeadStage, actorID string) error {
	activity := newActivity(lead.OrganizationID, constants.ActivityStageChanged, fmt.Sprintf("Lead movido para %s", lead.Stage))
	activity.LeadID = &lead.ID
	activity.UserID = utils.NonEmptyPtr(actorID)
	activity.Metadata = map[string]interface{}{"from": string(from), "to": string(lead.Stage)}
	if err := s.activities.Create(ctx, activity); err != nil {
		return err
	}
	return publish(ctx, s.outbox, events.LeadStageChanged, events.Payload{
		OrganizationID: lead.OrganizationID,
		EntityType:     models.ContactSourceLead,
		EntityID:       lead.ID,
		ActorID:        actorID,
		Data:           map[string]interface{}{"from": string(from), "to": string(lead.Stage)},
	})
}

func (s *LeadService) maybeScheduleCashback(ctx context.Context, lead *models.Lead) {
	if lead.Stage != models.StageFechadoGanho || lead.ReferredByID == nil || *lead.ReferredByID == "" || lead.CashbackPaidAt != nil {
		return
	}
	enqueueTask(ctx, s.queue, ports.TaskReferralCashback, ReferralCashbackTask{
		OrganizationID: lead.OrganizationID,
		LeadID:         lead.ID,
	})
}

func (s *LeadService) get(ctx context.Context, orgID, id string) (*models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, apperrors.NewNotFoundError("Lead", id)
	}
	return lead, nil
}

// checkRate records a hit of key against the public form limit
func checkRate(ctx context.Context, limiter ports.RateLimiter, key string) error {
	if limiter == nil {
		return nil
	}
	ok, err := limiter.Allow(ctx, key, PublicFormLimit, PublicFormWindow)
	if err != nil {
		log.Printf("⚠️ Rate limiter unavailable: %v", err)
		return nil
	}
	if !ok {
		return apperrors.NewRateLimitError("Muitas tentativas. Tente novamente mais tarde.")
	}
	return nil
}

func validateLeadInput(input models.LeadInput, creating bool) error {
	name := strings.TrimSpace(input.Name)
	if creating || name != "" {
		if len([]rune(name)) < 2 || len([]rune(name)) > 100 {
			return apperrors.NewValidationError("name", "Nome deve ter entre 2 e 100 caracteres")
		}
	}
	if creating || input.Phone != "" {
		if !validator.PhoneDigitsBetween(input.Phone, 10, 11) {
			return apperrors.NewValidationError("phone", "Telefone deve ter 10 ou 11 dígitos")
		}
	}
	if input.Email != nil && *input.Email != "" && !validator.IsValidEmail(*input.Email) {
		return apperrors.NewValidationError("email", "Email inválido")
	}
	if input.Source != "" && !models.ValidLeadSource(input.Source) {
		return apperrors.NewValidationError("source", "Origem inválida")
	}
	if input.InterestedProduct != "" && !models.ValidProduct(input.InterestedProduct) {
		return apperrors.NewValidationError("interestedProduct", "Produto inválido")
	}
	if input.Stage != nil && !input.Stage.Valid() {
		return apperrors.NewValidationError("stage", "Etapa inválida")
	}
	if input.Temperature != nil && !input.Temperature.Valid() {
		return apperrors.NewValidationError("temperature", "Temperatura inválida")
	}
	if input.Score != nil && (*input.Score < 0 || *input.Score > 100) {
		return apperrors.NewValidationError("score", "Score deve estar entre 0 e 100")
	}
	return nil
}

func applyLeadInput(lead *models.Lead, input models.LeadInput) {
	if name := strings.TrimSpace(input.Name); name != "" {
		lead.Name = name
	}
	if input.Phone != "" {
		lead.Phone = utils.OnlyDigits(input.Phone)
	}
	if input.Email != nil {
		lead.Email = utils.NonEmptyPtr(strings.ToLower(strings.TrimSpace(*input.Email)))
	}
	if input.Source != "" {
		lead.Source = input.Source
	}
	if input.Stage != nil {
		lead.Stage = *input.Stage
	}
	if input.Temperature != nil {
		lead.Temperature = *input.Temperature
	}
	if input.InterestedProduct != "" {
		lead.InterestedProduct = input.InterestedProduct
	}
	if input.Profession != nil {
		lead.Profession = trimmedPtr(input.Profession)
	}
	if input.HasClinic != nil {
		lead.HasClinic = *input.HasClinic
	}
	if input.ClinicName != nil {
		lead.ClinicName = trimmedPtr(input.ClinicName)
	}
	if input.ClinicCity != nil {
		lead.ClinicCity = trimmedPtr(input.ClinicCity)
	}
	if input.MainPain != nil {
		lead.MainPain = input.MainPain
	}
	if input.MainDesire != nil {
		lead.MainDesire = input.MainDesire
	}
	if input.LostReason != nil {
		lead.LostReason = input.LostReason
	}
	if input.AssignedTo != nil {
		lead.AssignedTo = utils.NonEmptyPtr(*input.AssignedTo)
	}
	if input.ReferredByID != nil {
		lead.ReferredByID = utils.NonEmptyPtr(*input.ReferredByID)
	}
	if input.UTMSource != nil {
		lead.UTMSource = input.UTMSource
	}
	if input.UTMCampaign != nil {
		lead.UTMCampaign = input.UTMCampaign
	}
	if input.UTMMedium != nil {
		lead.UTMMedium = input.UTMMedium
	}
}
