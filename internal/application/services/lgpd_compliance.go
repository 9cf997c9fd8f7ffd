package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// BreachNotificationWindow is the deadline to notify the ANPD after detection
const BreachNotificationWindow = 72 * time.Hour

// RetentionBatchSize bounds one retention sweep
const RetentionBatchSize = 100

var consentTypes = map[string]bool{
	models.ConsentAcademicProcessing: true,
	models.ConsentMarketing:          true,
	models.ConsentDataSharing:        true,
	models.ConsentWhatsapp:           true,
}

var breachSeverities = map[string]bool{
	models.SeverityLow:      true,
	models.SeverityMedium:   true,
	models.SeverityHigh:     true,
	models.SeverityCritical: true,
}

// GrantConsent records a consent of a student
func (s *LGPDService) GrantConsent(ctx context.Context, identity auth.Identity, input models.ConsentInput) (*models.Consent, error) {
	if !consentTypes[input.ConsentType] {
		return nil, apperrors.NewValidationError("consentType", "Tipo de consentimento inválido")
	}
	orgID := identity.OrganizationID()
	student, err := s.students.GetByID(ctx, orgID, input.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", input.StudentID)
	}

	version := strings.TrimSpace(input.Version)
	if version == "" {
		version = "1.0"
	}
	now := nowFunc()
	consent := &models.Consent{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		StudentID:      student.ID,
		ConsentType:    input.ConsentType,
		Version:        version,
		Granted:        true,
		GrantedAt:      &now,
		ExpiresAt:      input.ExpiresAt,
		DataCategories: input.DataCategories,
		IPAddress:      utils.NonEmptyPtr(input.IPAddress),
		CreatedAt:      now,
	}
	if consent.DataCategories == nil {
		consent.DataCategories = []string{}
	}

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.lgpd.CreateConsent(ctx, consent); err != nil {
			return err
		}
		if input.ConsentType == models.ConsentAcademicProcessing {
			student.LGPDConsent = true
			student.ConsentGrantedAt = &now
			student.ConsentVersion = &version
			student.UpdatedAt = now
			if err := s.students.Update(ctx, student); err != nil {
				return err
			}
		}
		_, err := s.LogAudit(ctx, identity, AuditInput{
			StudentID:    &student.ID,
			ActionType:   models.AuditConsentGranted,
			DataCategory: models.CategoryConsentimento,
			Description:  fmt.Sprintf("Consentimento concedido: %s", input.ConsentType),
			LegalBasis:   LegalBasisConsent,
			Metadata:     map[string]interface{}{"consentId": consent.ID, "version": version},
			IPAddress:    consent.IPAddress,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return consent, nil
}

// WithdrawConsent revokes a consent
func (s *LGPDService) WithdrawConsent(ctx context.Context, identity auth.Identity, id, reason string) (*models.Consent, error) {
	consent, err := s.lgpd.GetConsent(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if consent == nil {
		return nil, apperrors.NewNotFoundError("Consentimento", id)
	}
	if consent.Withdrawn {
		return nil, apperrors.NewValidationError("consent", "Consentimento já revogado")
	}
	if err := s.withdraw(ctx, identity, consent, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	return consent, nil
}

func (s *LGPDService) withdraw(ctx context.Context, identity auth.Identity, consent *models.Consent, reason string) error {
	now := nowFunc()
	consent.Withdrawn = true
	consent.WithdrawnAt = &now
	consent.WithdrawalReason = utils.NonEmptyPtr(reason)
	if err := s.lgpd.UpdateConsent(ctx, consent); err != nil {
		return err
	}
	recordAudit(ctx, s, identity, AuditInput{
		StudentID:    &consent.StudentID,
		ActionType:   models.AuditConsentWithdrawn,
		DataCategory: models.CategoryConsentimento,
		Description:  fmt.Sprintf("Consentimento revogado: %s", consent.ConsentType),
		LegalBasis:   LegalBasisConsent,
		Metadata:     map[string]interface{}{"consentId": consent.ID, "reason": reason},
	})
	return nil
}

// ListConsents returns the consents of a student
func (s *LGPDService) ListConsents(ctx context.Context, identity auth.Identity, studentID string) ([]models.Consent, error) {
	return s.lgpd.ListConsentsByStudent(ctx, identity.OrganizationID(), studentID)
}

// HasConsent reports whether the student holds a granted, unexpired and not
// withdrawn consent of the given type
func (s *LGPDService) HasConsent(ctx context.Context, orgID, studentID, consentType string) (bool, error) {
	consents, err := s.lgpd.ListConsentsByStudent(ctx, orgID, studentID)
	if err != nil {
		return false, err
	}
	now := nowFunc()
	for _, c := range consents {
		if c.ConsentType == consentType && c.Valid(now) {
			return true, nil
		}
	}
	return false, nil
}

// CheckProcessingBasis reports whether personal data of the student may be
// processed for purpose. Academic processing of active students rests on the
// enrollment contract; any other purpose needs consent.
func (s *LGPDService) CheckProcessingBasis(ctx context.Context, orgID, studentID, purpose string) (bool, error) {
	student, err := s.students.GetByID(ctx, orgID, studentID)
	if err != nil {
		return false, err
	}
	if student == nil {
		return false, nil
	}
	if student.Status == models.StudentAtivo && purpose == models.ConsentAcademicProcessing {
		return true, nil
	}
	return s.HasConsent(ctx, orgID, studentID, purpose)
}

// RetentionPolicyInput creates or updates the policy of a data category
type RetentionPolicyInput struct {
	DataCategory               string  `json:"dataCategory"`
	RetentionDays              int     `json:"retentionDays"`
	LegalBasis                 string  `json:"legalBasis"`
	Description                *string `json:"description,omitempty"`
	AutomaticDeletion          *bool   `json:"automaticDeletion,omitempty"`
	NotificationBeforeDeletion *int    `json:"notificationBeforeDeletion,omitempty"`
	Active                     *bool   `json:"active,omitempty"`
}

// ListRetentionPolicies returns the policies of the organization
func (s *LGPDService) ListRetentionPolicies(ctx context.Context, identity auth.Identity) ([]models.RetentionPolicy, error) {
	return s.lgpd.ListRetentionPolicies(ctx, identity.OrganizationID())
}

// UpsertRetentionPolicy stores the policy of a data category. Admin only.
func (s *LGPDService) UpsertRetentionPolicy(ctx context.Context, identity auth.Identity, input RetentionPolicyInput) (*models.RetentionPolicy, error) {
	if err := s.permissions.RequireOrgRole(ctx, identity, auth.RoleAdmin, auth.RoleOwner); err != nil {
		return nil, err
	}
	category := strings.TrimSpace(input.DataCategory)
	if category == "" {
		return nil, apperrors.NewValidationError("dataCategory", "Categoria de dados é obrigatória")
	}
	if input.RetentionDays <= 0 {
		return nil, apperrors.NewValidationError("retentionDays", "Prazo de retenção deve ser positivo")
	}
	if strings.TrimSpace(input.LegalBasis) == "" {
		return nil, apperrors.NewValidationError("legalBasis", "Base legal é obrigatória")
	}

	orgID := identity.OrganizationID()
	now := nowFunc()
	policy, err := s.lgpd.FindRetentionPolicy(ctx, orgID, category)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		policy = &models.RetentionPolicy{
			ID:             utils.GenerateID(),
			OrganizationID: orgID,
			DataCategory:   category,
			Active:         true,
			CreatedAt:      now,
		}
	}
	policy.RetentionDays = input.RetentionDays
	policy.LegalBasis = strings.TrimSpace(input.LegalBasis)
	if input.Description != nil {
		policy.Description = trimmedPtr(input.Description)
	}
	if input.AutomaticDeletion != nil {
		policy.AutomaticDeletion = *input.AutomaticDeletion
	}
	if input.NotificationBeforeDeletion != nil {
		policy.NotificationBeforeDeletion = *input.NotificationBeforeDeletion
	}
	if input.Active != nil {
		policy.Active = *input.Active
	}
	policy.UpdatedAt = now

	if err := s.lgpd.UpsertRetentionPolicy(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

// DeleteRetentionPolicy removes a policy. Admin only.
func (s *LGPDService) DeleteRetentionPolicy(ctx context.Context, identity auth.Identity, id string) error {
	if err := s.permissions.RequireOrgRole(ctx, identity, auth.RoleAdmin, auth.RoleOwner); err != nil {
		return err
	}
	policy, err := s.lgpd.GetRetentionPolicy(ctx, identity.OrganizationID(), id)
	if err != nil {
		return err
	}
	if policy == nil {
		return apperrors.NewNotFoundError("Política de retenção", id)
	}
	return s.lgpd.DeleteRetentionPolicy(ctx, identity.OrganizationID(), id)
}

// ApplyRetention anonymizes students whose retention window has passed,
// unless the organization's identification policy disables automatic deletion
func (s *LGPDService) ApplyRetention(ctx context.Context) (int, error) {
	students, err := s.students.ListRetentionExpired(ctx, nowFunc(), RetentionBatchSize)
	if err != nil {
		return 0, err
	}

	anonymized := 0
	for i := range students {
		student := &students[i]
		policy, err := s.lgpd.FindRetentionPolicy(ctx, student.OrganizationID, models.CategoryIdentificacao)
		if err != nil {
			return anonymized, err
		}
		if policy != nil && (!policy.Active || !policy.AutomaticDeletion) {
			continue
		}

		identity := SystemIdentity(student.OrganizationID)
		err = withinTx(ctx, s.tx, func(ctx context.Context) error {
			expiredAt := student.DataRetentionUntil
			AnonymizeStudent(student, nowFunc())
			student.DataRetentionUntil = nil
			if err := s.students.Update(ctx, student); err != nil {
				return err
			}
			_, err := s.LogAudit(ctx, identity, AuditInput{
				StudentID:    &student.ID,
				ActionType:   models.AuditDataDeletion,
				DataCategory: models.CategoryIdentificacao,
				Description:  "Dados anonimizados por expiração do prazo de retenção",
				LegalBasis:   LegalBasisLegal,
				Metadata:     map[string]interface{}{"retentionUntil": expiredAt},
			})
			return err
		})
		if err != nil {
			log.Printf("❌ Retention anonymization failed for student %s: %v", student.ID, err)
			continue
		}
		anonymized++
	}
	if anonymized > 0 {
		log.Printf("🛡️ Retention sweep anonymized %d student(s)", anonymized)
	}
	return anonymized, nil
}

// RegisterBreach records a security incident and audits it for each affected student
func (s *LGPDService) RegisterBreach(ctx context.Context, identity auth.Identity, input models.DataBreachInput) (*models.DataBreach, error) {
	if strings.TrimSpace(input.BreachType) == "" {
		return nil, apperrors.NewValidationError("breachType", "Tipo de incidente é obrigatório")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("description", "Descrição é obrigatória")
	}
	if !breachSeverities[input.Severity] {
		return nil, apperrors.NewValidationError("severity", "Severidade inválida")
	}

	now := nowFunc()
	detectedAt := now
	if input.DetectedAt != nil {
		detectedAt = input.DetectedAt.UTC()
	}
	id := utils.GenerateID()
	breach := &models.DataBreach{
		ID:                   id,
		OrganizationID:       identity.OrganizationID(),
		IncidentID:           fmt.Sprintf("INC-%s-%s", detectedAt.Format("20060102"), strings.ToUpper(id[:8])),
		BreachType:           strings.TrimSpace(input.BreachType),
		Description:          strings.TrimSpace(input.Description),
		AffectedStudents:     nonNilStrings(input.AffectedStudents),
		DataCategories:       nonNilStrings(input.DataCategories),
		Severity:             input.Severity,
		DetectedAt:           detectedAt,
		StartedAt:            input.StartedAt,
		ContainedAt:          input.ContainedAt,
		NotificationDeadline: detectedAt.Add(BreachNotificationWindow),
		Actions:              nonNilStrings(input.Actions),
		RegisteredBy:         identity.Subject,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.lgpd.CreateBreach(ctx, breach); err != nil {
			return err
		}
		category := models.CategoryOutros
		if len(breach.DataCategories) > 0 {
			category = breach.DataCategories[0]
		}
		audit := func(studentID *string) error {
			_, err := s.LogAudit(ctx, identity, AuditInput{
				StudentID:    studentID,
				ActionType:   models.AuditDataBreach,
				DataCategory: category,
				Description:  fmt.Sprintf("Incidente de segurança registrado: %s", breach.IncidentID),
				LegalBasis:   LegalBasisLegal,
				Metadata:     map[string]interface{}{"breachId": breach.ID, "severity": breach.Severity},
			})
			return err
		}
		if len(breach.AffectedStudents) == 0 {
			return audit(nil)
		}
		for i := range breach.AffectedStudents {
			if err := audit(&breach.AffectedStudents[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🛡️ Data breach %s registered (%s)", breach.IncidentID, breach.Severity)
	return breach, nil
}

// UpdateBreach records containment and notification progress
func (s *LGPDService) UpdateBreach(ctx context.Context, identity auth.Identity, id string, input models.DataBreachInput) (*models.DataBreach, error) {
	breach, err := s.lgpd.GetBreach(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if breach == nil {
		return nil, apperrors.NewNotFoundError("Incidente", id)
	}

	now := nowFunc()
	if d := strings.TrimSpace(input.Description); d != "" {
		breach.Description = d
	}
	if input.Severity != "" {
		if !breachSeverities[input.Severity] {
			return nil, apperrors.NewValidationError("severity", "Severidade inválida")
		}
		breach.Severity = input.Severity
	}
	if input.StartedAt != nil {
		breach.StartedAt = input.StartedAt
	}
	if input.ContainedAt != nil {
		breach.ContainedAt = input.ContainedAt
	}
	if input.ReportedToANPD != nil {
		if *input.ReportedToANPD && !breach.ReportedToANPD {
			breach.ANPDReportedAt = &now
		}
		breach.ReportedToANPD = *input.ReportedToANPD
	}
	if input.NotifiedAffected != nil {
		if *input.NotifiedAffected && !breach.NotifiedAffected {
			breach.NotifiedAt = &now
		}
		breach.NotifiedAffected = *input.NotifiedAffected
	}
	if input.Actions != nil {
		breach.Actions = input.Actions
	}
	if input.AffectedStudents != nil {
		breach.AffectedStudents = input.AffectedStudents
	}
	if input.DataCategories != nil {
		breach.DataCategories = input.DataCategories
	}
	breach.UpdatedAt = now

	if err := s.lgpd.UpdateBreach(ctx, breach); err != nil {
		return nil, err
	}
	return breach, nil
}

// ListBreaches returns incidents, open ones first, newest first within each group
func (s *LGPDService) ListBreaches(ctx context.Context, identity auth.Identity) ([]models.DataBreach, error) {
	breaches, err := s.lgpd.ListBreaches(ctx, identity.OrganizationID())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(breaches, func(i, j int) bool {
		oi, oj := breaches[i].ContainedAt == nil, breaches[j].ContainedAt == nil
		if oi != oj {
			return oi
		}
		return breaches[i].DetectedAt.After(breaches[j].DetectedAt)
	})
	return breaches, nil
}

// ComplianceReport summarizes LGPD activity of the last days
func (s *LGPDService) ComplianceReport(ctx context.Context, identity auth.Identity, days int) (*models.ComplianceReport, error) {
	if days <= 0 {
		days = 30
	}
	orgID := identity.OrganizationID()
	now := nowFunc()
	since := now.AddDate(0, 0, -days)

	requests, err := s.lgpd.ListRequestsSince(ctx, orgID, since)
	if err != nil {
		return nil, err
	}
	audits, err := s.lgpd.ListAuditSince(ctx, orgID, since)
	if err != nil {
		return nil, err
	}
	consents, err := s.lgpd.ListConsentsSince(ctx, orgID, since)
	if err != nil {
		return nil, err
	}
	breaches, err := s.lgpd.ListBreaches(ctx, orgID)
	if err != nil {
		return nil, err
	}

	report := BuildComplianceReport(requests, audits, consents, breaches)
	report.PeriodDays = days
	report.GeneratedAt = now
	return report, nil
}

// BuildComplianceReport aggregates already filtered rows
func BuildComplianceReport(requests []models.LGPDRequest, audits []models.AuditEntry, consents []models.Consent, breaches []models.DataBreach) *models.ComplianceReport {
	report := &models.ComplianceReport{
		TotalRequests:    len(requests),
		RequestsByType:   map[string]int{},
		RequestsByStatus: map[string]int{},
		AuditByAction:    map[string]int{},
		AuditByCategory:  map[string]int{},
	}

	completed := 0
	var totalHours float64
	for _, req := range requests {
		report.RequestsByType[string(req.RequestType)]++
		report.RequestsByStatus[string(req.Status)]++
		if req.Status == models.RequestCompleted {
			completed++
			if req.CompletedAt != nil {
				totalHours += req.CompletedAt.Sub(req.CreatedAt).Hours()
			}
		}
	}
	if len(requests) > 0 {
		report.ProcessingRate = round2(float64(completed) / float64(len(requests)) * 100)
	}
	if completed > 0 {
		report.AverageProcessingHours = round2(totalHours / float64(completed))
	}

	for _, entry := range audits {
		report.AuditByAction[string(entry.ActionType)]++
		report.AuditByCategory[entry.DataCategory]++
	}
	for _, c := range consents {
		if c.Granted {
			report.ConsentsGranted++
		}
		if c.Withdrawn {
			report.ConsentsWithdrawn++
		}
	}
	for _, b := range breaches {
		if b.ContainedAt == nil {
			report.OpenBreaches++
		}
	}
	return report
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
