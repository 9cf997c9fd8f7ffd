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
	"github.com/gpus/backend/pkg/encryption"
	"github.com/gpus/backend/pkg/utils"
)

// Legal bases recorded on audit entries
const (
	LegalBasisConsent     = "consentimento"
	LegalBasisContract    = "execução de contrato"
	LegalBasisDataSubject = "direito do titular de dados"
	LegalBasisLegal       = "obrigação legal"
)

const unknownActorRole = "unknown"

// retentionDaysByCategory is how long audit rows of each category are kept
var retentionDaysByCategory = map[string]int{
	models.CategoryIdentificacao: 7 * 365,
	models.CategoryAcademico:     20 * 365,
	models.CategoryFinanceiro:    5 * 365,
	models.CategoryContato:       3 * 365,
	models.CategoryConsentimento: 5 * 365,
	models.CategoryAuditoria:     7 * 365,
}

// AuditRetentionDays returns the retention of an audit entry of category
func AuditRetentionDays(category string) int {
	if days, ok := retentionDaysByCategory[category]; ok {
		return days
	}
	return 5 * 365
}

// AuditInput describes one audit entry. ActorID overrides the caller.
type AuditInput struct {
	StudentID    *string
	ActorID      string
	ActionType   models.AuditAction
	DataCategory string
	Description  string
	LegalBasis   string
	Metadata     map[string]interface{}
	IPAddress    *string
	UserAgent    *string
}

// Auditor writes LGPD audit entries
type Auditor interface {
	LogAudit(ctx context.Context, identity auth.Identity, input AuditInput) (*models.AuditEntry, error)
}

// recordAudit writes an audit entry and only logs failures
func recordAudit(ctx context.Context, auditor Auditor, identity auth.Identity, input AuditInput) {
	if auditor == nil {
		return
	}
	if _, err := auditor.LogAudit(ctx, identity, input); err != nil {
		log.Printf("⚠️ Failed to write audit entry (%s): %v", input.ActionType, err)
	}
}

// LGPDProcessTask is the payload of the lgpd:process task
type LGPDProcessTask struct {
	OrganizationID string `json:"organizationId"`
	RequestID      string `json:"requestId"`
	ActorID        string `json:"actorId"`
}

// LGPDService implements data-subject rights, consents, retention, breaches
// and the audit trail
type LGPDService struct {
	lgpd          ports.LGPDRepository
	students      ports.StudentRepository
	enrollments   ports.EnrollmentRepository
	conversations ports.ConversationRepository
	users         ports.UserRepository
	permissions   *PermissionService
	tx            ports.Transactor
	queue         ports.TaskQueue
	cipher        *encryption.Cipher
}

var _ Auditor = (*LGPDService)(nil)

// NewLGPDService creates a new LGPDService
func NewLGPDService(repos Repositories, permissions *PermissionService, infra Infrastructure) *LGPDService {
	return &LGPDService{
		lgpd:          repos.LGPD,
		students:      repos.Students,
		enrollments:   repos.Enrollments,
		conversations: repos.Conversations,
		users:         repos.Users,
		permissions:   permissions,
		tx:            infra.Tx,
		queue:         infra.Queue,
		cipher:        infra.Cipher,
	}
}

// LogAudit appends an immutable audit entry. The actor falls back to the
// system actor and the role to the actor's team role.
func (s *LGPDService) LogAudit(ctx context.Context, identity auth.Identity, input AuditInput) (*models.AuditEntry, error) {
	actorID := input.ActorID
	if actorID == "" {
		actorID = identity.Subject
	}
	if actorID == "" {
		actorID = constants.DefaultSystemActor
	}
	category := input.DataCategory
	if category == "" {
		category = models.CategoryOutros
	}
	legalBasis := input.LegalBasis
	if legalBasis == "" {
		legalBasis = LegalBasisContract
	}

	entry := &models.AuditEntry{
		ID:             utils.GenerateID(),
		OrganizationID: identity.OrganizationID(),
		StudentID:      input.StudentID,
		ActorID:        actorID,
		ActorRole:      s.actorRole(ctx, actorID),
		ActionType:     input.ActionType,
		DataCategory:   category,
		Description:    input.Description,
		LegalBasis:     legalBasis,
		Metadata:       input.Metadata,
		IPAddress:      input.IPAddress,
		UserAgent:      input.UserAgent,
		RetentionDays:  AuditRetentionDays(category),
		CreatedAt:      nowFunc(),
	}
	if err := s.lgpd.CreateAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LGPDService) actorRole(ctx context.Context, actorID string) string {
	if s.users == nil {
		return unknownActorRole
	}
	user, err := s.users.GetByClerkID(ctx, actorID)
	if err != nil || user == nil || user.Role == "" {
		return unknownActorRole
	}
	return user.Role
}

// ListAudit returns audit entries of the organization, newest first
func (s *LGPDService) ListAudit(ctx context.Context, identity auth.Identity, filter models.AuditFilter) ([]models.AuditEntry, error) {
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = utils.ClampLimit(filter.Limit, 100, 500)
	return s.lgpd.ListAudit(ctx, filter)
}

// CreateRequest opens a data-subject request. Access requests are answered
// immediately.
func (s *LGPDService) CreateRequest(ctx context.Context, identity auth.Identity, input models.LGPDRequestInput) (*models.LGPDRequest, error) {
	if !input.RequestType.Valid() {
		return nil, apperrors.NewValidationError("requestType", "Tipo de solicitação inválido")
	}
	if !auth.ValidIdentityProof(input.IdentityProof) {
		return nil, apperrors.NewValidationError("identityProof", "Prova de identidade inválida")
	}

	orgID := identity.OrganizationID()
	student, err := s.students.GetByID(ctx, orgID, input.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", input.StudentID)
	}

	details, err := normalizeRequestDetails(input.RequestType, input.Details)
	if err != nil {
		return nil, err
	}
	proofHash, err := auth.HashIdentityProof(input.IdentityProof)
	if err != nil {
		return nil, apperrors.NewInternalError("Falha ao registrar solicitação", err)
	}

	now := nowFunc()
	req := &models.LGPDRequest{
		ID:                utils.GenerateID(),
		OrganizationID:    orgID,
		StudentID:         student.ID,
		RequestType:       input.RequestType,
		Status:            models.RequestPending,
		Description:       strings.TrimSpace(input.Description),
		IdentityProofHash: proofHash,
		Details:           details,
		IPAddress:         utils.NonEmptyPtr(input.IPAddress),
		UserAgent:         utils.NonEmptyPtr(input.UserAgent),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.lgpd.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	recordAudit(ctx, s, identity, AuditInput{
		StudentID:    &student.ID,
		ActionType:   models.AuditDataAccess,
		DataCategory: models.CategoryAuditoria,
		Description:  fmt.Sprintf("Solicitação LGPD criada: %s", input.RequestType),
		LegalBasis:   LegalBasisDataSubject,
		Metadata:     map[string]interface{}{"requestId": req.ID, "requestType": string(input.RequestType)},
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	})
	log.Printf("🛡️ LGPD %s request %s opened", input.RequestType, req.ID)

	if input.RequestType == models.RequestAccess {
		if err := s.start(ctx, identity, req); err != nil {
			return nil, err
		}
		return s.run(ctx, identity, req)
	}
	return req, nil
}

// ProcessRequest moves a pending request to processing and runs its handler.
// Deletions run on the task queue when one is configured.
func (s *LGPDService) ProcessRequest(ctx context.Context, identity auth.Identity, id string) (*models.LGPDRequest, error) {
	if err := s.permissions.Require(ctx, identity, auth.PermStudentsWrite); err != nil {
		return nil, err
	}
	req, err := s.GetRequest(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, apperrors.NewValidationError("status", "Solicitação já processada")
	}
	if req.Status == models.RequestProcessing {
		return nil, apperrors.NewConflictError("Solicitação", "Solicitação em processamento")
	}
	if err := s.start(ctx, identity, req); err != nil {
		return nil, err
	}

	if req.RequestType == models.RequestDeletion && s.queue != nil {
		task := LGPDProcessTask{OrganizationID: req.OrganizationID, RequestID: req.ID, ActorID: identity.Subject}
		err := s.queue.Enqueue(ctx, ports.TaskLGPDProcess, task)
		if err == nil {
			log.Printf("🛡️ LGPD deletion %s queued", req.ID)
			return req, nil
		}
		log.Printf("⚠️ Failed to queue LGPD deletion %s, processing inline: %v", req.ID, err)
	}

	return s.run(ctx, identity, req)
}

// RunQueuedRequest executes a request handed to the worker. Requests already
// finished are skipped so task retries stay idempotent.
func (s *LGPDService) RunQueuedRequest(ctx context.Context, task LGPDProcessTask) error {
	req, err := s.lgpd.GetRequest(ctx, task.OrganizationID, task.RequestID)
	if err != nil {
		return err
	}
	if req == nil || req.Status.Terminal() {
		log.Printf("⏭️ LGPD request %s already handled", task.RequestID)
		return nil
	}
	identity := SystemIdentity(task.OrganizationID)
	if task.ActorID != "" {
		identity.Subject = task.ActorID
	}
	if req.Status == models.RequestPending {
		if err := s.start(ctx, identity, req); err != nil {
			return err
		}
	}
	_, err = s.run(ctx, identity, req)
	return err
}

func (s *LGPDService) start(ctx context.Context, identity auth.Identity, req *models.LGPDRequest) error {
	req.Status = models.RequestProcessing
	req.ProcessedBy = utils.NonEmptyPtr(identity.Subject)
	req.UpdatedAt = nowFunc()
	return s.lgpd.UpdateRequest(ctx, req)
}

// run executes a started request. A failed handler puts the request back to
// pending so it can be processed or rejected later.
func (s *LGPDService) run(ctx context.Context, identity auth.Identity, req *models.LGPDRequest) (*models.LGPDRequest, error) {
	result, err := s.execute(ctx, identity, req)
	if err != nil {
		s.resetPending(ctx, req)
		return nil, err
	}
	return result, nil
}

func (s *LGPDService) resetPending(ctx context.Context, req *models.LGPDRequest) {
	req.Status = models.RequestPending
	req.Response = nil
	req.ResponseData = nil
	req.RejectionReason = nil
	req.CompletedAt = nil
	req.UpdatedAt = nowFunc()
	if err := s.lgpd.UpdateRequest(ctx, req); err != nil {
		log.Printf("❌ Failed to reset LGPD request %s: %v", req.ID, err)
	}
}

func (s *LGPDService) execute(ctx context.Context, identity auth.Identity, req *models.LGPDRequest) (*models.LGPDRequest, error) {
	student, err := s.students.GetByID(ctx, req.OrganizationID, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", req.StudentID)
	}

	switch req.RequestType {
	case models.RequestAccess:
		err = s.processAccess(ctx, identity, req, student)
	case models.RequestCorrection:
		err = s.processCorrection(ctx, identity, req, student)
	case models.RequestDeletion:
		err = s.processDeletion(ctx, identity, req, student)
	case models.RequestPortability:
		err = s.processPortability(ctx, identity, req, student)
	default:
		err = s.processStandard(ctx, identity, req, student)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("🛡️ LGPD %s request %s %s", req.RequestType, req.ID, req.Status)
	return req, nil
}

// complete stores the outcome of a handler
func (s *LGPDService) complete(ctx context.Context, req *models.LGPDRequest, response string, data map[string]interface{}, notes string) error {
	now := nowFunc()
	req.Status = models.RequestCompleted
	req.Response = &response
	req.ResponseData = data
	if notes != "" {
		req.ProcessingNotes = &notes
	}
	req.CompletedAt = &now
	req.UpdatedAt = now
	return s.lgpd.UpdateRequest(ctx, req)
}

func (s *LGPDService) reject(ctx context.Context, req *models.LGPDRequest, reason string) error {
	now := nowFunc()
	req.Status = models.RequestRejected
	req.RejectionReason = &reason
	req.CompletedAt = &now
	req.UpdatedAt = now
	return s.lgpd.UpdateRequest(ctx, req)
}

// RejectRequest refuses an open request
func (s *LGPDService) RejectRequest(ctx context.Context, identity auth.Identity, id, reason string) (*models.LGPDRequest, error) {
	if err := s.permissions.Require(ctx, identity, auth.PermStudentsWrite); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason", "Motivo da rejeição é obrigatório")
	}
	req, err := s.GetRequest(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, apperrors.NewValidationError("status", "Solicitação já processada")
	}
	req.ProcessedBy = utils.NonEmptyPtr(identity.Subject)
	if err := s.reject(ctx, req, reason); err != nil {
		return nil, err
	}
	return req, nil
}

// CancelRequest withdraws a pending request. The identity proof given when
// the request was opened must match.
func (s *LGPDService) CancelRequest(ctx context.Context, identity auth.Identity, id, identityProof string) (*models.LGPDRequest, error) {
	req, err := s.GetRequest(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if req.Status.Terminal() {
		return nil, apperrors.NewValidationError("status", "Solicitação já processada")
	}
	if !auth.VerifyIdentityProof(identityProof, req.IdentityProofHash) {
		return nil, apperrors.NewValidationError("identityProof", "Prova de identidade inválida")
	}
	req.Status = models.RequestCancelled
	req.UpdatedAt = nowFunc()
	if err := s.lgpd.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// GetRequest loads a request of the caller's organization
func (s *LGPDService) GetRequest(ctx context.Context, identity auth.Identity, id string) (*models.LGPDRequest, error) {
	req, err := s.lgpd.GetRequest(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NewNotFoundError("Solicitação", id)
	}
	return req, nil
}

// ListRequests lists requests, newest first
func (s *LGPDService) ListRequests(ctx context.Context, identity auth.Identity, filter models.LGPDRequestFilter) ([]models.LGPDRequest, error) {
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = utils.ClampLimit(filter.Limit, 50, 200)
	return s.lgpd.ListRequests(ctx, filter)
}

// normalizeRequestDetails validates and fills the type-specific details
func normalizeRequestDetails(requestType models.LGPDRequestType, details map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	for k, v := range details {
		out[k] = v
	}

	switch requestType {
	case models.RequestDeletion:
		reason, _ := out["reason"].(string)
		if len(strings.TrimSpace(reason)) < 10 {
			return nil, apperrors.NewValidationError("reason", "Motivo da exclusão deve ter pelo menos 10 caracteres")
		}
		if _, ok := out["includePii"]; !ok {
			out["includePii"] = true
		}
		if _, ok := out["includeAcademic"]; !ok {
			out["includeAcademic"] = false
		}
	case models.RequestPortability:
		format, _ := out["exportFormat"].(string)
		if format == "" {
			format = ExportJSON
		}
		if format != ExportJSON && format != ExportCSV && format != ExportPDF {
			return nil, apperrors.NewValidationError("exportFormat", "Formato de exportação inválido")
		}
		out["exportFormat"] = format
	case models.RequestCorrection:
		fields := correctionFields(out)
		if len(fields) == 0 {
			return nil, apperrors.NewValidationError("fields", "Informe ao menos um campo para correção")
		}
		normalized := map[string]interface{}{}
		for k, v := range fields {
			normalized[k] = v
		}
		out["fields"] = normalized
	}
	return out, nil
}

// correctionFields reads corrections given either as {"field": "value"} or
// as [{"fieldName": "...", "newValue": "..."}]
func correctionFields(details map[string]interface{}) map[string]string {
	out := map[string]string{}
	switch fields := details["fields"].(type) {
	case map[string]interface{}:
		for k, v := range fields {
			out[k] = fmt.Sprint(v)
		}
	case []interface{}:
		for _, item := range fields {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := entry["fieldName"].(string)
			if name == "" {
				continue
			}
			value, _ := entry["newValue"].(string)
			out[name] = value
		}
	}
	return out
}

func detailString(details map[string]interface{}, key string) string {
	v, _ := details[key].(string)
	return strings.TrimSpace(v)
}

func detailBool(details map[string]interface{}, key string, def bool) bool {
	v, ok := details[key]
	if !ok {
		return def
	}
	return utils.ToBool(v)
}
