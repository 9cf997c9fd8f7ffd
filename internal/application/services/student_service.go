package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/asaas"
	"github.com/gpus/backend/pkg/auth"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/encryption"
	"github.com/gpus/backend/pkg/utils"
	"github.com/gpus/backend/pkg/validator"
)

// Churn thresholds
const (
	EngagementWindow = 30 * 24 * time.Hour
	MaxChurnAlerts   = 5
)

// Churn alert reasons
const (
	ChurnReasonLatePayment  = "Pagamento atrasado"
	ChurnReasonNoEngagement = "Sem engajamento"
)

// StudentService manages enrolled customers and their encrypted PII
type StudentService struct {
	students    ports.StudentRepository
	enrollments ports.EnrollmentRepository
	users       ports.UserRepository
	permissions *PermissionService
	auditor     Auditor
	tx          ports.Transactor
	outbox      ports.EventOutbox
	cipher      *encryption.Cipher
	asaas       AsaasGateway
}

// NewStudentService creates a new StudentService
func NewStudentService(repos Repositories, permissions *PermissionService, auditor Auditor, infra Infrastructure) *StudentService {
	return &StudentService{
		students:    repos.Students,
		enrollments: repos.Enrollments,
		users:       repos.Users,
		permissions: permissions,
		auditor:     auditor,
		tx:          infra.Tx,
		outbox:      infra.Outbox,
		cipher:      infra.Cipher,
		asaas:       infra.Asaas,
	}
}

// List returns students of the organization with masked CPFs
func (s *StudentService) List(ctx context.Context, identity auth.Identity, filter models.StudentFilter) ([]models.Student, error) {
	filter.OrganizationID = identity.OrganizationID()
	filter.Limit = utils.ClampLimit(filter.Limit, 50, 500)
	students, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range students {
		s.presentCPF(&students[i], false)
	}
	return students, nil
}

// Get loads a student. The CPF is revealed only to callers allowed to edit students.
func (s *StudentService) Get(ctx context.Context, identity auth.Identity, id string) (*models.Student, error) {
	student, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	reveal := s.permissions.HasPermission(ctx, identity, auth.PermStudentsWrite)
	if reveal && student.CPF != nil {
		recordAudit(ctx, s.auditor, identity, AuditInput{
			StudentID:    &student.ID,
			ActionType:   models.AuditDataAccess,
			DataCategory: models.CategoryIdentificacao,
			Description:  "CPF do aluno visualizado",
			LegalBasis:   LegalBasisContract,
		})
	}
	s.presentCPF(student, reveal)
	return student, nil
}

// presentCPF replaces the stored ciphertext with a formatted or masked value
func (s *StudentService) presentCPF(student *models.Student, reveal bool) {
	if student.CPF == nil || *student.CPF == "" {
		return
	}
	if *student.CPF == deletedMarker {
		return
	}
	plain := ""
	if s.cipher != nil {
		dec, err := s.cipher.DecryptCPF(*student.CPF)
		if err != nil {
			log.Printf("⚠️ Failed to decrypt CPF of student %s: %v", student.ID, err)
		} else {
			plain = dec
		}
	}
	var shown string
	if reveal && plain != "" {
		shown = plain
	} else {
		shown = encryption.MaskCPF(plain)
	}
	student.CPF = &shown
}

// Create registers a student. The CPF is validated, encrypted and hashed for lookups.
func (s *StudentService) Create(ctx context.Context, identity auth.Identity, input models.StudentInput) (*models.Student, error) {
	if err := validateStudentInput(input, true); err != nil {
		return nil, err
	}
	orgID := identity.OrganizationID()
	now := nowFunc()

	student := &models.Student{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		LeadID:         input.LeadID,
		Status:         models.StudentAtivo,
		ChurnRisk:      models.ChurnBaixo,
		Products:       []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.applyStudentInput(ctx, student, input); err != nil {
		return nil, err
	}

	err := withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.students.Create(ctx, student); err != nil {
			return err
		}
		return publish(ctx, s.outbox, events.StudentCreated, events.Payload{
			OrganizationID: orgID,
			EntityType:     "student",
			EntityID:       student.ID,
			Email:          student.Email,
			Name:           student.Name,
			ActorID:        identity.Subject,
		})
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.auditor, identity, AuditInput{
		StudentID:    &student.ID,
		ActionType:   models.AuditDataCreation,
		DataCategory: models.CategoryIdentificacao,
		Description:  "Aluno cadastrado",
		LegalBasis:   LegalBasisContract,
	})
	log.Printf("✅ Student %s created", student.ID)
	s.presentCPF(student, false)
	return student, nil
}

// Update patches a student and audits the changed fields
func (s *StudentService) Update(ctx context.Context, identity auth.Identity, id string, input models.StudentInput) (*models.Student, error) {
	if err := validateStudentInput(input, false); err != nil {
		return nil, err
	}
	student, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}

	changed, err := s.applyStudentInput(ctx, student, input)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		s.presentCPF(student, false)
		return student, nil
	}
	student.UpdatedAt = nowFunc()

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.students.Update(ctx, student); err != nil {
			return err
		}
		return publish(ctx, s.outbox, events.StudentUpdated, events.Payload{
			OrganizationID: student.OrganizationID,
			EntityType:     "student",
			EntityID:       student.ID,
			Email:          student.Email,
			Name:           student.Name,
			ActorID:        identity.Subject,
			Data:           map[string]interface{}{"changedFields": changed},
		})
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.auditor, identity, AuditInput{
		StudentID:    &student.ID,
		ActionType:   models.AuditDataModification,
		DataCategory: StudentDataCategory(changed[0]),
		Description:  fmt.Sprintf("Aluno atualizado: %s", strings.Join(changed, ", ")),
		LegalBasis:   LegalBasisContract,
		Metadata:     map[string]interface{}{"changedFields": changed},
	})
	s.presentCPF(student, false)
	return student, nil
}

// applyStudentInput copies the non-empty fields of input and returns the
// names of the attributes that changed
func (s *StudentService) applyStudentInput(ctx context.Context, student *models.Student, input models.StudentInput) ([]string, error) {
	var changed []string
	setString := func(name string, dst *string, value string) {
		value = strings.TrimSpace(value)
		if value != "" && value != *dst {
			*dst = value
			changed = append(changed, name)
		}
	}
	setPtr := func(name string, dst **string, value *string) {
		if value == nil {
			return
		}
		v := trimmedPtr(value)
		if utils.Deref(*dst) != *v {
			*dst = utils.NonEmptyPtr(*v)
			changed = append(changed, name)
		}
	}

	setString("name", &student.Name, input.Name)
	if email := strings.ToLower(strings.TrimSpace(input.Email)); email != "" && email != student.Email {
		enc, err := s.encrypt(email)
		if err != nil {
			return nil, err
		}
		student.Email = email
		student.EncryptedEmail = enc
		changed = append(changed, "email")
	}
	if phone := utils.OnlyDigits(input.Phone); phone != "" && phone != student.Phone {
		enc, err := s.encrypt(phone)
		if err != nil {
			return nil, err
		}
		student.Phone = phone
		student.EncryptedPhone = enc
		changed = append(changed, "phone")
	}
	if input.CPF != nil && utils.OnlyDigits(*input.CPF) != "" {
		hash := encryption.HashCPF(*input.CPF)
		if student.CPFHash == nil || *student.CPFHash != hash {
			existing, err := s.students.FindByCPFHash(ctx, student.OrganizationID, hash)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != student.ID {
				return nil, apperrors.NewConflictError("Aluno", "Já existe um aluno com este CPF")
			}
			if s.cipher == nil {
				return nil, apperrors.NewInternalError("Falha ao proteger CPF", apperrors.ErrEncryptionKeyUnset)
			}
			enc, err := s.cipher.EncryptCPF(*input.CPF)
			if err != nil {
				return nil, err
			}
			student.CPF = &enc
			student.CPFHash = &hash
			changed = append(changed, "cpf")
		}
	}
	setString("profession", &student.Profession, input.Profession)
	setPtr("professionalId", &student.ProfessionalID, input.ProfessionalID)
	if input.HasClinic != nil && *input.HasClinic != student.HasClinic {
		student.HasClinic = *input.HasClinic
		changed = append(changed, "hasClinic")
	}
	setPtr("clinicName", &student.ClinicName, input.ClinicName)
	setPtr("clinicCity", &student.ClinicCity, input.ClinicCity)
	if input.Status != nil && models.StudentStatus(*input.Status) != student.Status {
		student.Status = models.StudentStatus(*input.Status)
		changed = append(changed, "status")
	}
	setPtr("assignedCS", &student.AssignedCS, input.AssignedCS)
	setPtr("leadId", &student.LeadID, input.LeadID)
	if input.LGPDConsent != nil && *input.LGPDConsent != student.LGPDConsent {
		student.LGPDConsent = *input.LGPDConsent
		if student.LGPDConsent {
			now := nowFunc()
			student.ConsentGrantedAt = &now
		}
		changed = append(changed, "lgpdConsent")
	}
	setPtr("consentVersion", &student.ConsentVersion, input.ConsentVersion)
	return changed, nil
}

func (s *StudentService) encrypt(value string) (*string, error) {
	if s.cipher == nil {
		return nil, apperrors.NewInternalError("Falha ao proteger dados pessoais", apperrors.ErrEncryptionKeyUnset)
	}
	enc, err := s.cipher.Encrypt(value)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

func validateStudentInput(input models.StudentInput, creating bool) error {
	if creating || input.Name != "" {
		if n := len([]rune(strings.TrimSpace(input.Name))); n < 2 || n > 100 {
			return apperrors.NewValidationError("name", "Nome deve ter entre 2 e 100 caracteres")
		}
	}
	if creating || input.Email != "" {
		if !validator.IsValidEmail(input.Email) {
			return apperrors.NewValidationError("email", "Email inválido")
		}
	}
	if creating || input.Phone != "" {
		if !validator.PhoneDigitsBetween(input.Phone, 10, 11) {
			return apperrors.NewValidationError("phone", "Telefone deve ter 10 ou 11 dígitos")
		}
	}
	if creating && strings.TrimSpace(input.Profession) == "" {
		return apperrors.NewValidationError("profession", "Profissão é obrigatória")
	}
	if input.CPF != nil && utils.OnlyDigits(*input.CPF) != "" {
		if err := validator.ValidateCPF(*input.CPF); err != nil {
			return apperrors.NewValidationError("cpf", err.Error())
		}
	}
	if input.Status != nil && !models.StudentStatus(*input.Status).Valid() {
		return apperrors.NewValidationError("status", "Status inválido")
	}
	return nil
}

// ChurnAlerts lists up to five active students at risk, least recently engaged first
func (s *StudentService) ChurnAlerts(ctx context.Context, identity auth.Identity) ([]models.ChurnAlert, error) {
	orgID := identity.OrganizationID()
	students, err := s.students.ListActive(ctx, orgID)
	if err != nil {
		return nil, err
	}
	late, err := s.enrollments.LatePaymentStudentIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return BuildChurnAlerts(students, late, nowFunc()), nil
}

// BuildChurnAlerts flags late payers and students without recent engagement
func BuildChurnAlerts(students []models.Student, late map[string]bool, now time.Time) []models.ChurnAlert {
	alerts := []models.ChurnAlert{}
	for _, st := range students {
		alert := models.ChurnAlert{StudentID: st.ID, Name: st.Name, LastEngagementAt: st.LastEngagementAt}
		switch {
		case late[st.ID]:
			alert.Reason = ChurnReasonLatePayment
			alert.Risk = models.ChurnAlto
		case st.LastEngagementAt == nil || now.Sub(*st.LastEngagementAt) > EngagementWindow:
			alert.Reason = ChurnReasonNoEngagement
			alert.Risk = st.ChurnRisk
		default:
			continue
		}
		alerts = append(alerts, alert)
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i].LastEngagementAt, alerts[j].LastEngagementAt
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	if len(alerts) > MaxChurnAlerts {
		alerts = alerts[:MaxChurnAlerts]
	}
	return alerts
}

// ComputeChurnRisk derives the churn risk of an active student
func ComputeChurnRisk(student models.Student, latePayment bool, now time.Time) models.ChurnRisk {
	if latePayment {
		return models.ChurnAlto
	}
	if student.LastEngagementAt == nil || now.Sub(*student.LastEngagementAt) > EngagementWindow {
		return models.ChurnMedio
	}
	return models.ChurnBaixo
}

// RefreshChurnRisk recomputes the churn risk of every active student
func (s *StudentService) RefreshChurnRisk(ctx context.Context) (int, error) {
	students, err := s.students.ListActive(ctx, "")
	if err != nil {
		return 0, err
	}

	now := nowFunc()
	lateByOrg := map[string]map[string]bool{}
	updated := 0
	for _, st := range students {
		late, ok := lateByOrg[st.OrganizationID]
		if !ok {
			late, err = s.enrollments.LatePaymentStudentIDs(ctx, st.OrganizationID)
			if err != nil {
				return updated, err
			}
			lateByOrg[st.OrganizationID] = late
		}
		risk := ComputeChurnRisk(st, late[st.ID], now)
		if risk == st.ChurnRisk {
			continue
		}
		if err := s.students.UpdateChurnRisk(ctx, st.ID, risk); err != nil {
			return updated, err
		}
		updated++
	}
	log.Printf("🔄 Churn risk refreshed for %d student(s)", updated)
	return updated, nil
}

// SyncAsaasCustomer creates the Asaas customer of a student when it is missing
func (s *StudentService) SyncAsaasCustomer(ctx context.Context, identity auth.Identity, id string) (*models.Student, error) {
	if s.asaas == nil {
		return nil, apperrors.NewServiceUnavailableError("Asaas", errors.New("ASAAS_API_KEY is not configured"))
	}
	student, err := s.get(ctx, identity.OrganizationID(), id)
	if err != nil {
		return nil, err
	}
	if student.AsaasCustomerID != nil && *student.AsaasCustomerID != "" {
		s.presentCPF(student, false)
		return student, nil
	}

	payload := asaas.CustomerPayload{
		Name:              student.Name,
		Email:             student.Email,
		MobilePhone:       student.Phone,
		ExternalReference: student.ID,
	}
	if student.CPF != nil && s.cipher != nil {
		if cpf, err := s.cipher.Decrypt(*student.CPF); err == nil {
			payload.CpfCnpj = utils.OnlyDigits(cpf)
		}
	}
	if err := asaas.ValidateCustomerPayload(payload); err != nil {
		return nil, err
	}

	customer, err := s.asaas.CreateCustomer(ctx, payload)
	if err != nil {
		return nil, err
	}
	if err := s.students.SetAsaasCustomer(ctx, student.ID, customer.ID); err != nil {
		return nil, err
	}
	student.AsaasCustomerID = &customer.ID
	log.Printf("💳 Student %s linked to Asaas customer %s", student.ID, customer.ID)
	s.presentCPF(student, false)
	return student, nil
}

func (s *StudentService) get(ctx context.Context, orgID, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", id)
	}
	return student, nil
}
