package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/auth"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/gpus/backend/pkg/utils"
)

// EnrollmentService manages product enrollments of students
type EnrollmentService struct {
	enrollments ports.EnrollmentRepository
	students    ports.StudentRepository
	activities  ports.ActivityRepository
	users       ports.UserRepository
	tx          ports.Transactor
}

// NewEnrollmentService creates a new EnrollmentService
func NewEnrollmentService(repos Repositories, infra Infrastructure) *EnrollmentService {
	return &EnrollmentService{
		enrollments: repos.Enrollments,
		students:    repos.Students,
		activities:  repos.Activities,
		users:       repos.Users,
		tx:          infra.Tx,
	}
}

// ListByStudent returns the enrollments of a student
func (s *EnrollmentService) ListByStudent(ctx context.Context, identity auth.Identity, studentID string) ([]models.Enrollment, error) {
	if _, err := s.student(ctx, identity.OrganizationID(), studentID); err != nil {
		return nil, err
	}
	return s.enrollments.ListByStudent(ctx, identity.OrganizationID(), studentID)
}

// Create enrolls a student in a product
func (s *EnrollmentService) Create(ctx context.Context, identity auth.Identity, input models.EnrollmentInput) (*models.Enrollment, error) {
	orgID := identity.OrganizationID()
	if strings.TrimSpace(input.StudentID) == "" {
		return nil, apperrors.NewValidationError("studentId", "Aluno é obrigatório")
	}
	if !models.ValidProduct(input.Product) || input.Product == models.ProductIndefinido {
		return nil, apperrors.NewValidationError("product", "Produto inválido")
	}
	if err := validateEnrollmentInput(input); err != nil {
		return nil, err
	}
	student, err := s.student(ctx, orgID, input.StudentID)
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	enrollment := &models.Enrollment{
		ID:             utils.GenerateID(),
		OrganizationID: orgID,
		StudentID:      student.ID,
		Product:        input.Product,
		Status:         models.EnrollmentAguardandoInicio,
		PaymentStatus:  models.PaymentEmDia,
		Installments:   1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	applyEnrollmentInput(enrollment, input)
	if input.InstallmentValue == nil && enrollment.Installments > 0 {
		enrollment.InstallmentValue = round2(enrollment.TotalValue / float64(enrollment.Installments))
	}

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.enrollments.Create(ctx, enrollment); err != nil {
			return err
		}
		activity := newActivity(orgID, constants.ActivityEnrollmentCreated, fmt.Sprintf("Matrícula criada: %s", enrollment.Product))
		activity.StudentID = &student.ID
		activity.EnrollmentID = &enrollment.ID
		activity.UserID = utils.NonEmptyPtr(actorUserID(ctx, s.users, identity))
		if err := s.activities.Create(ctx, activity); err != nil {
			return err
		}
		return s.refreshProducts(ctx, orgID, student.ID)
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// Update patches an enrollment
func (s *EnrollmentService) Update(ctx context.Context, identity auth.Identity, id string, input models.EnrollmentInput) (*models.Enrollment, error) {
	orgID := identity.OrganizationID()
	if input.Product != "" && (!models.ValidProduct(input.Product) || input.Product == models.ProductIndefinido) {
		return nil, apperrors.NewValidationError("product", "Produto inválido")
	}
	if err := validateEnrollmentInput(input); err != nil {
		return nil, err
	}
	enrollment, err := s.enrollments.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, apperrors.NewNotFoundError("Matrícula", id)
	}

	if input.Product != "" {
		enrollment.Product = input.Product
	}
	applyEnrollmentInput(enrollment, input)
	if enrollment.Status == models.EnrollmentConcluido && enrollment.ActualEndDate == nil {
		now := nowFunc()
		enrollment.ActualEndDate = &now
	}
	enrollment.UpdatedAt = nowFunc()

	err = withinTx(ctx, s.tx, func(ctx context.Context) error {
		if err := s.enrollments.Update(ctx, enrollment); err != nil {
			return err
		}
		return s.refreshProducts(ctx, orgID, enrollment.StudentID)
	})
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

// refreshProducts rewrites the denormalized product list of a student
func (s *EnrollmentService) refreshProducts(ctx context.Context, orgID, studentID string) error {
	enrollments, err := s.enrollments.ListByStudent(ctx, orgID, studentID)
	if err != nil {
		return err
	}
	return s.students.SetProducts(ctx, studentID, StudentProducts(enrollments))
}

// StudentProducts returns the distinct products of the non-cancelled enrollments, sorted
func StudentProducts(enrollments []models.Enrollment) []string {
	seen := map[string]bool{}
	products := []string{}
	for _, e := range enrollments {
		if e.Status == models.EnrollmentCancelado || seen[e.Product] {
			continue
		}
		seen[e.Product] = true
		products = append(products, e.Product)
	}
	sort.Strings(products)
	return products
}

func (s *EnrollmentService) student(ctx context.Context, orgID, id string) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, apperrors.NewNotFoundError("Aluno", id)
	}
	return student, nil
}

func validateEnrollmentInput(input models.EnrollmentInput) error {
	if input.Status != nil && !models.EnrollmentStatus(*input.Status).Valid() {
		return apperrors.NewValidationError("status", "Status inválido")
	}
	if input.PaymentStatus != nil && !models.PaymentStatus(*input.PaymentStatus).Valid() {
		return apperrors.NewValidationError("paymentStatus", "Status de pagamento inválido")
	}
	if input.Progress != nil && (*input.Progress < 0 || *input.Progress > 100) {
		return apperrors.NewValidationError("progress", "Progresso deve estar entre 0 e 100")
	}
	if input.Installments != nil && *input.Installments < 1 {
		return apperrors.NewValidationError("installments", "Parcelas deve ser pelo menos 1")
	}
	if input.TotalValue != nil && *input.TotalValue < 0 {
		return apperrors.NewValidationError("totalValue", "Valor total inválido")
	}
	if input.StartDate != nil && input.ExpectedEndDate != nil && input.ExpectedEndDate.Before(*input.StartDate) {
		return apperrors.NewValidationError("expectedEndDate", "Data de término anterior ao início")
	}
	return nil
}

func applyEnrollmentInput(e *models.Enrollment, input models.EnrollmentInput) {
	if input.Cohort != nil {
		e.Cohort = utils.NonEmptyPtr(strings.TrimSpace(*input.Cohort))
	}
	if input.Status != nil {
		e.Status = models.EnrollmentStatus(*input.Status)
	}
	if input.StartDate != nil {
		e.StartDate = input.StartDate
	}
	if input.ExpectedEndDate != nil {
		e.ExpectedEndDate = input.ExpectedEndDate
	}
	if input.ActualEndDate != nil {
		e.ActualEndDate = input.ActualEndDate
	}
	if input.TotalValue != nil {
		e.TotalValue = *input.TotalValue
	}
	if input.Installments != nil {
		e.Installments = *input.Installments
	}
	if input.InstallmentValue != nil {
		e.InstallmentValue = *input.InstallmentValue
	}
	if input.PaymentStatus != nil {
		e.PaymentStatus = models.PaymentStatus(*input.PaymentStatus)
	}
	if input.Progress != nil {
		e.Progress = *input.Progress
	}
	if input.ModulesCompleted != nil {
		e.ModulesCompleted = *input.ModulesCompleted
	}
	if input.PracticesCompleted != nil {
		e.PracticesCompleted = *input.PracticesCompleted
	}
}
