package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const enrollmentColumns = `id, organization_id, student_id, product, cohort, status, start_date, expected_end_date,
	actual_end_date, total_value, installments, installment_value, paid_installments, payment_status, progress,
	modules_completed, practices_completed, created_at, updated_at`

// EnrollmentRepository stores enrollments
type EnrollmentRepository struct {
	baseRepository
}

var _ ports.EnrollmentRepository = (*EnrollmentRepository)(nil)

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db *sql.DB) *EnrollmentRepository {
	return &EnrollmentRepository{baseRepository{db: db}}
}

func scanEnrollment(s rowScanner) (*models.Enrollment, error) {
	var e models.Enrollment
	var status, paymentStatus string
	var cohort sql.NullString
	var start, expectedEnd, actualEnd sql.NullTime

	err := s.Scan(&e.ID, &e.OrganizationID, &e.StudentID, &e.Product, &cohort, &status, &start, &expectedEnd,
		&actualEnd, &e.TotalValue, &e.Installments, &e.InstallmentValue, &e.PaidInstallments, &paymentStatus,
		&e.Progress, &e.ModulesCompleted, &e.PracticesCompleted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Cohort = nullableString(cohort)
	e.Status = models.EnrollmentStatus(status)
	e.PaymentStatus = models.PaymentStatus(paymentStatus)
	e.StartDate = nullableTime(start)
	e.ExpectedEndDate = nullableTime(expectedEnd)
	e.ActualEndDate = nullableTime(actualEnd)
	return &e, nil
}

// Create inserts an enrollment
func (r *EnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableEnrollment, enrollmentColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, e.ID, e.OrganizationID, e.StudentID, e.Product, e.Cohort,
		string(e.Status), e.StartDate, e.ExpectedEndDate, e.ActualEndDate, e.TotalValue, e.Installments,
		e.InstallmentValue, e.PaidInstallments, string(e.PaymentStatus), e.Progress, e.ModulesCompleted,
		e.PracticesCompleted, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

// GetByID loads an enrollment
func (r *EnrollmentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, enrollmentColumns, constants.TableEnrollment)
	e, err := scanEnrollment(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListByStudent returns a student's enrollments, newest first
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, orgID, studentID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND student_id = ? ORDER BY created_at DESC`,
		enrollmentColumns, constants.TableEnrollment)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	out := []models.Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Update writes every mutable column
func (r *EnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	query := fmt.Sprintf(`UPDATE %s SET product = ?, cohort = ?, status = ?, start_date = ?, expected_end_date = ?,
		actual_end_date = ?, total_value = ?, installments = ?, installment_value = ?, paid_installments = ?,
		payment_status = ?, progress = ?, modules_completed = ?, practices_completed = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableEnrollment)
	_, err := r.conn(ctx).ExecContext(ctx, query, e.Product, e.Cohort, string(e.Status), e.StartDate,
		e.ExpectedEndDate, e.ActualEndDate, e.TotalValue, e.Installments, e.InstallmentValue,
		e.PaidInstallments, string(e.PaymentStatus), e.Progress, e.ModulesCompleted, e.PracticesCompleted,
		e.UpdatedAt, e.OrganizationID, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	return nil
}

// LatePaymentStudentIDs returns students with at least one overdue enrollment
func (r *EnrollmentRepository) LatePaymentStudentIDs(ctx context.Context, orgID string) (map[string]bool, error) {
	query := fmt.Sprintf(`SELECT DISTINCT student_id FROM %s WHERE organization_id = ? AND payment_status = ?`, constants.TableEnrollment)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, string(models.PaymentAtrasado))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// CancelByStudent cancels every open enrollment of a student
func (r *EnrollmentRepository) CancelByStudent(ctx context.Context, studentID string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, updated_at = ? WHERE student_id = ? AND status <> ?`, constants.TableEnrollment)
	result, err := r.conn(ctx).ExecContext(ctx, query, string(models.EnrollmentCancelado), time.Now().UTC(),
		studentID, string(models.EnrollmentCancelado))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
