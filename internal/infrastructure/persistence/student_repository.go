package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const studentColumns = `id, organization_id, lead_id, name, email, phone, cpf, cpf_hash, encrypted_email, encrypted_phone,
	profession, professional_id, has_clinic, clinic_name, clinic_city, status, assigned_cs, products, churn_risk,
	last_engagement_at, lgpd_consent, consent_granted_at, consent_version, data_retention_until, asaas_customer_id,
	created_at, updated_at`

// StudentRepository stores students. CPF, e-mail and phone ciphertexts are
// produced by the service layer; this repository never sees the key.
type StudentRepository struct {
	baseRepository
}

var _ ports.StudentRepository = (*StudentRepository)(nil)

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{baseRepository{db: db}}
}

func scanStudent(s rowScanner) (*models.Student, error) {
	var st models.Student
	var status, churn string
	var leadID, cpf, cpfHash, encEmail, encPhone, professionalID, clinicName, clinicCity sql.NullString
	var assignedCS, products, consentVersion, asaasID sql.NullString
	var lastEngagement, consentAt, retention sql.NullTime

	err := s.Scan(&st.ID, &st.OrganizationID, &leadID, &st.Name, &st.Email, &st.Phone, &cpf, &cpfHash,
		&encEmail, &encPhone, &st.Profession, &professionalID, &st.HasClinic, &clinicName, &clinicCity,
		&status, &assignedCS, &products, &churn, &lastEngagement, &st.LGPDConsent, &consentAt,
		&consentVersion, &retention, &asaasID, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}

	st.Status = models.StudentStatus(status)
	st.ChurnRisk = models.ChurnRisk(churn)
	st.LeadID = nullableString(leadID)
	st.CPF = nullableString(cpf)
	st.CPFHash = nullableString(cpfHash)
	st.EncryptedEmail = nullableString(encEmail)
	st.EncryptedPhone = nullableString(encPhone)
	st.ProfessionalID = nullableString(professionalID)
	st.ClinicName = nullableString(clinicName)
	st.ClinicCity = nullableString(clinicCity)
	st.AssignedCS = nullableString(assignedCS)
	st.Products = stringList(products)
	st.LastEngagementAt = nullableTime(lastEngagement)
	st.ConsentGrantedAt = nullableTime(consentAt)
	st.ConsentVersion = nullableString(consentVersion)
	st.DataRetentionUntil = nullableTime(retention)
	st.AsaasCustomerID = nullableString(asaasID)
	return &st, nil
}

func (r *StudentRepository) queryStudents(ctx context.Context, query string, args ...interface{}) ([]models.Student, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := []models.Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

func (r *StudentRepository) queryStudent(ctx context.Context, query string, args ...interface{}) (*models.Student, error) {
	st, err := scanStudent(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load student: %w", err)
	}
	return st, nil
}

// Create inserts a student
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableStudent, studentColumns)

	_, err := r.conn(ctx).ExecContext(ctx, query, s.ID, s.OrganizationID, s.LeadID, s.Name, s.Email, s.Phone,
		s.CPF, s.CPFHash, s.EncryptedEmail, s.EncryptedPhone, s.Profession, s.ProfessionalID, s.HasClinic,
		s.ClinicName, s.ClinicCity, string(s.Status), s.AssignedCS, toJSON(s.Products), string(s.ChurnRisk),
		s.LastEngagementAt, s.LGPDConsent, s.ConsentGrantedAt, s.ConsentVersion, s.DataRetentionUntil,
		s.AsaasCustomerID, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// GetByID loads a student of the organization
func (r *StudentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, studentColumns, constants.TableStudent)
	return r.queryStudent(ctx, query, orgID, id)
}

// FindByCPFHash looks a student up by the SHA-256 of the CPF digits
func (r *StudentRepository) FindByCPFHash(ctx context.Context, orgID, hash string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND cpf_hash = ? LIMIT 1`, studentColumns, constants.TableStudent)
	return r.queryStudent(ctx, query, orgID, hash)
}

// FindForCustomer matches an Asaas customer by CPF hash first, then e-mail
func (r *StudentRepository) FindForCustomer(ctx context.Context, cpfHash, email string) (*models.Student, error) {
	if cpfHash != "" {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE cpf_hash = ? LIMIT 1`, studentColumns, constants.TableStudent)
		st, err := r.queryStudent(ctx, query, cpfHash)
		if err != nil || st != nil {
			return st, err
		}
	}
	if email == "" {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE LOWER(email) = LOWER(?) LIMIT 1`, studentColumns, constants.TableStudent)
	return r.queryStudent(ctx, query, email)
}

// FindByLeadID loads the student converted from a lead
func (r *StudentRepository) FindByLeadID(ctx context.Context, orgID, leadID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND lead_id = ? LIMIT 1`, studentColumns, constants.TableStudent)
	return r.queryStudent(ctx, query, orgID, leadID)
}

// FindByAsaasCustomer loads the student linked to an Asaas customer
func (r *StudentRepository) FindByAsaasCustomer(ctx context.Context, customerID string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE asaas_customer_id = ? LIMIT 1`, studentColumns, constants.TableStudent)
	return r.queryStudent(ctx, query, customerID)
}

// List filters students, newest first
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.ChurnRisk != "" {
		where = append(where, "churn_risk = ?")
		args = append(args, string(filter.ChurnRisk))
	}
	if filter.Product != "" {
		where = append(where, "JSON_CONTAINS(products, JSON_QUOTE(?))")
		args = append(args, filter.Product)
	}
	if filter.AssignedCS != "" {
		where = append(where, "assigned_cs = ?")
		args = append(args, filter.AssignedCS)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := likePattern(q)
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?`,
		studentColumns, constants.TableStudent, strings.Join(where, " AND "))
	return r.queryStudents(ctx, query, args...)
}

// ListActive returns active students; an empty orgID spans every organization
func (r *StudentRepository) ListActive(ctx context.Context, orgID string) ([]models.Student, error) {
	if orgID == "" {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ?`, studentColumns, constants.TableStudent)
		return r.queryStudents(ctx, query, string(models.StudentAtivo))
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND status = ?`, studentColumns, constants.TableStudent)
	return r.queryStudents(ctx, query, orgID, string(models.StudentAtivo))
}

// ListRetentionExpired returns students whose retention window has passed
func (r *StudentRepository) ListRetentionExpired(ctx context.Context, now time.Time, limit int) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE data_retention_until IS NOT NULL AND data_retention_until < ? ORDER BY data_retention_until ASC LIMIT ?`,
		studentColumns, constants.TableStudent)
	return r.queryStudents(ctx, query, now, limit)
}

// Update writes every mutable column
func (r *StudentRepository) Update(ctx context.Context, s *models.Student) error {
	query := fmt.Sprintf(`UPDATE %s SET lead_id = ?, name = ?, email = ?, phone = ?, cpf = ?, cpf_hash = ?,
		encrypted_email = ?, encrypted_phone = ?, profession = ?, professional_id = ?, has_clinic = ?,
		clinic_name = ?, clinic_city = ?, status = ?, assigned_cs = ?, products = ?, churn_risk = ?,
		last_engagement_at = ?, lgpd_consent = ?, consent_granted_at = ?, consent_version = ?,
		data_retention_until = ?, asaas_customer_id = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableStudent)

	_, err := r.conn(ctx).ExecContext(ctx, query, s.LeadID, s.Name, s.Email, s.Phone, s.CPF, s.CPFHash,
		s.EncryptedEmail, s.EncryptedPhone, s.Profession, s.ProfessionalID, s.HasClinic, s.ClinicName,
		s.ClinicCity, string(s.Status), s.AssignedCS, toJSON(s.Products), string(s.ChurnRisk),
		s.LastEngagementAt, s.LGPDConsent, s.ConsentGrantedAt, s.ConsentVersion, s.DataRetentionUntil,
		s.AsaasCustomerID, s.UpdatedAt, s.OrganizationID, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	return nil
}

// UpdateChurnRisk sets the computed churn risk
func (r *StudentRepository) UpdateChurnRisk(ctx context.Context, id string, risk models.ChurnRisk) error {
	query := fmt.Sprintf(`UPDATE %s SET churn_risk = ? WHERE id = ?`, constants.TableStudent)
	_, err := r.conn(ctx).ExecContext(ctx, query, string(risk), id)
	return err
}

// SetProducts replaces the product list
func (r *StudentRepository) SetProducts(ctx context.Context, id string, products []string) error {
	query := fmt.Sprintf(`UPDATE %s SET products = ?, updated_at = ? WHERE id = ?`, constants.TableStudent)
	_, err := r.conn(ctx).ExecContext(ctx, query, toJSON(products), time.Now().UTC(), id)
	return err
}

// SetAsaasCustomer links the student to an Asaas customer
func (r *StudentRepository) SetAsaasCustomer(ctx context.Context, id, customerID string) error {
	query := fmt.Sprintf(`UPDATE %s SET asaas_customer_id = ?, updated_at = ? WHERE id = ?`, constants.TableStudent)
	_, err := r.conn(ctx).ExecContext(ctx, query, customerID, time.Now().UTC(), id)
	return err
}
