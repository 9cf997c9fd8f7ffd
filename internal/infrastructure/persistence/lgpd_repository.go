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

const (
	lgpdRequestColumns = `id, organization_id, student_id, request_type, status, description, identity_proof_hash, details,
	response, response_data, rejection_reason, processing_notes, processed_by, ip_address, user_agent,
	created_at, updated_at, completed_at`
	auditColumns = `id, organization_id, student_id, actor_id, actor_role, action_type, data_category, description,
	legal_basis, metadata, ip_address, user_agent, retention_days, created_at`
	consentColumns = `id, organization_id, student_id, consent_type, version, granted, granted_at, expires_at,
	data_categories, withdrawn, withdrawn_at, withdrawal_reason, ip_address, created_at`
	retentionColumns = `id, organization_id, data_category, retention_days, legal_basis, description, automatic_deletion,
	notification_before_deletion, active, created_at, updated_at`
	breachColumns = `id, organization_id, incident_id, breach_type, description, affected_students, data_categories,
	severity, detected_at, started_at, contained_at, reported_to_anpd, anpd_reported_at, notified_affected,
	notified_at, notification_deadline, actions, registered_by, created_at, updated_at`
)

// LGPDRepository stores data-subject requests, the audit trail, consents,
// retention policies and breach records
type LGPDRepository struct {
	baseRepository
}

var _ ports.LGPDRepository = (*LGPDRepository)(nil)

// NewLGPDRepository creates a new LGPDRepository
func NewLGPDRepository(db *sql.DB) *LGPDRepository {
	return &LGPDRepository{baseRepository{db: db}}
}

// ---- requests ----

func scanLGPDRequest(s rowScanner) (*models.LGPDRequest, error) {
	var req models.LGPDRequest
	var requestType, status string
	var details, response, responseData, rejection, notes, processedBy, ip, ua sql.NullString
	var completedAt sql.NullTime
	err := s.Scan(&req.ID, &req.OrganizationID, &req.StudentID, &requestType, &status, &req.Description,
		&req.IdentityProofHash, &details, &response, &responseData, &rejection, &notes, &processedBy, &ip, &ua,
		&req.CreatedAt, &req.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	req.RequestType = models.LGPDRequestType(requestType)
	req.Status = models.LGPDRequestStatus(status)
	fromJSON(details, &req.Details)
	req.Response = nullableString(response)
	fromJSON(responseData, &req.ResponseData)
	req.RejectionReason = nullableString(rejection)
	req.ProcessingNotes = nullableString(notes)
	req.ProcessedBy = nullableString(processedBy)
	req.IPAddress = nullableString(ip)
	req.UserAgent = nullableString(ua)
	req.CompletedAt = nullableTime(completedAt)
	return &req, nil
}

func (r *LGPDRepository) queryRequests(ctx context.Context, query string, args ...interface{}) ([]models.LGPDRequest, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lgpd requests: %w", err)
	}
	defer rows.Close()

	out := []models.LGPDRequest{}
	for rows.Next() {
		req, err := scanLGPDRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// CreateRequest inserts a data-subject request
func (r *LGPDRepository) CreateRequest(ctx context.Context, req *models.LGPDRequest) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableLGPDRequest, lgpdRequestColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, req.ID, req.OrganizationID, req.StudentID, string(req.RequestType),
		string(req.Status), req.Description, req.IdentityProofHash, toJSON(req.Details), req.Response,
		toJSON(req.ResponseData), req.RejectionReason, req.ProcessingNotes, req.ProcessedBy, req.IPAddress,
		req.UserAgent, req.CreatedAt, req.UpdatedAt, req.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert lgpd request: %w", err)
	}
	return nil
}

// GetRequest loads a request
func (r *LGPDRepository) GetRequest(ctx context.Context, orgID, id string) (*models.LGPDRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, lgpdRequestColumns, constants.TableLGPDRequest)
	req, err := scanLGPDRequest(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return req, err
}

// UpdateRequest writes the processing state
func (r *LGPDRepository) UpdateRequest(ctx context.Context, req *models.LGPDRequest) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, response = ?, response_data = ?, rejection_reason = ?,
		processing_notes = ?, processed_by = ?, updated_at = ?, completed_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableLGPDRequest)
	_, err := r.conn(ctx).ExecContext(ctx, query, string(req.Status), req.Response, toJSON(req.ResponseData),
		req.RejectionReason, req.ProcessingNotes, req.ProcessedBy, req.UpdatedAt, req.CompletedAt,
		req.OrganizationID, req.ID)
	if err != nil {
		return fmt.Errorf("failed to update lgpd request: %w", err)
	}
	return nil
}

// ListRequests filters requests, newest first
func (r *LGPDRepository) ListRequests(ctx context.Context, filter models.LGPDRequestFilter) ([]models.LGPDRequest, error) {
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.RequestType != "" {
		where = append(where, "request_type = ?")
		args = append(args, string(filter.RequestType))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?`,
		lgpdRequestColumns, constants.TableLGPDRequest, strings.Join(where, " AND "))
	return r.queryRequests(ctx, query, args...)
}

// ListRequestsSince returns requests opened at or after since
func (r *LGPDRepository) ListRequestsSince(ctx context.Context, orgID string, since time.Time) ([]models.LGPDRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND created_at >= ? ORDER BY created_at ASC`,
		lgpdRequestColumns, constants.TableLGPDRequest)
	return r.queryRequests(ctx, query, orgID, since)
}

// ---- audit ----

// CreateAudit appends an audit entry. Entries are never updated.
func (r *LGPDRepository) CreateAudit(ctx context.Context, e *models.AuditEntry) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableLGPDAudit, auditColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, e.ID, e.OrganizationID, e.StudentID, e.ActorID, e.ActorRole,
		string(e.ActionType), e.DataCategory, e.Description, e.LegalBasis, toJSON(e.Metadata), e.IPAddress,
		e.UserAgent, e.RetentionDays, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func (r *LGPDRepository) queryAudit(ctx context.Context, query string, args ...interface{}) ([]models.AuditEntry, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		var action string
		var studentID, metadata, ip, ua sql.NullString
		if err := rows.Scan(&e.ID, &e.OrganizationID, &studentID, &e.ActorID, &e.ActorRole, &action,
			&e.DataCategory, &e.Description, &e.LegalBasis, &metadata, &ip, &ua, &e.RetentionDays, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActionType = models.AuditAction(action)
		e.StudentID = nullableString(studentID)
		fromJSON(metadata, &e.Metadata)
		e.IPAddress = nullableString(ip)
		e.UserAgent = nullableString(ua)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAudit filters the audit log, newest first
func (r *LGPDRepository) ListAudit(ctx context.Context, filter models.AuditFilter) ([]models.AuditEntry, error) {
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.ActionType != "" {
		where = append(where, "action_type = ?")
		args = append(args, string(filter.ActionType))
	}
	if filter.DataCategory != "" {
		where = append(where, "data_category = ?")
		args = append(args, filter.DataCategory)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_at DESC LIMIT ?`,
		auditColumns, constants.TableLGPDAudit, strings.Join(where, " AND "))
	return r.queryAudit(ctx, query, args...)
}

// ListAuditSince returns entries written at or after since
func (r *LGPDRepository) ListAuditSince(ctx context.Context, orgID string, since time.Time) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND created_at >= ? ORDER BY created_at ASC`,
		auditColumns, constants.TableLGPDAudit)
	return r.queryAudit(ctx, query, orgID, since)
}

// ---- consents ----

func scanConsent(s rowScanner) (*models.Consent, error) {
	var c models.Consent
	var categories, reason, ip sql.NullString
	var grantedAt, expiresAt, withdrawnAt sql.NullTime
	err := s.Scan(&c.ID, &c.OrganizationID, &c.StudentID, &c.ConsentType, &c.Version, &c.Granted, &grantedAt,
		&expiresAt, &categories, &c.Withdrawn, &withdrawnAt, &reason, &ip, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.GrantedAt = nullableTime(grantedAt)
	c.ExpiresAt = nullableTime(expiresAt)
	c.DataCategories = stringList(categories)
	c.WithdrawnAt = nullableTime(withdrawnAt)
	c.WithdrawalReason = nullableString(reason)
	c.IPAddress = nullableString(ip)
	return &c, nil
}

func (r *LGPDRepository) queryConsents(ctx context.Context, query string, args ...interface{}) ([]models.Consent, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query consents: %w", err)
	}
	defer rows.Close()

	out := []models.Consent{}
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CreateConsent inserts a consent record
func (r *LGPDRepository) CreateConsent(ctx context.Context, c *models.Consent) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableLGPDConsent, consentColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.ID, c.OrganizationID, c.StudentID, c.ConsentType, c.Version,
		c.Granted, c.GrantedAt, c.ExpiresAt, toJSON(c.DataCategories), c.Withdrawn, c.WithdrawnAt,
		c.WithdrawalReason, c.IPAddress, c.CreatedAt)
	return err
}

// GetConsent loads a consent
func (r *LGPDRepository) GetConsent(ctx context.Context, orgID, id string) (*models.Consent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, consentColumns, constants.TableLGPDConsent)
	c, err := scanConsent(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// UpdateConsent writes the withdrawal state
func (r *LGPDRepository) UpdateConsent(ctx context.Context, c *models.Consent) error {
	query := fmt.Sprintf(`UPDATE %s SET granted = ?, withdrawn = ?, withdrawn_at = ?, withdrawal_reason = ?, expires_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableLGPDConsent)
	_, err := r.conn(ctx).ExecContext(ctx, query, c.Granted, c.Withdrawn, c.WithdrawnAt, c.WithdrawalReason,
		c.ExpiresAt, c.OrganizationID, c.ID)
	return err
}

// ListConsentsByStudent returns a student's consents, newest first
func (r *LGPDRepository) ListConsentsByStudent(ctx context.Context, orgID, studentID string) ([]models.Consent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND student_id = ? ORDER BY created_at DESC`,
		consentColumns, constants.TableLGPDConsent)
	return r.queryConsents(ctx, query, orgID, studentID)
}

// ListConsentsSince returns consents granted or withdrawn at or after since
func (r *LGPDRepository) ListConsentsSince(ctx context.Context, orgID string, since time.Time) ([]models.Consent, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND (created_at >= ? OR withdrawn_at >= ?)`,
		consentColumns, constants.TableLGPDConsent)
	return r.queryConsents(ctx, query, orgID, since, since)
}

// WithdrawConsentsByStudent withdraws every active consent of a student
func (r *LGPDRepository) WithdrawConsentsByStudent(ctx context.Context, studentID, reason string, at time.Time) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET withdrawn = TRUE, withdrawn_at = ?, withdrawal_reason = ?
		WHERE student_id = ? AND withdrawn = FALSE`, constants.TableLGPDConsent)
	result, err := r.conn(ctx).ExecContext(ctx, query, at, reason, studentID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ---- retention ----

func scanRetentionPolicy(s rowScanner) (*models.RetentionPolicy, error) {
	var p models.RetentionPolicy
	var description sql.NullString
	err := s.Scan(&p.ID, &p.OrganizationID, &p.DataCategory, &p.RetentionDays, &p.LegalBasis, &description,
		&p.AutomaticDeletion, &p.NotificationBeforeDeletion, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = nullableString(description)
	return &p, nil
}

func (r *LGPDRepository) queryPolicy(ctx context.Context, query string, args ...interface{}) (*models.RetentionPolicy, error) {
	p, err := scanRetentionPolicy(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListRetentionPolicies returns every policy of the organization
func (r *LGPDRepository) ListRetentionPolicies(ctx context.Context, orgID string) ([]models.RetentionPolicy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY data_category`, retentionColumns, constants.TableLGPDRetention)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention policies: %w", err)
	}
	defer rows.Close()

	out := []models.RetentionPolicy{}
	for rows.Next() {
		p, err := scanRetentionPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetRetentionPolicy loads a policy
func (r *LGPDRepository) GetRetentionPolicy(ctx context.Context, orgID, id string) (*models.RetentionPolicy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, retentionColumns, constants.TableLGPDRetention)
	return r.queryPolicy(ctx, query, orgID, id)
}

// FindRetentionPolicy loads the active policy of a category
func (r *LGPDRepository) FindRetentionPolicy(ctx context.Context, orgID, category string) (*models.RetentionPolicy, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND data_category = ? AND active = TRUE`,
		retentionColumns, constants.TableLGPDRetention)
	return r.queryPolicy(ctx, query, orgID, category)
}

// UpsertRetentionPolicy writes a policy keyed by (organization, category)
func (r *LGPDRepository) UpsertRetentionPolicy(ctx context.Context, p *models.RetentionPolicy) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE retention_days = VALUES(retention_days), legal_basis = VALUES(legal_basis),
		description = VALUES(description), automatic_deletion = VALUES(automatic_deletion),
		notification_before_deletion = VALUES(notification_before_deletion), active = VALUES(active),
		updated_at = VALUES(updated_at)`, constants.TableLGPDRetention, retentionColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, p.ID, p.OrganizationID, p.DataCategory, p.RetentionDays,
		p.LegalBasis, p.Description, p.AutomaticDeletion, p.NotificationBeforeDeletion, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

// DeleteRetentionPolicy removes a policy
func (r *LGPDRepository) DeleteRetentionPolicy(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableLGPDRetention)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, id)
	return err
}

// ---- breaches ----

func scanBreach(s rowScanner) (*models.DataBreach, error) {
	var b models.DataBreach
	var affected, categories, actions sql.NullString
	var startedAt, containedAt, anpdAt, notifiedAt sql.NullTime
	err := s.Scan(&b.ID, &b.OrganizationID, &b.IncidentID, &b.BreachType, &b.Description, &affected, &categories,
		&b.Severity, &b.DetectedAt, &startedAt, &containedAt, &b.ReportedToANPD, &anpdAt, &b.NotifiedAffected,
		&notifiedAt, &b.NotificationDeadline, &actions, &b.RegisteredBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.AffectedStudents = stringList(affected)
	b.DataCategories = stringList(categories)
	b.Actions = stringList(actions)
	b.StartedAt = nullableTime(startedAt)
	b.ContainedAt = nullableTime(containedAt)
	b.ANPDReportedAt = nullableTime(anpdAt)
	b.NotifiedAt = nullableTime(notifiedAt)
	return &b, nil
}

// CreateBreach inserts a breach record
func (r *LGPDRepository) CreateBreach(ctx context.Context, b *models.DataBreach) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		constants.TableLGPDDataBreach, breachColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, b.ID, b.OrganizationID, b.IncidentID, b.BreachType, b.Description,
		toJSON(b.AffectedStudents), toJSON(b.DataCategories), b.Severity, b.DetectedAt, b.StartedAt, b.ContainedAt,
		b.ReportedToANPD, b.ANPDReportedAt, b.NotifiedAffected, b.NotifiedAt, b.NotificationDeadline,
		toJSON(b.Actions), b.RegisteredBy, b.CreatedAt, b.UpdatedAt)
	return err
}

// GetBreach loads a breach
func (r *LGPDRepository) GetBreach(ctx context.Context, orgID, id string) (*models.DataBreach, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, breachColumns, constants.TableLGPDDataBreach)
	b, err := scanBreach(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// UpdateBreach writes every mutable column
func (r *LGPDRepository) UpdateBreach(ctx context.Context, b *models.DataBreach) error {
	query := fmt.Sprintf(`UPDATE %s SET breach_type = ?, description = ?, affected_students = ?, data_categories = ?,
		severity = ?, started_at = ?, contained_at = ?, reported_to_anpd = ?, anpd_reported_at = ?,
		notified_affected = ?, notified_at = ?, actions = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableLGPDDataBreach)
	_, err := r.conn(ctx).ExecContext(ctx, query, b.BreachType, b.Description, toJSON(b.AffectedStudents),
		toJSON(b.DataCategories), b.Severity, b.StartedAt, b.ContainedAt, b.ReportedToANPD, b.ANPDReportedAt,
		b.NotifiedAffected, b.NotifiedAt, toJSON(b.Actions), b.UpdatedAt, b.OrganizationID, b.ID)
	return err
}

// ListBreaches returns breaches, most recently detected first
func (r *LGPDRepository) ListBreaches(ctx context.Context, orgID string) ([]models.DataBreach, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY detected_at DESC`, breachColumns, constants.TableLGPDDataBreach)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breaches: %w", err)
	}
	defer rows.Close()

	out := []models.DataBreach{}
	for rows.Next() {
		b, err := scanBreach(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
