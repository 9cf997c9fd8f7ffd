package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/internal/infrastructure/database"
	"github.com/gpus/backend/pkg/constants"
	apperrors "github.com/gpus/backend/pkg/errors"
)

const (
	paymentColumns = `id, organization_id, asaas_payment_id, asaas_customer_id, asaas_subscription_id, student_id,
	enrollment_id, value, net_value, status, billing_type, due_date, confirmed_date, payment_date, invoice_url,
	description, installment_number, created_at, updated_at`
	webhookColumns = "id, idempotency_key, event, payload, status, attempts, error, next_retry_at, processed_at, retention_until, created_at"
)

// Asaas payment statuses grouped for the financial summary
var (
	paidPaymentStatuses    = []string{"RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH"}
	pendingPaymentStatuses = []string{"PENDING"}
	overduePaymentStatuses = []string{"OVERDUE"}
)

// PaymentRepository stores Asaas mirrors and received webhooks
type PaymentRepository struct {
	baseRepository
}

var _ ports.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{baseRepository{db: db}}
}

func scanPayment(s rowScanner) (*models.Payment, error) {
	var p models.Payment
	var subscriptionID, studentID, enrollmentID, invoiceURL, description sql.NullString
	var netValue sql.NullFloat64
	var due, confirmed, paid sql.NullTime
	var installment sql.NullInt64
	err := s.Scan(&p.ID, &p.OrganizationID, &p.AsaasPaymentID, &p.AsaasCustomerID, &subscriptionID, &studentID,
		&enrollmentID, &p.Value, &netValue, &p.Status, &p.BillingType, &due, &confirmed, &paid, &invoiceURL,
		&description, &installment, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.AsaasSubscriptionID = nullableString(subscriptionID)
	p.StudentID = nullableString(studentID)
	p.EnrollmentID = nullableString(enrollmentID)
	p.NetValue = nullableFloat(netValue)
	p.DueDate = nullableTime(due)
	p.ConfirmedDate = nullableTime(confirmed)
	p.PaymentDate = nullableTime(paid)
	p.InvoiceURL = nullableString(invoiceURL)
	p.Description = nullableString(description)
	p.InstallmentNumber = nullableInt(installment)
	return &p, nil
}

// UpsertPayment inserts or refreshes a payment keyed by its Asaas id
func (r *PaymentRepository) UpsertPayment(ctx context.Context, p *models.Payment) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE asaas_subscription_id = VALUES(asaas_subscription_id),
		student_id = COALESCE(VALUES(student_id), student_id), enrollment_id = COALESCE(VALUES(enrollment_id), enrollment_id),
		value = VALUES(value), net_value = VALUES(net_value), status = VALUES(status), billing_type = VALUES(billing_type),
		due_date = VALUES(due_date), confirmed_date = VALUES(confirmed_date), payment_date = VALUES(payment_date),
		invoice_url = VALUES(invoice_url), description = VALUES(description),
		installment_number = VALUES(installment_number), updated_at = VALUES(updated_at)`,
		constants.TableAsaasPayment, paymentColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, p.ID, p.OrganizationID, p.AsaasPaymentID, p.AsaasCustomerID,
		p.AsaasSubscriptionID, p.StudentID, p.EnrollmentID, p.Value, p.NetValue, p.Status, p.BillingType, p.DueDate,
		p.ConfirmedDate, p.PaymentDate, p.InvoiceURL, p.Description, p.InstallmentNumber, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert payment: %w", err)
	}
	return nil
}

// GetPaymentByAsaasID loads a payment by the provider's id
func (r *PaymentRepository) GetPaymentByAsaasID(ctx context.Context, asaasID string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE asaas_payment_id = ?`, paymentColumns, constants.TableAsaasPayment)
	p, err := scanPayment(r.conn(ctx).QueryRowContext(ctx, query, asaasID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListPaymentsByStudent returns a student's payments by due date
func (r *PaymentRepository) ListPaymentsByStudent(ctx context.Context, orgID, studentID string) ([]models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND student_id = ? ORDER BY due_date DESC`,
		paymentColumns, constants.TableAsaasPayment)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	out := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// FinancialSummary sums payments by status group
func (r *PaymentRepository) FinancialSummary(ctx context.Context, orgID string) (*models.FinancialSummary, error) {
	all := append(append(append([]string{}, paidPaymentStatuses...), pendingPaymentStatuses...), overduePaymentStatuses...)
	query := fmt.Sprintf(`SELECT status, COUNT(*), COALESCE(SUM(value), 0) FROM %s
		WHERE organization_id = ? AND status IN (%s) GROUP BY status`, constants.TableAsaasPayment, placeholders(len(all)))
	args := append([]interface{}{orgID}, stringArgs(all)...)

	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize payments: %w", err)
	}
	defer rows.Close()

	summary := &models.FinancialSummary{}
	for rows.Next() {
		var status string
		var count int
		var total float64
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, err
		}
		switch {
		case contains(paidPaymentStatuses, status):
			summary.PaidCount += count
			summary.TotalPaid += total
		case contains(pendingPaymentStatuses, status):
			summary.PendingCount += count
			summary.TotalPending += total
		case contains(overduePaymentStatuses, status):
			summary.OverdueCount += count
			summary.TotalOverdue += total
		}
	}
	return summary, rows.Err()
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// UpsertSubscription inserts or refreshes a subscription keyed by its Asaas id
func (r *PaymentRepository) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, asaas_subscription_id, asaas_customer_id, student_id,
		value, cycle, status, next_due_date, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE student_id = COALESCE(VALUES(student_id), student_id), value = VALUES(value),
		cycle = VALUES(cycle), status = VALUES(status), next_due_date = VALUES(next_due_date), updated_at = VALUES(updated_at)`,
		constants.TableAsaasSubscription)
	_, err := r.conn(ctx).ExecContext(ctx, query, s.ID, s.OrganizationID, s.AsaasSubscriptionID, s.AsaasCustomerID,
		s.StudentID, s.Value, s.Cycle, s.Status, s.NextDueDate, s.UpdatedAt)
	return err
}

func scanWebhook(s rowScanner) (*models.AsaasWebhook, error) {
	var w models.AsaasWebhook
	var errMsg sql.NullString
	var nextRetry, processed sql.NullTime
	err := s.Scan(&w.ID, &w.IdempotencyKey, &w.Event, &w.Payload, &w.Status, &w.Attempts, &errMsg, &nextRetry,
		&processed, &w.RetentionUntil, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.Error = nullableString(errMsg)
	w.NextRetryAt = nullableTime(nextRetry)
	w.ProcessedAt = nullableTime(processed)
	return &w, nil
}

func (r *PaymentRepository) queryWebhook(ctx context.Context, query string, args ...interface{}) (*models.AsaasWebhook, error) {
	w, err := scanWebhook(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return w, err
}

// CreateWebhook records a received webhook; a repeated idempotency key fails with ErrDuplicate
func (r *PaymentRepository) CreateWebhook(ctx context.Context, w *models.AsaasWebhook) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableAsaasWebhook, webhookColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, w.ID, w.IdempotencyKey, w.Event, w.Payload, w.Status, w.Attempts,
		w.Error, w.NextRetryAt, w.ProcessedAt, w.RetentionUntil, w.CreatedAt)
	if database.IsDuplicateEntry(err) {
		return fmt.Errorf("webhook %s: %w", w.IdempotencyKey, apperrors.ErrDuplicate)
	}
	return err
}

// FindWebhookByKey loads a webhook by idempotency key
func (r *PaymentRepository) FindWebhookByKey(ctx context.Context, key string) (*models.AsaasWebhook, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE idempotency_key = ?`, webhookColumns, constants.TableAsaasWebhook)
	return r.queryWebhook(ctx, query, key)
}

// GetWebhook loads a webhook by id
func (r *PaymentRepository) GetWebhook(ctx context.Context, id string) (*models.AsaasWebhook, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, webhookColumns, constants.TableAsaasWebhook)
	return r.queryWebhook(ctx, query, id)
}

// UpdateWebhook writes the processing state
func (r *PaymentRepository) UpdateWebhook(ctx context.Context, w *models.AsaasWebhook) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, attempts = ?, error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`,
		constants.TableAsaasWebhook)
	_, err := r.conn(ctx).ExecContext(ctx, query, w.Status, w.Attempts, w.Error, w.NextRetryAt, w.ProcessedAt, w.ID)
	return err
}

// ListRetryableWebhooks returns failed webhooks whose retry time has come
func (r *PaymentRepository) ListRetryableWebhooks(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.AsaasWebhook, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = ? AND attempts < ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at ASC LIMIT ?`, webhookColumns, constants.TableAsaasWebhook)
	rows, err := r.conn(ctx).QueryContext(ctx, query, models.WebhookFailed, maxAttempts, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retryable webhooks: %w", err)
	}
	defer rows.Close()

	out := []models.AsaasWebhook{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

// PurgeExpiredWebhooks deletes webhooks past their retention date
func (r *PaymentRepository) PurgeExpiredWebhooks(ctx context.Context, now time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE retention_until < ?`, constants.TableAsaasWebhook)
	result, err := r.conn(ctx).ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
