package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestPaymentRepository_FinancialSummaryBuckets(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*), COALESCE(SUM(value), 0) FROM asaas_payments")).
		WithArgs("org-1", "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH", "PENDING", "OVERDUE").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "total"}).
			AddRow("RECEIVED", 2, 200.0).
			AddRow("CONFIRMED", 1, 50.0).
			AddRow("PENDING", 3, 300.0).
			AddRow("OVERDUE", 1, 99.9))

	summary, err := NewPaymentRepository(db).FinancialSummary(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.PaidCount)
	assert.Equal(t, 250.0, summary.TotalPaid)
	assert.Equal(t, 3, summary.PendingCount)
	assert.Equal(t, 300.0, summary.TotalPending)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 99.9, summary.TotalOverdue)
}

func TestPaymentRepository_ListRetryableWebhooks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = ? AND attempts < ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?")).
		WithArgs("failed", 5, now, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "idempotency_key", "event", "payload", "status", "attempts", "error",
			"next_retry_at", "processed_at", "retention_until", "created_at"}).
			AddRow("wh-1", "evt_1", "PAYMENT_RECEIVED", "{}", "failed", 2, "timeout", now.Add(-time.Minute), nil, now.AddDate(0, 0, 90), now))

	hooks, err := NewPaymentRepository(db).ListRetryableWebhooks(context.Background(), now, 5, 50)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, 2, hooks[0].Attempts)
	require.NotNil(t, hooks[0].Error)
	assert.Equal(t, "timeout", *hooks[0].Error)
	assert.Nil(t, hooks[0].ProcessedAt)
}

func TestPaymentRepository_PurgeExpiredWebhooks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM asaas_webhooks WHERE retention_until < ?")).WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := NewPaymentRepository(db).PurgeExpiredWebhooks(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPaymentRepository_CreateWebhookDuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	hook := &models.AsaasWebhook{ID: "wh-2", IdempotencyKey: "evt_1", Event: "PAYMENT_RECEIVED", Payload: "enc",
		Status: models.WebhookPending, RetentionUntil: now.AddDate(0, 0, 90), CreatedAt: now}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO asaas_webhooks")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'evt_1' for key 'idempotency_key'"})
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO asaas_webhooks")).
		WillReturnError(errors.New("connection refused"))

	repo := NewPaymentRepository(db)
	err = repo.CreateWebhook(context.Background(), hook)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	err = repo.CreateWebhook(context.Background(), hook)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
