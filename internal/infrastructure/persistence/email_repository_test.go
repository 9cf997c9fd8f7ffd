package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailRepository_IncrementCampaignStat(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewEmailRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE email_campaigns SET stat_opened = stat_opened + 1 WHERE id = ?")).
		WithArgs("camp-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IncrementCampaignStat(context.Background(), "camp-1", models.EmailEventOpened))
	require.NoError(t, repo.IncrementCampaignStat(context.Background(), "camp-1", "stat_opened = 0; --"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailRepository_UpsertContactPreservesSubscription(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	created := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	lookup := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND LOWER(email) = LOWER(?)",
		emailContactColumns, constants.TableEmailContact)
	mock.ExpectQuery(regexp.QuoteMeta(lookup)).WithArgs("org-1", "Ana@Example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "email", "first_name", "last_name", "source",
			"source_id", "subscription_status", "brevo_id", "sync_status", "created_at", "updated_at"}).
			AddRow("contact-1", "org-1", "ana@example.com", "Ana", nil, "lead", nil, "unsubscribed", "77", "synced", created, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE email_contacts SET first_name = ?")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "student", sqlmock.AnyArg(), "77", "pending", sqlmock.AnyArg(), "contact-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	first := "Ana"
	contact := &models.EmailContact{
		ID:             "new-id",
		OrganizationID: "org-1",
		Email:          "Ana@Example.com",
		FirstName:      &first,
		Source:         "student",
		Status:         "subscribed",
		SyncStatus:     "pending",
		UpdatedAt:      time.Now(),
	}

	inserted, err := NewEmailRepository(db).UpsertContact(context.Background(), contact)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "contact-1", contact.ID)
	assert.Equal(t, "unsubscribed", contact.Status)
	require.NotNil(t, contact.BrevoID)
	assert.Equal(t, "77", *contact.BrevoID)
	assert.Equal(t, created, contact.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailRepository_UpsertContactInsertsNew(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM email_contacts WHERE organization_id = ?")).
		WithArgs("org-1", "novo@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_contacts")).WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, err := NewEmailRepository(db).UpsertContact(context.Background(), &models.EmailContact{
		ID: "c-2", OrganizationID: "org-1", Email: "novo@example.com", Source: "lead", Status: "subscribed", SyncStatus: "pending",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
