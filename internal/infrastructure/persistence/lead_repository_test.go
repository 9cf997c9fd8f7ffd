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
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var leadRowColumns = []string{
	"id", "organization_id", "name", "phone", "email", "source", "stage", "temperature", "interested_product",
	"profession", "has_clinic", "clinic_name", "clinic_city", "main_pain", "main_desire", "lost_reason", "score",
	"assigned_to", "referred_by_id", "cashback_earned", "cashback_paid_at", "utm_source", "utm_campaign", "utm_medium",
	"last_contact_at", "created_at", "updated_at",
}

func leadRow(rows *sqlmock.Rows, id, phone string, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "org-1", "Maria Souza", phone, "maria@example.com", "whatsapp", "novo", "frio", "otb",
		nil, false, nil, nil, nil, nil, nil, 10, nil, nil, 0.0, nil, nil, nil, nil, nil, created, created)
}

func TestLeadRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLeadRepository(db)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND id = ?", leadColumns, constants.TableLead)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("org-1", "lead-1").
		WillReturnRows(leadRow(sqlmock.NewRows(leadRowColumns), "lead-1", "11999998888", now))

	lead, err := repo.GetByID(context.Background(), "org-1", "lead-1")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Maria Souza", lead.Name)
	assert.Equal(t, models.StageNovo, lead.Stage)
	assert.Equal(t, models.TemperatureFrio, lead.Temperature)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "maria@example.com", *lead.Email)
	assert.Nil(t, lead.Profession)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLeadRepository(db)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND id = ?", leadColumns, constants.TableLead)
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("org-1", "missing").
		WillReturnRows(sqlmock.NewRows(leadRowColumns))

	lead, err := repo.GetByID(context.Background(), "org-1", "missing")
	assert.NoError(t, err)
	assert.Nil(t, lead)
}

func TestLeadRepository_ListWithFiltersAndCursor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLeadRepository(db)
	filter := models.LeadFilter{
		OrganizationID: "org-1",
		Stages:         []models.LeadStage{models.StageNovo, models.StageQualificado},
		Search:         "Maria",
		Cursor:         "lead-9",
		Limit:          3,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leads WHERE organization_id = ? AND id = ?")).
		WithArgs("org-1", "lead-9").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE organization_id = ? AND stage IN (?, ?) AND (LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?) AND (created_at, id) < (SELECT created_at, id FROM leads WHERE organization_id = ? AND id = ?) ORDER BY created_at DESC, id DESC LIMIT ?")).
		WithArgs("org-1", "novo", "qualificado", "%maria%", "%maria%", "%maria%", "org-1", "lead-9", 3).
		WillReturnRows(leadRow(leadRow(sqlmock.NewRows(leadRowColumns), "lead-8", "1", time.Now()), "lead-7", "2", time.Now()))

	leads, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "lead-8", leads[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_ListUnknownCursor(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM leads WHERE organization_id = ? AND id = ?")).
		WithArgs("org-1", "lead-gone").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	leads, err := NewLeadRepository(db).List(context.Background(), models.LeadFilter{OrganizationID: "org-1", Cursor: "lead-gone"})

	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cursor", vErr.Field)
	assert.Nil(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_ListIdleWithoutStages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	leads, err := NewLeadRepository(db).ListIdle(context.Background(), nil, time.Now(), 10)
	assert.NoError(t, err)
	assert.Empty(t, leads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_DeleteRemovesTagLinks(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lead_tags WHERE lead_id = ?")).WithArgs("lead-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM leads WHERE organization_id = ? AND id = ?")).WithArgs("org-1", "lead-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewLeadRepository(db).Delete(context.Background(), "org-1", "lead-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadRepository_ReferralStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT").WithArgs("fechado_ganho", "org-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "converted", "cashback"}).AddRow(4, 1, 150.5))

	stats, err := NewLeadRepository(db).ReferralStats(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalReferrals)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 150.5, stats.TotalCashback)
}

func TestLeadRepository_MarkCashbackPaid_OnlyOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewLeadRepository(db)
	query := fmt.Sprintf(`UPDATE %s SET cashback_paid_at = ?, updated_at = ? WHERE id = ? AND cashback_paid_at IS NULL`, constants.TableLead)
	paidAt := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(paidAt, paidAt, "lead-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs(paidAt, paidAt, "lead-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.MarkCashbackPaid(context.Background(), "lead-2", paidAt)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.MarkCashbackPaid(context.Background(), "lead-2", paidAt)
	require.NoError(t, err)
	assert.False(t, claimed, "a second payout must not claim the lead again")
	assert.NoError(t, mock.ExpectationsWereMet())
}
