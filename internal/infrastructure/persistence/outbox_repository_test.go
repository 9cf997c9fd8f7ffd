package persistence

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestOutboxRepository_EnqueueJoinsTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(sqlmock.AnyArg(), "lead.created", `{"entity_id":"lead-1"}`, OutboxStatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = NewTransactionManager(db).WithTransaction(context.Background(), func(ctx context.Context) error {
		id, err := repo.Enqueue(ctx, "lead.created", map[string]string{"entity_id": "lead-1"})
		assert.NotEmpty(t, id)
		return err
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimEventAlreadyTaken(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).WithArgs("evt-1", OutboxStatusPending).
		WillReturnError(sql.ErrNoRows)

	id, err := NewOutboxRepository(db).ClaimEvent(context.Background(), "evt-1")
	assert.NoError(t, err)
	assert.Empty(t, id)
}

func TestOutboxRepository_UpdateStatusRejectsUnknown(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	err = NewOutboxRepository(db).UpdateStatus(context.Background(), "evt-1", "weird", "")
	assert.Error(t, err)
}

func TestOutboxRepository_GetPendingEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, event_type, payload, retry_count")).WithArgs(OutboxStatusPending, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload", "retry_count"}).
			AddRow("evt-1", "message.created", "{}", 0).
			AddRow("evt-2", "lead.created", "{}", 2))

	events, err := NewOutboxRepository(db).GetPendingEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 2, events[1].RetryCount)
}
