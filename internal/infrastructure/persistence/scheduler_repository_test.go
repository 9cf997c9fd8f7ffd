package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerRepository_AcquireExecutionLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSchedulerRepository(db)
	query := "UPDATE scheduled_jobs SET is_running = TRUE WHERE id = ? AND (is_running = FALSE OR is_running IS NULL)"

	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs("job-1").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.AcquireExecutionLock(context.Background(), "job-1")
	assert.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs("job-1").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.AcquireExecutionLock(context.Background(), "job-1")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSchedulerRepository_UpdateRunStatusRecordsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduled_jobs SET last_run_at = ?, last_error = ? WHERE id = ?")).
		WithArgs(sqlmock.AnyArg(), "smtp down", "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewSchedulerRepository(db).UpdateRunStatus(context.Background(), "job-1", errors.New("smtp down"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchedulerRepository_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduled_jobs WHERE is_active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "schedule", "last_run_at", "next_run_at", "last_error"}).
			AddRow("job-1", "task_reminders", "0 8 * * *", nil, nil, nil))

	jobs, err := NewSchedulerRepository(db).ListActive(context.Background())
	assert.NoError(t, err)
	assert.Len(t, jobs, 1)
	assert.Equal(t, "task_reminders", jobs[0].Name)
	assert.Nil(t, jobs[0].NextRunAt)
}
