package bootstrap

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gpus/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullConfig() *config.Config {
	return &config.Config{
		DefaultOrganizationID:  "org-1",
		BrevoWebhookSecret:     "a",
		MessagingWebhookSecret: "b",
		TypebotWebhookSecret:   "c",
		WordPressWebhookSecret: "d",
		ClerkWebhookSecret:     "e",
		AsaasWebhookToken:      "f",
	}
}

func expectTables(mock sqlmock.Sqlmock, tables []string) {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, t := range tables {
		rows.AddRow(t)
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.tables")).WillReturnRows(rows)
}

func expectJobs(mock sqlmock.Sqlmock, jobs []string) {
	rows := sqlmock.NewRows([]string{"name"})
	for _, j := range jobs {
		rows.AddRow(j)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM scheduled_jobs")).WillReturnRows(rows)
}

func TestRunAssertions_AllPass(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTables(mock, CriticalTables)
	expectJobs(mock, ScheduledJobs)

	result, err := RunAssertions(db, fullConfig(), true)

	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Violations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunAssertions_MissingTableFailsStrict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTables(mock, CriticalTables[1:])
	expectJobs(mock, ScheduledJobs)

	result, err := RunAssertions(db, fullConfig(), true)

	require.Error(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, CriticalTables[0], result.Violations[0].Object)
}

func TestRunAssertions_WarningsDoNotFail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTables(mock, CriticalTables)
	expectJobs(mock, ScheduledJobs[:2])

	result, err := RunAssertions(db, &config.Config{}, true)

	require.NoError(t, err)
	assert.True(t, result.Passed)
	// six missing jobs, missing default org, six unset secrets
	assert.Len(t, result.Violations, 13)
}
