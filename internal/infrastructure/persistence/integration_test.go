package persistence_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/infrastructure/database"
	"github.com/gpus/backend/internal/infrastructure/persistence"
	"github.com/gpus/backend/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to the database named by DB_HOST and friends, migrating it first
func openTestDB(t *testing.T) *database.Connection {
	t.Helper()
	if os.Getenv("DB_HOST") == "" || os.Getenv("RUN_DB_TESTS") == "" {
		t.Skip("set DB_HOST and RUN_DB_TESTS to run database tests")
	}
	conn, err := database.Connect(database.Options{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(conn.DB()))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestLeadLifecycle_Integration(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()

	leads := persistence.NewLeadRepository(conn.DB())
	outbox := persistence.NewOutboxRepository(conn.DB())
	tm := persistence.NewTransactionManager(conn.DB())

	now := time.Now().UTC().Truncate(time.Second)
	orgID := "org-it-" + utils.GenerateID()[:8]
	lead := &models.Lead{
		ID:                utils.GenerateID(),
		OrganizationID:    orgID,
		Name:              "Integration Lead",
		Phone:             "5511900000000",
		Source:            "manual",
		Stage:             models.StageNovo,
		Temperature:       models.TemperatureFrio,
		InterestedProduct: "otb",
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := tm.WithinTx(ctx, func(ctx context.Context) error {
		if err := leads.Create(ctx, lead); err != nil {
			return err
		}
		_, err := outbox.Enqueue(ctx, "lead.created", map[string]string{"entity_id": lead.ID})
		return err
	})
	require.NoError(t, err)

	loaded, err := leads.GetByID(ctx, orgID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, lead.Name, loaded.Name)

	found, err := leads.FindByPhone(ctx, orgID, lead.Phone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, lead.ID, found.ID)

	require.NoError(t, leads.Delete(ctx, orgID, lead.ID))
	gone, err := leads.GetByID(ctx, orgID, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
