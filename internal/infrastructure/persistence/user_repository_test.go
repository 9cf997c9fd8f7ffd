package persistence

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gpus/backend/pkg/constants"
	"github.com/stretchr/testify/assert"
)

func TestUserRepository_GetByClerkID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewUserRepository(db)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE clerk_id = ?", userColumns, constants.TableUser)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "clerk_id", "organization_id", "name", "email", "avatar", "role",
		"is_active", "invited_by", "last_login_at", "created_at", "updated_at"}).
		AddRow("user-1", "user_2abc", "org-1", "Carla", "carla@example.com", nil, "sdr", true, nil, now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("user_2abc").WillReturnRows(rows)

	user, err := repo.GetByClerkID(context.Background(), "user_2abc")
	assert.NoError(t, err)
	if assert.NotNil(t, user) {
		assert.Equal(t, "user-1", user.ID)
		assert.Equal(t, "sdr", user.Role)
		assert.True(t, user.IsActive)
		assert.Nil(t, user.Avatar)
		assert.NotNil(t, user.LastLoginAt)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByClerkID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE clerk_id = ?", userColumns, constants.TableUser)
	mock.ExpectQuery(regexp.QuoteMeta(query)).WithArgs("nobody").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := NewUserRepository(db).GetByClerkID(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestNotificationRepository_MarkReadForeignRecipient(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE organization_id = ? AND recipient_id = ? AND id = ?")).
		WithArgs("org-1", "user-2", "notif-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewNotificationRepository(db).MarkRead(context.Background(), "org-1", "user-2", "notif-1")
	assert.NoError(t, err)
	assert.False(t, ok)
}
