package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const userColumns = "id, clerk_id, organization_id, name, email, avatar, role, is_active, invited_by, last_login_at, created_at, updated_at"

// UserRepository stores team members mirrored from the identity provider
type UserRepository struct {
	baseRepository
}

var _ ports.UserRepository = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{baseRepository{db: db}}
}

func scanUser(s rowScanner) (*models.User, error) {
	var u models.User
	var avatar, invitedBy sql.NullString
	var lastLogin sql.NullTime
	err := s.Scan(&u.ID, &u.ClerkID, &u.OrganizationID, &u.Name, &u.Email, &avatar, &u.Role, &u.IsActive,
		&invitedBy, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Avatar = nullableString(avatar)
	u.InvitedBy = nullableString(invitedBy)
	u.LastLoginAt = nullableTime(lastLogin)
	return &u, nil
}

func (r *UserRepository) queryUser(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	u, err := scanUser(r.conn(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE clerk_id = ?", userColumns, constants.TableUser)
	return r.queryUser(ctx, query, clerkID)
}

func (r *UserRepository) GetByID(ctx context.Context, orgID, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND id = ?", userColumns, constants.TableUser)
	return r.queryUser(ctx, query, orgID, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, orgID, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND LOWER(email) = LOWER(?) LIMIT 1", userColumns, constants.TableUser)
	return r.queryUser(ctx, query, orgID, email)
}

func (r *UserRepository) List(ctx context.Context, orgID string) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? ORDER BY name", userColumns, constants.TableUser)
	return r.queryUsers(ctx, query, orgID)
}

// ListActiveByRole returns active members holding role
func (r *UserRepository) ListActiveByRole(ctx context.Context, orgID, role string) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND role = ? AND is_active = TRUE ORDER BY name", userColumns, constants.TableUser)
	return r.queryUsers(ctx, query, orgID, role)
}

// Search matches name or e-mail of active members
func (r *UserRepository) Search(ctx context.Context, orgID, q string, limit int) ([]models.User, error) {
	pattern := likePattern(q)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE organization_id = ? AND is_active = TRUE AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ?) ORDER BY name LIMIT ?",
		userColumns, constants.TableUser)
	return r.queryUsers(ctx, query, orgID, pattern, pattern, limit)
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableUser, userColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, u.ID, u.ClerkID, u.OrganizationID, u.Name, u.Email, u.Avatar,
		u.Role, u.IsActive, u.InvitedBy, u.LastLoginAt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update writes every mutable column
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf(`UPDATE %s SET clerk_id = ?, organization_id = ?, name = ?, email = ?, avatar = ?, role = ?,
		is_active = ?, last_login_at = ?, updated_at = ? WHERE id = ?`, constants.TableUser)
	_, err := r.conn(ctx).ExecContext(ctx, query, u.ClerkID, u.OrganizationID, u.Name, u.Email, u.Avatar, u.Role,
		u.IsActive, u.LastLoginAt, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
