package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
)

// SettingRepository stores organization settings
type SettingRepository struct {
	baseRepository
}

var _ ports.SettingRepository = (*SettingRepository)(nil)

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *sql.DB) *SettingRepository {
	return &SettingRepository{baseRepository{db: db}}
}

const settingColumns = "id, organization_id, setting_key, value, encrypted, updated_by, updated_at"

// List returns every setting of the organization
func (r *SettingRepository) List(ctx context.Context, orgID string) ([]models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY setting_key`, settingColumns, constants.TableSetting)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	out := []models.Setting{}
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.ID, &s.OrganizationID, &s.Key, &s.Value, &s.Encrypted, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get loads one setting
func (r *SettingRepository) Get(ctx context.Context, orgID, key string) (*models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND setting_key = ?`, settingColumns, constants.TableSetting)
	var s models.Setting
	err := r.conn(ctx).QueryRowContext(ctx, query, orgID, key).
		Scan(&s.ID, &s.OrganizationID, &s.Key, &s.Value, &s.Encrypted, &s.UpdatedBy, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert writes a setting keyed by (organization, key)
func (r *SettingRepository) Upsert(ctx context.Context, s *models.Setting) error {
	if s.ID == "" {
		s.ID = utils.GenerateID()
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), encrypted = VALUES(encrypted),
		updated_by = VALUES(updated_by), updated_at = VALUES(updated_at)`, constants.TableSetting, settingColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, s.ID, s.OrganizationID, s.Key, s.Value, s.Encrypted, s.UpdatedBy, s.UpdatedAt)
	return err
}
