package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
	"github.com/gpus/backend/pkg/utils"
)

const customFieldColumns = "id, organization_id, name, field_type, entity_type, options, required, active, display_order, created_at"

// CustomFieldRepository stores custom field definitions and values
type CustomFieldRepository struct {
	baseRepository
}

var _ ports.CustomFieldRepository = (*CustomFieldRepository)(nil)

// NewCustomFieldRepository creates a new CustomFieldRepository
func NewCustomFieldRepository(db *sql.DB) *CustomFieldRepository {
	return &CustomFieldRepository{baseRepository{db: db}}
}

func scanCustomField(s rowScanner) (*models.CustomField, error) {
	var f models.CustomField
	var options sql.NullString
	err := s.Scan(&f.ID, &f.OrganizationID, &f.Name, &f.FieldType, &f.EntityType, &options, &f.Required,
		&f.Active, &f.DisplayOrder, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if options.Valid {
		f.Options = stringList(options)
	}
	return &f, nil
}

// List returns field definitions ordered for display
func (r *CustomFieldRepository) List(ctx context.Context, orgID, entityType string, includeInactive bool) ([]models.CustomField, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND entity_type = ?`, customFieldColumns, constants.TableCustomField)
	if !includeInactive {
		query += " AND active = TRUE"
	}
	query += " ORDER BY display_order ASC, created_at ASC"

	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom fields: %w", err)
	}
	defer rows.Close()

	out := []models.CustomField{}
	for rows.Next() {
		f, err := scanCustomField(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetByID loads a field definition
func (r *CustomFieldRepository) GetByID(ctx context.Context, orgID, id string) (*models.CustomField, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, customFieldColumns, constants.TableCustomField)
	f, err := scanCustomField(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// Create inserts a field definition
func (r *CustomFieldRepository) Create(ctx context.Context, f *models.CustomField) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableCustomField, customFieldColumns)
	var options interface{}
	if len(f.Options) > 0 {
		options = toJSON(f.Options)
	}
	_, err := r.conn(ctx).ExecContext(ctx, query, f.ID, f.OrganizationID, f.Name, f.FieldType, f.EntityType,
		options, f.Required, f.Active, f.DisplayOrder, f.CreatedAt)
	return err
}

// Update writes the mutable attributes of a definition
func (r *CustomFieldRepository) Update(ctx context.Context, f *models.CustomField) error {
	query := fmt.Sprintf(`UPDATE %s SET name = ?, field_type = ?, options = ?, required = ?, active = ?, display_order = ?
		WHERE organization_id = ? AND id = ?`, constants.TableCustomField)
	var options interface{}
	if len(f.Options) > 0 {
		options = toJSON(f.Options)
	}
	_, err := r.conn(ctx).ExecContext(ctx, query, f.Name, f.FieldType, options, f.Required, f.Active,
		f.DisplayOrder, f.OrganizationID, f.ID)
	return err
}

// CountActive counts active definitions of an entity type
func (r *CustomFieldRepository) CountActive(ctx context.Context, orgID, entityType string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = ? AND entity_type = ? AND active = TRUE`, constants.TableCustomField)
	var n int
	err := r.conn(ctx).QueryRowContext(ctx, query, orgID, entityType).Scan(&n)
	return n, err
}

// UpsertValue sets the value of a field for one entity
func (r *CustomFieldRepository) UpsertValue(ctx context.Context, v *models.CustomFieldValue) error {
	if v.ID == "" {
		v.ID = utils.GenerateID()
	}
	raw, err := json.Marshal(v.Value)
	if err != nil {
		return fmt.Errorf("failed to encode custom field value: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, organization_id, field_id, entity_type, entity_id, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`, constants.TableCustomFieldValue)
	_, err = r.conn(ctx).ExecContext(ctx, query, v.ID, v.OrganizationID, v.FieldID, v.EntityType, v.EntityID,
		string(raw), v.UpdatedAt)
	return err
}

// ListValues returns the values set on an entity
func (r *CustomFieldRepository) ListValues(ctx context.Context, orgID, entityType, entityID string) ([]models.CustomFieldValue, error) {
	query := fmt.Sprintf(`SELECT id, organization_id, field_id, entity_type, entity_id, value, updated_at
		FROM %s WHERE organization_id = ? AND entity_type = ? AND entity_id = ?`, constants.TableCustomFieldValue)
	rows, err := r.conn(ctx).QueryContext(ctx, query, orgID, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query custom field values: %w", err)
	}
	defer rows.Close()

	out := []models.CustomFieldValue{}
	for rows.Next() {
		var v models.CustomFieldValue
		var raw sql.NullString
		if err := rows.Scan(&v.ID, &v.OrganizationID, &v.FieldID, &v.EntityType, &v.EntityID, &raw, &v.UpdatedAt); err != nil {
			return nil, err
		}
		fromJSON(raw, &v.Value)
		out = append(out, v)
	}
	return out, rows.Err()
}
