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

const objectionColumns = "id, organization_id, lead_id, category, description, resolved, resolution, recorded_by, recorded_at, resolved_at"

// ObjectionRepository stores sales objections
type ObjectionRepository struct {
	baseRepository
}

var _ ports.ObjectionRepository = (*ObjectionRepository)(nil)

// NewObjectionRepository creates a new ObjectionRepository
func NewObjectionRepository(db *sql.DB) *ObjectionRepository {
	return &ObjectionRepository{baseRepository{db: db}}
}

func scanObjection(s rowScanner) (*models.Objection, error) {
	var o models.Objection
	var resolution sql.NullString
	var resolvedAt sql.NullTime
	err := s.Scan(&o.ID, &o.OrganizationID, &o.LeadID, &o.Category, &o.Description, &o.Resolved, &resolution,
		&o.RecordedBy, &o.RecordedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	o.Resolution = nullableString(resolution)
	o.ResolvedAt = nullableTime(resolvedAt)
	return &o, nil
}

func (r *ObjectionRepository) queryObjections(ctx context.Context, query string, args ...interface{}) ([]models.Objection, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query objections: %w", err)
	}
	defer rows.Close()

	out := []models.Objection{}
	for rows.Next() {
		o, err := scanObjection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ListByLead returns a lead's objections, newest first
func (r *ObjectionRepository) ListByLead(ctx context.Context, orgID, leadID string) ([]models.Objection, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND lead_id = ? ORDER BY recorded_at DESC`,
		objectionColumns, constants.TableObjection)
	return r.queryObjections(ctx, query, orgID, leadID)
}

// ListByOrganization returns every objection of the organization
func (r *ObjectionRepository) ListByOrganization(ctx context.Context, orgID string) ([]models.Objection, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY recorded_at DESC`, objectionColumns, constants.TableObjection)
	return r.queryObjections(ctx, query, orgID)
}

// GetByID loads an objection
func (r *ObjectionRepository) GetByID(ctx context.Context, orgID, id string) (*models.Objection, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, objectionColumns, constants.TableObjection)
	o, err := scanObjection(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return o, err
}

// Create inserts an objection
func (r *ObjectionRepository) Create(ctx context.Context, o *models.Objection) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableObjection, objectionColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, o.ID, o.OrganizationID, o.LeadID, o.Category, o.Description,
		o.Resolved, o.Resolution, o.RecordedBy, o.RecordedAt, o.ResolvedAt)
	return err
}

// Update writes the mutable columns
func (r *ObjectionRepository) Update(ctx context.Context, o *models.Objection) error {
	query := fmt.Sprintf(`UPDATE %s SET category = ?, description = ?, resolved = ?, resolution = ?, resolved_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableObjection)
	_, err := r.conn(ctx).ExecContext(ctx, query, o.Category, o.Description, o.Resolved, o.Resolution,
		o.ResolvedAt, o.OrganizationID, o.ID)
	return err
}

// Delete removes an objection
func (r *ObjectionRepository) Delete(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableObjection)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, id)
	return err
}
