package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

// TagRepository stores tags and their links to leads
type TagRepository struct {
	baseRepository
}

var _ ports.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{baseRepository{db: db}}
}

const tagColumns = "id, organization_id, name, color, created_by, created_at"

func (r *TagRepository) queryTags(ctx context.Context, query string, args ...interface{}) ([]models.Tag, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []models.Tag{}
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *TagRepository) queryTag(ctx context.Context, query string, args ...interface{}) (*models.Tag, error) {
	var t models.Tag
	err := r.conn(ctx).QueryRowContext(ctx, query, args...).
		Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedBy, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns the organization's tags by name
func (r *TagRepository) List(ctx context.Context, orgID string) ([]models.Tag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? ORDER BY name`, tagColumns, constants.TableTag)
	return r.queryTags(ctx, query, orgID)
}

// Search matches tag names
func (r *TagRepository) Search(ctx context.Context, orgID, q string) ([]models.Tag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND LOWER(name) LIKE ? ORDER BY name`, tagColumns, constants.TableTag)
	return r.queryTags(ctx, query, orgID, likePattern(q))
}

// GetByID loads a tag
func (r *TagRepository) GetByID(ctx context.Context, orgID, id string) (*models.Tag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, tagColumns, constants.TableTag)
	return r.queryTag(ctx, query, orgID, id)
}

// FindByName loads a tag by case-insensitive name
func (r *TagRepository) FindByName(ctx context.Context, orgID, name string) (*models.Tag, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND LOWER(name) = LOWER(?)`, tagColumns, constants.TableTag)
	return r.queryTag(ctx, query, orgID, name)
}

// Create inserts a tag
func (r *TagRepository) Create(ctx context.Context, t *models.Tag) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?)`, constants.TableTag, tagColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, t.ID, t.OrganizationID, t.Name, t.Color, t.CreatedBy, t.CreatedAt)
	return err
}

// Delete removes a tag and every lead link to it
func (r *TagRepository) Delete(ctx context.Context, orgID, id string) error {
	exec := r.conn(ctx)
	if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND tag_id = ?`, constants.TableLeadTag), orgID, id); err != nil {
		return err
	}
	_, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableTag), orgID, id)
	return err
}

// AddToLead links a tag to a lead; linking twice is a no-op
func (r *TagRepository) AddToLead(ctx context.Context, orgID, leadID, tagID string) error {
	query := fmt.Sprintf(`INSERT IGNORE INTO %s (lead_id, tag_id, organization_id, created_at) VALUES (?, ?, ?, ?)`, constants.TableLeadTag)
	_, err := r.conn(ctx).ExecContext(ctx, query, leadID, tagID, orgID, time.Now().UTC())
	return err
}

// RemoveFromLead unlinks a tag
func (r *TagRepository) RemoveFromLead(ctx context.Context, orgID, leadID, tagID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND lead_id = ? AND tag_id = ?`, constants.TableLeadTag)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, leadID, tagID)
	return err
}

// ListByLead returns the tags of a lead
func (r *TagRepository) ListByLead(ctx context.Context, orgID, leadID string) ([]models.Tag, error) {
	query := fmt.Sprintf(`SELECT t.id, t.organization_id, t.name, t.color, t.created_by, t.created_at
		FROM %s t JOIN %s lt ON lt.tag_id = t.id
		WHERE lt.organization_id = ? AND lt.lead_id = ? ORDER BY t.name`, constants.TableTag, constants.TableLeadTag)
	return r.queryTags(ctx, query, orgID, leadID)
}
