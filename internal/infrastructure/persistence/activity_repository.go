package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const activityColumns = "id, organization_id, type, description, lead_id, student_id, enrollment_id, user_id, metadata, created_at"

// ActivityRepository stores the activity timeline
type ActivityRepository struct {
	baseRepository
}

var _ ports.ActivityRepository = (*ActivityRepository)(nil)

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{baseRepository{db: db}}
}

// Create inserts an activity
func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableActivity, activityColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, a.ID, a.OrganizationID, a.Type, a.Description, a.LeadID,
		a.StudentID, a.EnrollmentID, a.UserID, toJSON(a.Metadata), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListByLead returns a lead's timeline, newest first
func (r *ActivityRepository) ListByLead(ctx context.Context, orgID, leadID string, limit int) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND lead_id = ? ORDER BY created_at DESC LIMIT ?`,
		activityColumns, constants.TableActivity)
	return r.queryActivities(ctx, query, orgID, leadID, limit)
}

// ListByStudent returns a student's timeline, newest first
func (r *ActivityRepository) ListByStudent(ctx context.Context, orgID, studentID string, limit int) ([]models.Activity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND student_id = ? ORDER BY created_at DESC LIMIT ?`,
		activityColumns, constants.TableActivity)
	return r.queryActivities(ctx, query, orgID, studentID, limit)
}

func (r *ActivityRepository) queryActivities(ctx context.Context, query string, args ...interface{}) ([]models.Activity, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var leadID, studentID, enrollmentID, userID, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Type, &a.Description, &leadID, &studentID,
			&enrollmentID, &userID, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.LeadID = nullableString(leadID)
		a.StudentID = nullableString(studentID)
		a.EnrollmentID = nullableString(enrollmentID)
		a.UserID = nullableString(userID)
		fromJSON(metadata, &a.Metadata)
		out = append(out, a)
	}
	return out, rows.Err()
}
