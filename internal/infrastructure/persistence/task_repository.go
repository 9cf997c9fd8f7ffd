package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/pkg/constants"
)

const taskColumns = `id, organization_id, description, lead_id, student_id, assigned_to, mentioned_user_ids, due_date,
	completed, completed_at, reminded_at, created_by, created_at, updated_at`

// TaskRepository stores follow-up tasks
type TaskRepository struct {
	baseRepository
}

var _ ports.TaskRepository = (*TaskRepository)(nil)

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{baseRepository{db: db}}
}

func scanTask(s rowScanner) (*models.Task, error) {
	var t models.Task
	var leadID, studentID, assignedTo, mentioned sql.NullString
	var due, completedAt, remindedAt sql.NullTime
	err := s.Scan(&t.ID, &t.OrganizationID, &t.Description, &leadID, &studentID, &assignedTo, &mentioned, &due,
		&t.Completed, &completedAt, &remindedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.LeadID = nullableString(leadID)
	t.StudentID = nullableString(studentID)
	t.AssignedTo = nullableString(assignedTo)
	t.MentionedUserIDs = stringList(mentioned)
	t.DueDate = nullableTime(due)
	t.CompletedAt = nullableTime(completedAt)
	t.RemindedAt = nullableTime(remindedAt)
	return &t, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]models.Task, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// List filters tasks; open tasks with the nearest due date come first
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	where := []string{"organization_id = ?"}
	args := []interface{}{filter.OrganizationID}
	if filter.LeadID != "" {
		where = append(where, "lead_id = ?")
		args = append(args, filter.LeadID)
	}
	if filter.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.Completed != nil {
		where = append(where, "completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.DueBefore != nil {
		where = append(where, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, *filter.DueBefore)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.MaxLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY completed ASC, due_date IS NULL, due_date ASC, created_at DESC LIMIT ?`,
		taskColumns, constants.TableTask, strings.Join(where, " AND "))
	return r.queryTasks(ctx, query, args...)
}

// GetByID loads a task
func (r *TaskRepository) GetByID(ctx context.Context, orgID, id string) (*models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE organization_id = ? AND id = ?`, taskColumns, constants.TableTask)
	t, err := scanTask(r.conn(ctx).QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Create inserts a task
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableTask, taskColumns)
	_, err := r.conn(ctx).ExecContext(ctx, query, t.ID, t.OrganizationID, t.Description, t.LeadID, t.StudentID,
		t.AssignedTo, toJSON(t.MentionedUserIDs), t.DueDate, t.Completed, t.CompletedAt, t.RemindedAt,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update writes every mutable column
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	query := fmt.Sprintf(`UPDATE %s SET description = ?, lead_id = ?, student_id = ?, assigned_to = ?,
		mentioned_user_ids = ?, due_date = ?, completed = ?, completed_at = ?, reminded_at = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?`, constants.TableTask)
	_, err := r.conn(ctx).ExecContext(ctx, query, t.Description, t.LeadID, t.StudentID, t.AssignedTo,
		toJSON(t.MentionedUserIDs), t.DueDate, t.Completed, t.CompletedAt, t.RemindedAt, t.UpdatedAt,
		t.OrganizationID, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// Delete removes a task
func (r *TaskRepository) Delete(ctx context.Context, orgID, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = ? AND id = ?`, constants.TableTask)
	_, err := r.conn(ctx).ExecContext(ctx, query, orgID, id)
	return err
}

// ListDueUnreminded returns open tasks due in [from, to) that have not been reminded
func (r *TaskRepository) ListDueUnreminded(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE completed = FALSE AND reminded_at IS NULL AND due_date >= ? AND due_date < ? ORDER BY due_date ASC`,
		taskColumns, constants.TableTask)
	return r.queryTasks(ctx, query, from, to)
}

// MarkReminded stamps the reminder
func (r *TaskRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET reminded_at = ? WHERE id = ?`, constants.TableTask)
	_, err := r.conn(ctx).ExecContext(ctx, query, at, id)
	return err
}
