package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gpus/backend/pkg/constants"
)

// ScheduledJob is a row of the scheduled_jobs table
type ScheduledJob struct {
	ID        string
	Name      string
	Schedule  string
	LastRunAt *time.Time
	NextRunAt *time.Time
	LastError *string
}

// SchedulerRepository handles execution locking and run bookkeeping for cron jobs
type SchedulerRepository struct {
	db *sql.DB
}

// NewSchedulerRepository creates a new SchedulerRepository
func NewSchedulerRepository(db *sql.DB) *SchedulerRepository {
	return &SchedulerRepository{db: db}
}

// ListActive returns every active job
func (r *SchedulerRepository) ListActive(ctx context.Context) ([]ScheduledJob, error) {
	query := fmt.Sprintf(`SELECT id, name, schedule, last_run_at, next_run_at, last_error FROM %s WHERE is_active = TRUE ORDER BY name`,
		constants.TableScheduledJob)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ScheduledJob
	for rows.Next() {
		var job ScheduledJob
		var lastRun, nextRun sql.NullTime
		var lastErr sql.NullString
		if err := rows.Scan(&job.ID, &job.Name, &job.Schedule, &lastRun, &nextRun, &lastErr); err != nil {
			return nil, err
		}
		job.LastRunAt = nullableTime(lastRun)
		job.NextRunAt = nullableTime(nextRun)
		job.LastError = nullableString(lastErr)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// AcquireExecutionLock atomically sets is_running = true if not already running
func (r *SchedulerRepository) AcquireExecutionLock(ctx context.Context, jobID string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_running = TRUE WHERE id = ? AND (is_running = FALSE OR is_running IS NULL)`,
		constants.TableScheduledJob)

	result, err := r.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// ReleaseExecutionLock sets is_running = false
func (r *SchedulerRepository) ReleaseExecutionLock(ctx context.Context, jobID string) error {
	query := fmt.Sprintf(`UPDATE %s SET is_running = FALSE WHERE id = ?`, constants.TableScheduledJob)
	_, err := r.db.ExecContext(ctx, query, jobID)
	return err
}

// ResetStaleLocks clears locks left behind by a crashed process
func (r *SchedulerRepository) ResetStaleLocks(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_running = FALSE WHERE is_running = TRUE`, constants.TableScheduledJob)
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpdateRunStatus records last_run_at and the outcome of the run
func (r *SchedulerRepository) UpdateRunStatus(ctx context.Context, jobID string, runErr error) error {
	var lastErr interface{}
	if runErr != nil {
		lastErr = runErr.Error()
	}
	query := fmt.Sprintf(`UPDATE %s SET last_run_at = ?, last_error = ? WHERE id = ?`, constants.TableScheduledJob)
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), lastErr, jobID)
	return err
}

// UpdateNextRunAt updates next_run_at
func (r *SchedulerRepository) UpdateNextRunAt(ctx context.Context, jobID string, nextRun time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET next_run_at = ? WHERE id = ?`, constants.TableScheduledJob)
	_, err := r.db.ExecContext(ctx, query, nextRun, jobID)
	return err
}
