package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gpus/backend/internal/infrastructure/persistence"
)

// Job names seeded in scheduled_jobs
const (
	JobTaskReminders        = "task_reminders"
	JobIdleLeadReactivation = "idle_lead_reactivation"
	JobChurnRefresh         = "churn_refresh"
	JobLGPDRetention        = "lgpd_retention"
	JobAsaasWebhookRetry    = "asaas_webhook_retry"
	JobAsaasWebhookPurge    = "asaas_webhook_purge"
	JobOutboxCleanup        = "outbox_cleanup"
	JobDailyMetrics         = "daily_metrics"
)

// JobMaxRuntime bounds a single job run
const JobMaxRuntime = 10 * time.Minute

// JobFunc is the body of a scheduled job
type JobFunc func(ctx context.Context) error

type jobStore interface {
	ListActive(ctx context.Context) ([]persistence.ScheduledJob, error)
	AcquireExecutionLock(ctx context.Context, jobID string) (bool, error)
	ReleaseExecutionLock(ctx context.Context, jobID string) error
	ResetStaleLocks(ctx context.Context) (int64, error)
	UpdateRunStatus(ctx context.Context, jobID string, runErr error) error
	UpdateNextRunAt(ctx context.Context, jobID string, nextRun time.Time) error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerService runs the cron jobs stored in scheduled_jobs. Several
// instances may poll the same table; the execution lock lets one of them run
// each job.
type SchedulerService struct {
	repo     jobStore
	jobs     map[string]JobFunc
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(repo jobStore, interval time.Duration) *SchedulerService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SchedulerService{
		repo:     repo,
		jobs:     make(map[string]JobFunc),
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Register binds a job name to its implementation
func (s *SchedulerService) Register(name string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = fn
}

// Start begins the scheduler background loop. It blocks until Stop.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Println("⏰ Scheduler service starting...")

	if n, err := s.repo.ResetStaleLocks(context.Background()); err != nil {
		log.Printf("⚠️ Failed to reset stale job locks: %v", err)
	} else if n > 0 {
		log.Printf("⏰ Released %d stale job locks", n)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runPendingJobs()

	for {
		select {
		case <-ticker.C:
			s.runPendingJobs()
		case <-s.stopChan:
			log.Println("⏰ Scheduler service stopping...")
			s.wg.Wait()
			log.Println("⏰ Scheduler service stopped")
			return
		}
	}
}

// Stop gracefully stops the scheduler
func (s *SchedulerService) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
}

func (s *SchedulerService) runPendingJobs() {
	jobs, err := s.repo.ListActive(context.Background())
	if err != nil {
		log.Printf("⚠️ Failed to list scheduled jobs: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		if job.Schedule == "" || !isJobDue(job, now) {
			continue
		}

		s.mu.Lock()
		fn, ok := s.jobs[job.Name]
		s.mu.Unlock()
		if !ok {
			continue
		}

		s.wg.Add(1)
		go func(j persistence.ScheduledJob) {
			defer s.wg.Done()
			s.executeJob(j, fn)
		}(job)
	}
}

// isJobDue reports whether a job should run at now. A job that never ran and
// has no next run yet is due immediately.
func isJobDue(job persistence.ScheduledJob, now time.Time) bool {
	if job.NextRunAt != nil && !now.Before(*job.NextRunAt) {
		return true
	}
	return job.NextRunAt == nil && job.LastRunAt == nil
}

func (s *SchedulerService) executeJob(job persistence.ScheduledJob, fn JobFunc) {
	acquired, err := s.repo.AcquireExecutionLock(context.Background(), job.ID)
	if err != nil {
		log.Printf("⚠️ Failed to acquire lock for job %s: %v", job.Name, err)
		return
	}
	if !acquired {
		log.Printf("⏭️ Job %s is already running, skipping", job.Name)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Panic in scheduled job %s: %v", job.Name, r)
		}
		if err := s.repo.ReleaseExecutionLock(context.Background(), job.ID); err != nil {
			log.Printf("⚠️ Failed to release execution lock for job %s: %v", job.Name, err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), JobMaxRuntime)
	defer cancel()

	log.Printf("⏰ Starting scheduled job: %s", job.Name)
	start := time.Now()
	runErr := fn(ctx)
	if runErr != nil {
		log.Printf("❌ Scheduled job %s failed after %v: %v", job.Name, time.Since(start), runErr)
	} else {
		log.Printf("✅ Scheduled job %s completed in %v", job.Name, time.Since(start))
	}
	if err := s.repo.UpdateRunStatus(context.Background(), job.ID, runErr); err != nil {
		log.Printf("⚠️ Failed to update run status for job %s: %v", job.Name, err)
	}

	next, err := NextRun(job.Schedule, time.Now().UTC())
	if err != nil {
		log.Printf("⚠️ Failed to calculate next run for job %s: %v", job.Name, err)
		return
	}
	if err := s.repo.UpdateNextRunAt(context.Background(), job.ID, next); err != nil {
		log.Printf("⚠️ Failed to update next_run_at for job %s: %v", job.Name, err)
	}
}

// NextRun parses a five-field cron expression and returns the next UTC run after from
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()).UTC(), nil
}
