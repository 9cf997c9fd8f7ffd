package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gpus/backend/internal/domain/events"
	"github.com/gpus/backend/internal/domain/ports"
	"github.com/gpus/backend/internal/infrastructure/persistence"
)

// MaxRetryAttempts before an outbox event is marked failed
const MaxRetryAttempts = 5

type outboxStore interface {
	Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error)
	GetPendingEvents(ctx context.Context, limit int) ([]persistence.OutboxEvent, error)
	ClaimEvent(ctx context.Context, id string) (string, error)
	UpdateStatus(ctx context.Context, id, status, errMessage string) error
	IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error
	CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxService handles transactional event storage and async publishing.
// Events enqueued inside a business transaction are committed with it and
// delivered to the EventBus by the worker.
type OutboxService struct {
	repo     outboxStore
	eventBus ports.EventPublisher
	tx       ports.Transactor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.EventOutbox = (*OutboxService)(nil)

// NewOutboxService creates a new OutboxService
func NewOutboxService(repo outboxStore, eventBus ports.EventPublisher, tx ports.Transactor) *OutboxService {
	return &OutboxService{
		repo:     repo,
		eventBus: eventBus,
		tx:       tx,
		stopCh:   make(chan struct{}),
	}
}

// Enqueue stores an event in the outbox table. Inside a transaction carried
// by ctx the row is written with the business operation.
func (os *OutboxService) Enqueue(ctx context.Context, eventType events.EventType, payload events.Payload) error {
	id, err := os.repo.Enqueue(ctx, string(eventType), payload)
	if err != nil {
		return err
	}
	log.Printf("✅ [Outbox] Enqueued event %s (ID: %s)", eventType, id)
	return nil
}

// StartWorker starts the background worker that processes pending outbox events.
// The worker polls with the specified interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("📤 Outbox worker started with %v interval", interval)

		for {
			select {
			case <-os.stopCh:
				log.Printf("📤 Outbox worker stopping...")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					log.Printf("⚠️ Outbox worker error: %v", err)
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	log.Printf("📤 Outbox worker stopped")
}

// ProcessOutbox publishes pending events. Each event is claimed, published
// and marked in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, 100)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		log.Printf("🔄 [Outbox] Processing %d pending events", len(pending))
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e); err != nil {
			log.Printf("⚠️ Failed to process outbox event %s: %v", e.ID, err)
		}
	}
	return nil
}

func (os *OutboxService) processEventAtomic(ctx context.Context, e persistence.OutboxEvent) error {
	return os.tx.WithinTx(ctx, func(ctx context.Context) error {
		claimedID, err := os.repo.ClaimEvent(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if claimedID == "" {
			return nil
		}

		var payload events.Payload
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			log.Printf("❌ [Outbox] Event %s failed payload unmarshal: %v", e.ID, err)
			return os.repo.UpdateStatus(ctx, e.ID, persistence.OutboxStatusFailed, fmt.Sprintf("invalid payload: %v", err))
		}

		if err := os.eventBus.Publish(ctx, events.EventType(e.EventType), payload); err != nil {
			retries := e.RetryCount + 1
			if retries >= MaxRetryAttempts {
				return os.repo.UpdateStatus(ctx, e.ID, persistence.OutboxStatusFailed, fmt.Sprintf("max retries exceeded: %v", err))
			}
			log.Printf("⚠️ [Outbox] Event %s failed (Attempt %d/%d). Error: %v", e.ID, retries, MaxRetryAttempts, err)
			return os.repo.IncrementRetry(ctx, e.ID, retries, err.Error())
		}

		if err := os.repo.UpdateStatus(ctx, e.ID, persistence.OutboxStatusProcessed, ""); err != nil {
			return fmt.Errorf("failed to mark as processed: %w", err)
		}
		log.Printf("✅ [Outbox] Successfully processed event %s (Type: %s)", e.ID, e.EventType)
		return nil
	})
}

// CleanupProcessed removes processed events older than the given age
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	return os.repo.CleanupProcessed(ctx, time.Now().UTC().Add(-olderThan))
}
