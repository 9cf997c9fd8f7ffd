package queue

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gpus/backend/internal/domain/ports"
)

// InlineQueue runs tasks in a goroutine of the current process.
// It stands in for asynq when no Redis is configured.
type InlineQueue struct {
	mu       sync.RWMutex
	handlers map[string]ports.TaskHandler
	wg       sync.WaitGroup
	sync     bool
}

// NewInlineQueue creates an InlineQueue. Synchronous queues run the handler before Enqueue returns.
func NewInlineQueue(synchronous bool) *InlineQueue {
	return &InlineQueue{handlers: make(map[string]ports.TaskHandler), sync: synchronous}
}

var _ ports.TaskQueue = (*InlineQueue)(nil)

// Register binds a handler to a task type
func (q *InlineQueue) Register(taskType string, h ports.TaskHandler) {
	q.mu.Lock()
	q.handlers[taskType] = h
	q.mu.Unlock()
}

func (q *InlineQueue) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	q.mu.RLock()
	h, ok := q.handlers[taskType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for task %s", taskType)
	}

	body, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	if q.sync {
		return h(ctx, body)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ Panic in inline task %s: %v", taskType, r)
			}
		}()
		if err := h(context.Background(), body); err != nil {
			log.Printf("❌ Inline task %s failed: %v", taskType, err)
		}
	}()
	return nil
}

// Wait blocks until every asynchronous task has finished
func (q *InlineQueue) Wait() {
	q.wg.Wait()
}
