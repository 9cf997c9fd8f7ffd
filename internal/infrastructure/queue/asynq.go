package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gpus/backend/internal/domain/ports"
)

// Queue names
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// taskOptions holds the per type enqueue options
var taskOptions = map[string][]asynq.Option{
	ports.TaskAsaasWebhook:     {asynq.Queue(QueueCritical), asynq.MaxRetry(5), asynq.Retention(24 * time.Hour)},
	ports.TaskLGPDProcess:      {asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Retention(7 * 24 * time.Hour)},
	ports.TaskEmailSyncContact: {asynq.Queue(QueueLow), asynq.MaxRetry(3)},
	ports.TaskReferralCashback: {asynq.Queue(QueueDefault), asynq.MaxRetry(3)},
}

// AsynqClient implements ports.TaskQueue on hibiken/asynq
type AsynqClient struct {
	client *asynq.Client
}

// NewAsynqClient constructs a client for redisURL
func NewAsynqClient(redisURL string) (*AsynqClient, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return &AsynqClient{client: asynq.NewClient(opt)}, nil
}

var _ ports.TaskQueue = (*AsynqClient)(nil)

// Enqueue marshals payload to JSON and hands it to the worker
func (a *AsynqClient) Enqueue(ctx context.Context, taskType string, payload interface{}) error {
	if taskType == "" {
		return errors.New("asynq: task type is required")
	}
	body, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(taskType, body), taskOptions[taskType]...)
	if err != nil {
		return fmt.Errorf("asynq: enqueue %s: %w", taskType, err)
	}
	log.Printf("📤 Enqueued %s task %s", taskType, info.ID)
	return nil
}

func (a *AsynqClient) Close() error {
	return a.client.Close()
}

// AsynqServer runs registered handlers for queued tasks
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewAsynqServer builds a server for redisURL. queues is a CSV like
// "critical=6,default=3,low=1"; empty uses that default.
func NewAsynqServer(redisURL string, concurrency int, queues string) (*AsynqServer, error) {
	if redisURL == "" {
		return nil, errors.New("asynq: REDIS_URL is not set")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	weights := map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1}
	if parsed := ParseQueueWeights(queues); len(parsed) > 0 {
		weights = parsed
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      weights,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			log.Printf("❌ Task %s failed (retry %d): %v", task.Type(), retried, err)
		}),
	})
	return &AsynqServer{server: srv, mux: asynq.NewServeMux()}, nil
}

// Register binds a handler to a task type
func (s *AsynqServer) Register(taskType string, h ports.TaskHandler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, t.Payload())
	})
}

// Run starts the server and blocks until ctx is canceled, then shuts down gracefully
func (s *AsynqServer) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// ParseQueueWeights parses strings like "critical=6,default=3,low=1"
func ParseQueueWeights(s string) map[string]int {
	res := make(map[string]int)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		w := 1
		if len(kv) == 2 {
			if i, err := strconv.Atoi(strings.TrimSpace(kv[1])); err == nil && i > 0 {
				w = i
			}
		}
		res[name] = w
	}
	return res
}

func marshalPayload(payload interface{}) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return p, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return body, nil
}
