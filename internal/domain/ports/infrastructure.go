package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss signals a missing cache key
var ErrCacheMiss = errors.New("cache: miss")

// Cache is a string key/value store with TTLs
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

// RateLimiter counts hits of a key inside a fixed window
type RateLimiter interface {
	// Allow records one hit and reports whether the key is still under limit
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Task types processed by the background worker
const (
	TaskAsaasWebhook     = "asaas:webhook"
	TaskLGPDProcess      = "lgpd:process"
	TaskEmailSyncContact = "email:sync_contact"
	TaskReferralCashback = "referral:cashback"
)

// TaskHandler runs one background task. Handlers must be idempotent.
type TaskHandler func(ctx context.Context, payload []byte) error

// TaskQueue hands work to the background worker
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}) error
}

// Transactor runs fn inside a database transaction carried by the context
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Broadcaster pushes realtime payloads to the sockets of an organization
type Broadcaster interface {
	BroadcastOrganization(organizationID string, payload []byte) int
}
