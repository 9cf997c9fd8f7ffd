// Package circuitbreaker guards calls to flaky upstream APIs.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/gpus/backend/pkg/errors"
)

// State of the breaker
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds breaker thresholds
type Config struct {
	FailureThreshold     int
	ResetTimeout         time.Duration
	HalfOpenMaxTestCalls int
}

// DefaultConfig matches the Asaas integration limits
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     3,
		ResetTimeout:         60 * time.Second,
		HalfOpenMaxTestCalls: 3,
	}
}

// Breaker is a closed / open / half-open circuit breaker
type Breaker struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	testCalls   int
	lastFailure time.Time
}

// New creates a closed breaker
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenMaxTestCalls <= 0 {
		cfg.HalfOpenMaxTestCalls = def.HalfOpenMaxTestCalls
	}
	return &Breaker{cfg: cfg, now: time.Now, state: StateClosed}
}

// Allow reports whether a call may proceed, moving open -> half-open
// once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			b.testCalls = 0
			return true
		}
		return false
	case StateHalfOpen:
		return b.testCalls < b.cfg.HalfOpenMaxTestCalls
	}
	return true
}

// RecordSuccess registers a successful call
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.testCalls++
		if b.testCalls >= b.cfg.HalfOpenMaxTestCalls {
			b.state = StateClosed
			b.failures = 0
			b.testCalls = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

// RecordFailure registers a failed call
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.testCalls = 0
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// Execute runs fn through the breaker. isFailure decides which errors count
// against the breaker; nil counts every error.
func (b *Breaker) Execute(ctx context.Context, service string, fn func(context.Context) error, isFailure func(error) bool) error {
	if !b.Allow() {
		return apperrors.NewServiceUnavailableError(service, apperrors.ErrCircuitOpen)
	}
	err := fn(ctx)
	if err == nil {
		b.RecordSuccess()
		return nil
	}
	if isFailure == nil || isFailure(err) {
		b.RecordFailure()
	}
	return err
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.testCalls = 0
	b.lastFailure = time.Time{}
}
