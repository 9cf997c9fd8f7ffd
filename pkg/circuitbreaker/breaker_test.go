package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/gpus/backend/pkg/errors"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker() (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := New(DefaultConfig())
	b.now = clock.now
	return b, clock
}

func TestOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestSuccessWhileClosedResetsFailures(t *testing.T) {
	b, _ := newTestBreaker()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenClosesAfterThreeSuccesses(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.t = clock.t.Add(61 * time.Second)

	assert.True(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.t = clock.t.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestExecuteShortCircuitsWhenOpen(t *testing.T) {
	b, _ := newTestBreaker()
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = b.Execute(context.Background(), "Asaas", func(context.Context) error { return boom }, nil)
	}

	called := false
	err := b.Execute(context.Background(), "Asaas", func(context.Context) error {
		called = true
		return nil
	}, nil)

	assert.False(t, called)
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
}

func TestExecuteIgnoresNonFailures(t *testing.T) {
	b, _ := newTestBreaker()
	clientErr := errors.New("bad request")
	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), "Asaas", func(context.Context) error { return clientErr },
			func(err error) bool { return false })
		assert.Equal(t, clientErr, err)
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker()
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
