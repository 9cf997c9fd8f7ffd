package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/events"
)

func TestEventBus_PublishInOrder(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	bus.Subscribe(events.LeadCreated, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "first:"+p.EntityID)
		return nil
	})
	bus.Subscribe(events.LeadCreated, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "second:"+p.EntityID)
		return nil
	})
	bus.Subscribe(events.StudentCreated, func(ctx context.Context, p events.Payload) error {
		calls = append(calls, "student")
		return nil
	})

	err := bus.Publish(context.Background(), events.LeadCreated, events.Payload{EntityID: "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:lead-1", "second:lead-1"}, calls)
}

func TestEventBus_StopsAtFirstFailure(t *testing.T) {
	bus := NewEventBus()
	called := false

	bus.Subscribe(events.PaymentUpdated, func(ctx context.Context, p events.Payload) error {
		return errors.New("boom")
	})
	bus.Subscribe(events.PaymentUpdated, func(ctx context.Context, p events.Payload) error {
		called = true
		return nil
	})

	err := bus.Publish(context.Background(), events.PaymentUpdated, events.Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment.updated")
	assert.False(t, called)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	count := 0

	unsubscribe := bus.Subscribe(events.MessageCreated, func(ctx context.Context, p events.Payload) error {
		count++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), events.MessageCreated, events.Payload{}))
	unsubscribe()
	unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), events.MessageCreated, events.Payload{}))

	assert.Equal(t, 1, count)
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	var wg sync.WaitGroup
	wg.Add(1)

	var got events.Payload
	bus.Subscribe(events.ConversationUpdated, func(ctx context.Context, p events.Payload) error {
		got = p
		wg.Done()
		return nil
	})

	bus.PublishAsync(events.ConversationUpdated, events.Payload{EntityID: "conv-1", OrganizationID: "org-1"})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handler was not invoked")
	}
	assert.Equal(t, "conv-1", got.EntityID)
}

func TestEventBus_Clear(t *testing.T) {
	bus := NewEventBus()
	called := false
	bus.Subscribe(events.LeadStageChanged, func(ctx context.Context, p events.Payload) error {
		called = true
		return nil
	})

	bus.Clear()
	require.NoError(t, bus.Publish(context.Background(), events.LeadStageChanged, events.Payload{}))
	assert.False(t, called)
}
