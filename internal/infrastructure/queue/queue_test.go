package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineQueue_Synchronous(t *testing.T) {
	q := NewInlineQueue(true)
	var got string
	q.Register("email:sync_contact", func(ctx context.Context, payload []byte) error {
		got = string(payload)
		return nil
	})

	err := q.Enqueue(context.Background(), "email:sync_contact", map[string]string{"email": "a@b.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.com"}`, got)
}

func TestInlineQueue_PropagatesErrorWhenSynchronous(t *testing.T) {
	q := NewInlineQueue(true)
	q.Register("lgpd:process", func(ctx context.Context, payload []byte) error {
		return errors.New("boom")
	})
	assert.Error(t, q.Enqueue(context.Background(), "lgpd:process", nil))
}

func TestInlineQueue_UnknownTask(t *testing.T) {
	q := NewInlineQueue(false)
	assert.Error(t, q.Enqueue(context.Background(), "nope", nil))
}

func TestInlineQueue_Asynchronous(t *testing.T) {
	q := NewInlineQueue(false)
	var calls int32
	q.Register("referral:cashback", func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(context.Background(), "referral:cashback", []byte(`{}`)))
	}
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestParseQueueWeights(t *testing.T) {
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, ParseQueueWeights("critical=6, default=3,low"))
	assert.Empty(t, ParseQueueWeights(""))
	assert.Equal(t, map[string]int{"a": 1}, ParseQueueWeights("a=zero"))
}
