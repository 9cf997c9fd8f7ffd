package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/pkg/asaas"
	"github.com/gpus/backend/pkg/encryption"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func TestWebhookRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		jitter  time.Duration
		want    time.Duration
	}{
		{"first attempt", 1, 0, 60 * time.Second},
		{"second attempt", 2, 0, 120 * time.Second},
		{"fourth attempt with jitter", 4, 3 * time.Second, 8*time.Minute + 3*time.Second},
		{"zero treated as first", 0, 0, 60 * time.Second},
		{"capped", 6, 0, 30 * time.Minute},
		{"huge attempt capped", 100, time.Second, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WebhookRetryDelay(tt.attempt, tt.jitter))
		})
	}
}

func TestWebhookIdempotencyKey(t *testing.T) {
	t.Run("uses event id", func(t *testing.T) {
		key := WebhookIdempotencyKey(asaas.WebhookPayload{ID: "evt_1", Event: "PAYMENT_RECEIVED", Payment: &asaas.Payment{ID: "pay_1"}})
		assert.Equal(t, "PAYMENT_RECEIVED:evt_1", key)
	})

	t.Run("falls back to payment id", func(t *testing.T) {
		key := WebhookIdempotencyKey(asaas.WebhookPayload{Event: "PAYMENT_OVERDUE", Payment: &asaas.Payment{ID: "pay_2"}})
		assert.Equal(t, "PAYMENT_OVERDUE:pay_2", key)
	})

	t.Run("falls back to subscription id", func(t *testing.T) {
		key := WebhookIdempotencyKey(asaas.WebhookPayload{Event: "SUBSCRIPTION_CREATED", Subscription: &asaas.Subscription{ID: "sub_1"}})
		assert.Equal(t, "SUBSCRIPTION_CREATED:sub_1", key)
	})

	t.Run("generates an id when nothing identifies the event", func(t *testing.T) {
		a := WebhookIdempotencyKey(asaas.WebhookPayload{Event: "PAYMENT_CREATED"})
		b := WebhookIdempotencyKey(asaas.WebhookPayload{Event: "PAYMENT_CREATED"})
		assert.True(t, strings.HasPrefix(a, "PAYMENT_CREATED:"))
		assert.NotEqual(t, a, b)
	})
}

const receivedBody = `{"id":"evt_1","event":"PAYMENT_RECEIVED","payment":{"id":"pay_1"}}`

func newReceivingPaymentService(t *testing.T, payments *mockPaymentRepository, queue *mockQueue) *PaymentService {
	cipher, err := encryption.New("0123456789abcdef-test-key")
	require.NoError(t, err)
	return NewPaymentService(Repositories{Payments: payments}, nil, Infrastructure{Cipher: cipher, Queue: queue})
}

func TestPaymentService_ReceiveWebhookQueues(t *testing.T) {
	ctx := context.Background()
	payments := new(mockPaymentRepository)
	payments.On("FindWebhookByKey", ctx, "PAYMENT_RECEIVED:evt_1").Return(nil, nil).Once()
	payments.On("CreateWebhook", ctx, mock.MatchedBy(func(w *models.AsaasWebhook) bool {
		return w.IdempotencyKey == "PAYMENT_RECEIVED:evt_1" && w.Status == models.WebhookPending && w.Payload != receivedBody
	})).Return(nil).Once()
	queue := new(mockQueue)
	queue.On("Enqueue", ctx, mock.Anything, mock.AnythingOfType("services.AsaasWebhookTask")).Return(nil).Once()

	outcome, id, err := newReceivingPaymentService(t, payments, queue).ReceiveWebhook(ctx, []byte(receivedBody))
	require.NoError(t, err)

	assert.Equal(t, WebhookAccepted, outcome)
	assert.NotEmpty(t, id)
	payments.AssertExpectations(t)
	queue.AssertExpectations(t)
}

func TestPaymentService_ReceiveWebhookAlreadyStored(t *testing.T) {
	ctx := context.Background()
	payments := new(mockPaymentRepository)
	payments.On("FindWebhookByKey", ctx, "PAYMENT_RECEIVED:evt_1").Return(&models.AsaasWebhook{ID: "wh_1"}, nil).Once()
	queue := new(mockQueue)

	outcome, id, err := newReceivingPaymentService(t, payments, queue).ReceiveWebhook(ctx, []byte(receivedBody))
	require.NoError(t, err)

	assert.Equal(t, WebhookDuplicate, outcome)
	assert.Equal(t, "wh_1", id)
	payments.AssertNotCalled(t, "CreateWebhook", mock.Anything, mock.Anything)
}

func TestPaymentService_ReceiveWebhookConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	payments := new(mockPaymentRepository)
	payments.On("FindWebhookByKey", ctx, "PAYMENT_RECEIVED:evt_1").Return(nil, nil).Once()
	payments.On("CreateWebhook", ctx, mock.Anything).
		Return(fmt.Errorf("webhook PAYMENT_RECEIVED:evt_1: %w", apperrors.ErrDuplicate)).Once()
	payments.On("FindWebhookByKey", ctx, "PAYMENT_RECEIVED:evt_1").Return(&models.AsaasWebhook{ID: "wh_first"}, nil).Once()
	queue := new(mockQueue)

	outcome, id, err := newReceivingPaymentService(t, payments, queue).ReceiveWebhook(ctx, []byte(receivedBody))
	require.NoError(t, err)

	assert.Equal(t, WebhookDuplicate, outcome)
	assert.Equal(t, "wh_first", id)
	payments.AssertExpectations(t)
	queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ReceiveWebhookStorageError(t *testing.T) {
	ctx := context.Background()
	payments := new(mockPaymentRepository)
	payments.On("FindWebhookByKey", ctx, "PAYMENT_RECEIVED:evt_1").Return(nil, nil).Once()
	payments.On("CreateWebhook", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

	_, _, err := newReceivingPaymentService(t, payments, new(mockQueue)).ReceiveWebhook(ctx, []byte(receivedBody))
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicate)
}
