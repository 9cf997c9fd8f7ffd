package asaas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpus/backend/pkg/circuitbreaker"
	apperrors "github.com/gpus/backend/pkg/errors"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	c, err := NewClient(Options{APIKey: "key", BaseURL: srv.URL, MaxRetries: 2})
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

func TestGetCustomerSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("access_token"))
		assert.Equal(t, "gpus-saas/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "/customers/cus_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"cus_1","name":"Ana"}`))
	}))
	defer srv.Close()

	cust, err := newTestClient(t, srv).GetCustomer(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", cust.Name)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.breaker = circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 10})

	p, err := c.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", p.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetriedOrCounted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_customer","description":"Cliente inválido"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetPayment(context.Background(), "pay_1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Cliente inválido", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, circuitbreaker.StateClosed, c.Breaker().State())
}

func TestOpenBreakerSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GetPayment(context.Background(), "pay_1")
	assert.Error(t, err)
	assert.Equal(t, circuitbreaker.StateOpen, c.Breaker().State())
	before := atomic.LoadInt32(&calls)

	_, err = c.GetPayment(context.Background(), "pay_1")
	assert.True(t, apperrors.IsServiceUnavailable(err))
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestValidateCustomerPayload(t *testing.T) {
	assert.NoError(t, ValidateCustomerPayload(CustomerPayload{Name: "Ana", Email: "ana@x.com", Phone: "11999990000"}))

	err := ValidateCustomerPayload(CustomerPayload{Email: "bad", Phone: "123"})
	require.Error(t, err)
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.Details, 3)
}

func TestBackoffGrows(t *testing.T) {
	d0 := Backoff(time.Second, 0)
	d2 := Backoff(time.Second, 2)
	assert.GreaterOrEqual(t, d0, time.Second)
	assert.Less(t, d0, 2*time.Second)
	assert.GreaterOrEqual(t, d2, 4*time.Second)
	assert.LessOrEqual(t, Backoff(time.Second, 10), DefaultMaxDelay+time.Second)
}
