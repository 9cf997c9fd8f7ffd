// Package asaas is a minimal Asaas v3 API client protected by a circuit
// breaker and exponential backoff.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gpus/backend/pkg/circuitbreaker"
)

const (
	DefaultBaseURL    = "https://api.asaas.com/v3"
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
	userAgent         = "gpus-saas/1.0"
	serviceName       = "Asaas"
)

// APIError is a non-2xx answer from Asaas
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("asaas api error (%d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed on a later attempt
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Options configures a Client
type Options struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
	BaseDelay  time.Duration
	HTTPClient *http.Client
	Breaker    *circuitbreaker.Breaker
}

// Client talks to the Asaas REST API
type Client struct {
	apiKey     string
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
	http       *http.Client
	breaker    *circuitbreaker.Breaker
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. A missing API key is a configuration error.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("ASAAS_API_KEY is not configured")
	}
	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.BaseDelay,
		http:       opts.HTTPClient,
		breaker:    opts.Breaker,
		sleep:      sleepContext,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return c, nil
}

// Breaker exposes the breaker for health reporting
func (c *Client) Breaker() *circuitbreaker.Breaker {
	return c.breaker
}

// CreateCustomer registers a customer
func (c *Client) CreateCustomer(ctx context.Context, payload CustomerPayload) (*Customer, error) {
	if err := ValidateCustomerPayload(payload); err != nil {
		return nil, err
	}
	var out Customer
	if err := c.do(ctx, http.MethodPost, "/customers", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCustomer fetches a customer by id
func (c *Client) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var out Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPayments lists the payments of a customer
func (c *Client) ListPayments(ctx context.Context, customerID string) (*PaymentList, error) {
	q := url.Values{}
	if customerID != "" {
		q.Set("customer", customerID)
	}
	var out PaymentList
	if err := c.do(ctx, http.MethodGet, "/payments?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPayment fetches a payment by id
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePayment creates a charge
func (c *Client) CreatePayment(ctx context.Context, payload PaymentPayload) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/payments", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one logical request with retries. Each attempt goes through the breaker.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		lastErr = c.breaker.Execute(ctx, serviceName, func(ctx context.Context) error {
			return c.send(ctx, method, path, payload, out)
		}, countsAsFailure)

		if lastErr == nil || !isRetryable(lastErr) || attempt == c.maxRetries {
			break
		}

		delay := Backoff(c.baseDelay, attempt)
		log.Printf("⚠️ Asaas %s %s attempt %d/%d failed, retrying in %s: %v", method, path, attempt+1, c.maxRetries+1, delay, lastErr)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("asaas request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("asaas response read failed: %w", err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// Backoff returns base * 2^attempt plus up to one second of jitter
func Backoff(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<uint(attempt))
	if delay > DefaultMaxDelay {
		delay = DefaultMaxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(time.Second)))
}

// countsAsFailure keeps client errors (4xx other than 429) out of the breaker
func countsAsFailure(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	// open circuit: no point hammering
	var unavailable interface{ HTTPStatus() int }
	if errors.As(err, &unavailable) {
		return false
	}
	return true
}

func errorMessage(body []byte, fallback string) string {
	var parsed apiErrorBody
	if json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
		msgs := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			msgs = append(msgs, e.Description)
		}
		return strings.Join(msgs, "; ")
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
