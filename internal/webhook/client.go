// Package webhook delivers job completion and failure callbacks over HTTP.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Static errors for webhook delivery.
var (
	// ErrURLRequired is returned when no callback URL is provided.
	ErrURLRequired = errors.New("webhook: URL is required")
	// ErrDeliveryFailed is returned when the callback could not be delivered.
	ErrDeliveryFailed = errors.New("webhook: delivery failed")
	// ErrServerError is returned when the receiver answers with a 5xx status code.
	ErrServerError = errors.New("webhook: server error")
	// ErrRateLimited is returned when the receiver answers with a 429 status code.
	ErrRateLimited = errors.New("webhook: rate limited")
	// ErrRejected is returned for any other non-2xx status code.
	ErrRejected = errors.New("webhook: rejected")
)

// maxBodyInError caps how much of a response body is kept in errors.
const maxBodyInError = 512

// Notifier delivers a payload to a callback URL.
type Notifier interface {
	Notify(ctx context.Context, url string, payload Payload) error
}

// HTTPClient is the HTTP implementation of Notifier.
type HTTPClient struct {
	authToken   string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	logger      *slog.Logger
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAuthToken sets the bearer token sent in the Authorization header.
func WithAuthToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.authToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		if d > 0 {
			hc.httpClient.Timeout = d
		}
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		if n >= 0 {
			hc.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(hc *HTTPClient) {
		if logger != nil {
			hc.logger = logger
		}
	}
}

// NewClient creates a new webhook HTTP client.
func NewClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  2,
		baseBackoff: 1 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify POSTs payload as JSON to url, retrying network errors, 5xx, and 429
// with exponential backoff.
func (c *HTTPClient) Notify(ctx context.Context, url string, payload Payload) error {
	if url == "" {
		return ErrURLRequired
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	if err := c.doRequestWithRetry(ctx, url, body); err != nil {
		return err
	}

	c.logger.Info("webhook delivered",
		slog.String("job_id", payload.JobID),
		slog.String("status", payload.Status),
	)
	return nil
}

// doRequestWithRetry performs the POST with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, url string, body []byte) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, url, body)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}

		c.logger.Warn("webhook attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
		lastErr = err
	}

	return fmt.Errorf("%w: max retries exceeded: %w", ErrDeliveryFailed, lastErr)
}

// doRequest performs a single POST.
func (c *HTTPClient) doRequest(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("webhook: request failed: %w", err)
		}
		return &retryableError{err: fmt.Errorf("webhook: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyInError))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return fmt.Errorf("%w with status %d: %s", ErrRejected, resp.StatusCode, string(respBody))
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Verify interface implementation at compile time.
var _ Notifier = (*HTTPClient)(nil)
