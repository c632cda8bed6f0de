package slack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
)

const (
	defaultMaxAttempts = 5
	defaultRetryMin    = 1 * time.Second
	defaultRetryMax    = 60 * time.Second

	errCodeRateLimited = "ratelimited"
	errCodeServerError = "server_error"
)

// transientCodes are the remote error codes worth retrying. Everything else
// coming back in an ok:false envelope (invalid_auth, channel_not_found,
// missing_scope, ...) is permanent and fails fast instead of burning the
// retry budget.
var transientCodes = map[string]bool{
	errCodeRateLimited:    true,
	errCodeServerError:    true,
	"internal_error":      true,
	"service_unavailable": true,
	"request_timeout":     true,
}

// APIError is a failure reported by the Slack Web API itself, as opposed to
// a transport-level failure.
type APIError struct {
	Method     string
	Code       string
	Status     int
	RetryAfter time.Duration
	permanent  bool
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("slack: %s failed: %s (status %d)", e.Method, e.Code, e.Status)
	}
	return fmt.Sprintf("slack: %s failed: %s", e.Method, e.Code)
}

// Transient reports whether retrying the call could plausibly succeed.
func (e *APIError) Transient() bool {
	if e.permanent {
		return false
	}
	return transientCodes[e.Code]
}

func newAPIError(method, code string) *APIError {
	return &APIError{Method: method, Code: code, permanent: !transientCodes[code]}
}

type retryPolicy struct {
	maxAttempts int
	minDelay    time.Duration
	maxDelay    time.Duration
}

// withRetry runs fn with randomized exponential backoff on transient
// failures: network errors, rate limiting and remote 5xx-class conditions.
// Permanent API errors and context cancellation return immediately. When a
// rate-limit response carries Retry-After, that wait wins over the backoff
// schedule. Exhausting the attempt budget returns the last error.
func (c *Client) withRetry(ctx context.Context, method string, fn func() error) error {
	b := &backoff.Backoff{
		Min:    c.retry.minDelay,
		Max:    c.retry.maxDelay,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= c.retry.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == c.retry.maxAttempts {
			break
		}

		delay := b.Duration()
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > delay {
			delay = apiErr.RetryAfter
		}
		c.log.Warn("retrying call", "method", method, "attempt", attempt, "delay", delay, "err", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("slack: %s: retries exhausted: %w", method, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	// transport-level failures (connection reset, DNS, timeouts) surface as
	// wrapped url.Error values; treat them all as retryable
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
