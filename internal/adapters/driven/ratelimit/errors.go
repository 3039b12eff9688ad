package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/mentions/internal/core/domain"
)

// HeaderRetryAfter is the standard backoff hint on 429 and 503 responses.
const HeaderRetryAfter = "Retry-After"

// maxErrorBody caps how much of a failure body is kept in the error.
const maxErrorBody = 512

// StatusError is a non-2xx response from an external capability.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// Unwrap classifies the status: 429 is domain.ErrRateLimited, 408 and 5xx
// are domain.ErrTransient, anything else is permanent.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode >= 500:
		return domain.ErrTransient
	default:
		return nil
	}
}

// RetryAfter returns the server's backoff hint, or zero.
func (e *StatusError) RetryAfter() time.Duration {
	return e.retryAfter
}

// CheckResponse returns nil for a 2xx response and a *StatusError
// otherwise. A 429 also pushes the limiter back, when one is given.
func CheckResponse(service string, resp *http.Response, body []byte, limiter *RateLimiter) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	err := &StatusError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       text,
		retryAfter: parseRetryAfter(resp.Header.Get(HeaderRetryAfter)),
	}
	if resp.StatusCode == http.StatusTooManyRequests && limiter != nil {
		limiter.RecordRateLimitError(err.retryAfter)
	}
	return err
}

// WrapTransport classifies a failed round trip. Timeouts and dropped
// connections are transient; caller cancellation is passed through.
func WrapTransport(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", service, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "connection reset") ||
		strings.Contains(err.Error(), "connection refused") || strings.Contains(err.Error(), "EOF") {
		return fmt.Errorf("%s: %w: %v", service, domain.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", service, err)
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
