// Package retry holds the HTTP retry policy shared by the provider clients:
// exponential backoff for 408/429/5xx responses and network timeouts, with
// Retry-After honoured up to the configured ceiling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Policy controls how many times a request is attempted and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Sleeper replaces the timer-based wait; tests use it to avoid real sleeps.
	Sleeper func(time.Duration)
}

// DefaultPolicy returns five attempts with 1s doubling backoff capped at 10s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: defaultMaxAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// NewStatusError builds a StatusError from a response and its already-read body.
func NewStatusError(op string, resp *http.Response, body []byte) *StatusError {
	retryAfter, _ := ParseRetryAfter(resp.Header.Get("Retry-After"))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
		RetryAfter: retryAfter,
	}
}

// Retryable is implemented by errors that should always be retried, such as an
// empty completion from an otherwise healthy endpoint.
type Retryable interface {
	Retryable() bool
}

// Do invokes fn until it succeeds, returns a non-retryable error, or attempts run out.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := p.attempts()
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		delay, retry := p.Delay(ctx, err, attempt)
		if !retry {
			if attempt > 1 {
				return fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return err
		}
		if attempt >= attempts {
			return fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
		}
		if sleepErr := p.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay reports whether err warrants another attempt and how long to wait first.
// It does not consider the attempt budget; Do does.
func (p Policy) Delay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var marked Retryable
	if errors.As(err, &marked) && marked.Retryable() {
		return p.backoff(attempt), true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return p.capDelay(statusErr.RetryAfter), true
			}
			return p.backoff(attempt), true
		default:
			return 0, false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from BaseDelay per attempt: 1 -> base, 2 -> 2*base, 3 -> 4*base.
func (p Policy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base < 0 {
		base = defaultBaseDelay
	}
	if base == 0 {
		return 0
	}
	maxDelay := p.maxDelay()
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return p.capDelay(delay)
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := p.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Sleep waits for delay or until ctx is done.
func (p Policy) Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Sleeper != nil {
		p.Sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter accepts either delta-seconds or an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
