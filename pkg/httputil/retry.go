package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/castleryder/dividend-harvest/pkg/config"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// RetryPolicy is the retry-with-backoff policy applied to every upstream call
// ⭐ SSOT: backoff math lives here, call sites never loop on their own
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // wait after the first failure
	MaxDelay    time.Duration // cap on any single wait
	Jitter      float64       // ±fraction applied to each wait, 0.2 = ±20%
}

// DefaultRetryPolicy matches the FETCH_* defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      0.2,
	}
}

// PolicyFromConfig builds a policy from the fetch section of the config
func PolicyFromConfig(f config.FetchConfig) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts: f.MaxAttempts,
		BaseDelay:   f.BaseDelay,
		MaxDelay:    f.MaxDelay,
		Jitter:      f.Jitter,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	return p
}

// Backoff returns the wait after the given failed attempt (1-based):
// BaseDelay * 2^(attempt-1), capped at MaxDelay, then jittered.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}

	if p.Jitter > 0 && d > 0 {
		delta := float64(d) * p.Jitter
		d = time.Duration(float64(d) - delta + rand.Float64()*2*delta)
	}
	return d
}

// Do runs op until it succeeds, fails with a non-retryable error, the context
// ends, or MaxAttempts is reached. It returns the number of attempts made.
// Every retry is logged with the caller's fields plus attempt and wait.
func (p RetryPolicy) Do(ctx context.Context, log *logger.Logger, fields map[string]interface{}, op func(ctx context.Context) error) (int, error) {
	if log == nil {
		log = logger.NewNop()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		if !IsRetryable(err) || attempt == maxAttempts {
			return attempt, err
		}

		wait := p.Backoff(attempt)
		log.WithFields(fields).WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
			"wait":         wait.String(),
		}).WithError(err).Warn("Retrying upstream call")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, err
}

// StatusError is a non-2xx HTTP response
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Retryable reports whether the status is worth another attempt
func (e *StatusError) Retryable() bool {
	return IsRetryableStatus(e.StatusCode)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Retryable() bool { return false }

// Permanent marks err as not worth retrying (e.g. an undecodable body)
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryableStatus checks if a status code should be retried
func IsRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// IsRetryable classifies err: timeouts, connection failures, 429 and 5xx
// are retryable; everything else is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, context.DeadlineExceeded)
}
