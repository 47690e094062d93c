package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// StatusError is a non-2xx reply from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RetryProvider retries transient Chat failures with exponential backoff.
type RetryProvider struct {
	Provider
	maxRetries int
	interval   time.Duration
}

// WithRetry wraps p so that transient failures are retried up to maxRetries
// times. A non-positive maxRetries returns p unchanged.
func WithRetry(p Provider, maxRetries int) Provider {
	if maxRetries <= 0 {
		return p
	}
	return &RetryProvider{Provider: p, maxRetries: maxRetries, interval: 150 * time.Millisecond}
}

// policy doubles the wait from r.interval and stops after r.maxRetries
// retries or when ctx ends.
func (r *RetryProvider) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.interval
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.MaxInterval = 30 * r.interval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

func (r *RetryProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	permanent := false
	resp, err := backoff.RetryWithData(func() (*Response, error) {
		resp, err := r.Provider.Chat(ctx, messages, opts)
		if err != nil && !retryable(err) {
			permanent = true
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}, r.policy(ctx))
	switch {
	case err == nil:
		return resp, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case permanent:
		return nil, err
	}
	return nil, fmt.Errorf("%s: chat failed after %d retries: %w", r.Name(), r.maxRetries, err)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
