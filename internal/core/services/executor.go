package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/veridoc-core/internal/core/domain"
)

const (
	// minRetryDelay is the floor for any throttled retry delay
	minRetryDelay = 1000 * time.Millisecond

	// maxBackoffDelay caps the exponential backoff
	maxBackoffDelay = 30000 * time.Millisecond
)

// rateLimitSignatures are the error-text markers that classify a failure
// as throttled. Anything else is non-retriable.
var rateLimitSignatures = []string{"429", "too many requests", "rate limit", "slow down"}

// retryAfterPattern matches a "retry-after: N" hint embedded in error text
// (seconds).
var retryAfterPattern = regexp.MustCompile(`(?i)retry[- ]after:?\s*(\d+)`)

// RetryExecutor wraps a single ledger call with throttle-awareness and
// exponential backoff. It is the single choke point through which every
// ledger read passes; no strategy calls the ledger directly.
type RetryExecutor struct {
	throttle *RequestThrottle
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a retry executor over a shared throttle.
func NewRetryExecutor(throttle *RequestThrottle, logger *slog.Logger) *RetryExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryExecutor{
		throttle: throttle,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Execute runs fn through the throttle, retrying throttled failures up to
// maxAttempts with exponential backoff starting at baseDelay. Non-retriable
// errors propagate immediately with no retry. Exhaustion returns an error
// wrapping domain.ErrExhaustedRetries.
func (e *RetryExecutor) Execute(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	backoff := baseDelay
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := e.throttle.Acquire(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !isRateLimited(err) {
			return err
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		delay := retryDelay(err, backoff)
		e.logger.Debug("ledger call throttled, retrying",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
		)

		if err := e.sleep(ctx, delay); err != nil {
			return err
		}

		backoff *= 2
		if backoff > maxBackoffDelay {
			backoff = maxBackoffDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", domain.ErrExhaustedRetries, maxAttempts, lastErr)
}

// isRateLimited classifies an error as throttled, either by type or by
// matching known rate-limit signatures in its text.
func isRateLimited(err error) bool {
	var throttled *domain.ThrottledError
	if errors.As(err, &throttled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// retryDelay picks the wait before the next attempt, in priority order:
// a Retry-After hint carried by a typed throttle error, a "retry-after: N"
// pattern in the error text, then the current backoff value. The result is
// clamped to minRetryDelay.
func retryDelay(err error, backoff time.Duration) time.Duration {
	delay := backoff

	var throttled *domain.ThrottledError
	if errors.As(err, &throttled) && throttled.RetryAfter > 0 {
		delay = throttled.RetryAfter
	} else if m := retryAfterPattern.FindStringSubmatch(err.Error()); m != nil {
		if secs, convErr := strconv.Atoi(m[1]); convErr == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
	}

	if delay < minRetryDelay {
		delay = minRetryDelay
	}
	return delay
}

// sleepCtx sleeps for d or returns early when the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
