package services

import (
	"context"
	"sync"
	"time"
)

// throttleSafetyMargin is added to every computed wait so a slot has
// actually left the window when the caller re-checks.
const throttleSafetyMargin = 25 * time.Millisecond

// RequestThrottle is a sliding-window limiter bounding outbound ledger
// reads to maxRequests per trailing window. It never drops a request,
// only delays it. The timestamp window is the only shared mutable state
// between concurrent scan strategies, serialized by a single mutex.
type RequestThrottle struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
}

// NewRequestThrottle creates a throttle allowing maxRequests per window.
// Defaults: 8 requests per 1000ms.
func NewRequestThrottle(maxRequests int, window time.Duration) *RequestThrottle {
	if maxRequests <= 0 {
		maxRequests = 8
	}
	if window <= 0 {
		window = time.Second
	}
	return &RequestThrottle{
		maxRequests: maxRequests,
		window:      window,
	}
}

// Acquire blocks until issuing a request would not exceed the window bound,
// then records the request. The check-and-wait is an explicit loop, not
// assumed satisfied after one wait: concurrent callers may have raced into
// the window while this one slept.
func (t *RequestThrottle) Acquire(ctx context.Context) error {
	for {
		t.mu.Lock()
		now := time.Now()
		t.prune(now)

		if len(t.timestamps) < t.maxRequests {
			t.timestamps = append(t.timestamps, now)
			t.mu.Unlock()
			return nil
		}

		// Wait until the oldest timestamp exits the window.
		wait := t.timestamps[0].Add(t.window).Sub(now) + throttleSafetyMargin
		t.mu.Unlock()

		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// prune drops timestamps older than the trailing window. Caller holds the mutex.
func (t *RequestThrottle) prune(now time.Time) {
	cutoff := now.Add(-t.window)
	idx := 0
	for idx < len(t.timestamps) && !t.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		t.timestamps = append(t.timestamps[:0], t.timestamps[idx:]...)
	}
}
