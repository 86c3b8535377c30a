package util

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter is a token bucket holding at most one token, refilled at a
// fixed rate. Callers queue in Wait until their token is due.
type RateLimiter struct {
	clock    clockwork.Clock
	interval time.Duration // time per token

	mu   sync.Mutex
	next time.Time // when the next token becomes available
}

// NewRateLimiter allows perMinute operations per minute on the real clock.
// perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	return NewRateLimiterWithClock(clockwork.NewRealClock(), perMinute)
}

// NewRateLimiterWithClock is NewRateLimiter driven by clock.
func NewRateLimiterWithClock(clock clockwork.Clock, perMinute int) *RateLimiter {
	rl := &RateLimiter{clock: clock, next: clock.Now()}
	if perMinute > 0 {
		rl.interval = time.Minute / time.Duration(perMinute)
	}
	return rl
}

// Wait blocks until a token is available or ctx is done. A caller that
// gives up does not consume its slot.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.interval == 0 {
		return ctx.Err()
	}

	rl.mu.Lock()
	now := rl.clock.Now()
	if rl.next.Before(now) {
		rl.next = now
	}
	at := rl.next
	rl.next = at.Add(rl.interval)
	rl.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		rl.mu.Lock()
		// Hand the slot back if nobody queued behind it.
		if rl.next.Equal(at.Add(rl.interval)) {
			rl.next = at
		}
		rl.mu.Unlock()
		return ctx.Err()
	case <-rl.clock.After(wait):
		return nil
	}
}
