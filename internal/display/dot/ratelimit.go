package dot

import (
	"context"
	"sync"
	"time"
)

// intervalLimiter enforces a minimum gap between uploads. The next slot is
// reserved under the lock and the sleep happens outside it, so concurrent
// callers queue without busy-waiting.
type intervalLimiter struct {
	mu          sync.Mutex
	next        time.Time
	minInterval time.Duration
}

func (l *intervalLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()
	wait := time.Duration(0)
	start := now
	if !l.next.IsZero() && now.Before(l.next) {
		wait = l.next.Sub(now)
		start = l.next
	}
	l.next = start.Add(l.minInterval)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
