// Package ratelimit implements a fixed-window request limiter keyed by
// client identity. Thread-safe. No background goroutines — expired windows
// are pruned lazily on each Check call, so the map cannot grow without bound
// under many distinct clients.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts requests per key in discrete, non-overlapping windows.
// Bursts at window boundaries are possible; this is anti-abuse throttling,
// not billing-grade accounting.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*window
	max     int
	period  time.Duration
}

type window struct {
	count   int
	resetAt time.Time
}

// NewLimiter allows max requests per key in each period.
func NewLimiter(max int, period time.Duration) *Limiter {
	return &Limiter{
		entries: make(map[string]*window),
		max:     max,
		period:  period,
	}
}

// Check records a request for key. On denial it returns the number of
// seconds until the key's window resets, rounded up and at least 1.
func (l *Limiter) Check(key string) (retryAfter int, allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.prune(now)

	w, ok := l.entries[key]
	if !ok || !now.Before(w.resetAt) {
		l.entries[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return 0, true
	}
	if w.count < l.max {
		w.count++
		return 0, true
	}

	retry := int((w.resetAt.Sub(now) + time.Second - 1) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return retry, false
}

func (l *Limiter) prune(now time.Time) {
	for key, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, key)
		}
	}
}
