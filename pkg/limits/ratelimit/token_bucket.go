package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows bursts up to its capacity while holding the average
// rate to refillRate tokens per second.
type TokenBucket struct {
	capacity   int64
	tokens     int64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket.
//
//	// 10 requests/sec average, burst up to 50
//	bucket := NewTokenBucket(50, 10)
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int64, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Take consumes n tokens if they are available.
func (tb *TokenBucket) Take(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// Remaining returns the tokens currently available.
func (tb *TokenBucket) Remaining() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// TimeUntilAvailable returns how long until n tokens are available, or 0
// when they already are.
func (tb *TokenBucket) TimeUntilAvailable(n int64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= n {
		return 0
	}

	needed := float64(n-tb.tokens) / tb.refillRate
	elapsed := tb.now().Sub(tb.lastRefill).Seconds()
	wait := needed - elapsed
	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait * float64(time.Second))
}

// refillLocked adds the whole tokens earned since the last refill. The
// fractional remainder keeps accruing because lastRefill only moves when a
// token is added. Caller must hold tb.mu.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	earned := int64(now.Sub(tb.lastRefill).Seconds() * tb.refillRate)
	if earned <= 0 {
		return
	}

	tb.tokens += earned
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.lastRefill = now
		return
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(float64(earned) / tb.refillRate * float64(time.Second)))
}
