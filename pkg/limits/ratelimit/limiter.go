package ratelimit

import (
	"sync"
	"time"

	"mercator-hq/ruler/pkg/config"
)

// Limiter rate limits requests per client key and, optionally, bounds the
// number of requests in flight.
type Limiter struct {
	rate       float64
	burst      int64
	idle       time.Duration
	concurrent *ConcurrentLimiter
	now        func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewLimiter creates a limiter from cfg. Enabled is not consulted; callers
// decide whether to install the limiter at all.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg config.RateLimitConfig, now func() time.Time) *Limiter {
	l := &Limiter{
		rate:      cfg.RequestsPerSecond,
		burst:     cfg.Burst,
		idle:      cfg.IdleTimeout,
		now:       now,
		clients:   make(map[string]*client),
		lastSweep: now(),
	}
	if l.burst < 1 {
		l.burst = 1
	}
	if cfg.MaxConcurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.MaxConcurrent)
	}
	return l
}

// Allow takes one token from key's bucket. When none is left it returns
// false and how long the client should wait before retrying.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: newTokenBucket(l.burst, l.rate, l.now)}
		l.clients[key] = c
	}
	c.lastSeen = now
	l.sweepLocked(now)
	l.mu.Unlock()

	if c.bucket.Take(1) {
		return true, 0
	}
	return false, c.bucket.TimeUntilAvailable(1)
}

// Acquire takes an in-flight slot. It always succeeds when no concurrency
// cap is configured.
func (l *Limiter) Acquire() bool {
	if l.concurrent == nil {
		return true
	}
	return l.concurrent.Acquire()
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	if l.concurrent != nil {
		l.concurrent.Release()
	}
}

// Clients returns the number of tracked client buckets.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// sweepLocked drops clients idle for longer than the idle timeout. It runs at
// most once per idle period. Caller must hold l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	if l.idle <= 0 || now.Sub(l.lastSweep) < l.idle {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idle {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}
