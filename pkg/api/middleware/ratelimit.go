package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/ruler/pkg/telemetry/metrics"
)

// RateLimiter decides whether a client may make a request.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
	Acquire() bool
	Release()
}

// RateLimit rejects requests from clients over their rate with 429 and
// requests beyond the in-flight cap with 503. Clients are keyed by remote IP.
// Paths listed in exempt bypass both checks.
func RateLimit(limiter RateLimiter, collector *metrics.Collector, exempt ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if ok, wait := limiter.Allow(clientKey(r)); !ok {
				collector.RecordRateLimited("rate")
				w.Header().Set("Retry-After", retryAfter(wait))
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			if !limiter.Acquire() {
				collector.RecordRateLimited("concurrency")
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "Server is busy")
				return
			}
			defer limiter.Release()

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// retryAfter renders wait in whole seconds, rounded up, never below 1.
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
