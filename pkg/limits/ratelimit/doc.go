// Package ratelimit limits API requests per client.
//
// A Limiter keeps one token bucket per client key (the API uses the remote
// IP) and optionally caps the number of in-flight requests across all
// clients:
//
//	limiter := ratelimit.NewLimiter(cfg.Server.RateLimit)
//	if ok, wait := limiter.Allow(clientIP); !ok {
//	    // reject, retry after wait
//	}
//	if !limiter.Acquire() {
//	    // too many requests in flight
//	}
//	defer limiter.Release()
//
// Buckets of clients idle for longer than the configured idle timeout are
// dropped, so memory stays bounded by the number of active clients.
package ratelimit
