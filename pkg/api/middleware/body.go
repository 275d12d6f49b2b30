package middleware

import (
	"net/http"
)

// MaxBody limits request bodies to limit bytes. Requests that declare a
// larger Content-Length are refused with 413 before the handler runs;
// others are cut off by http.MaxBytesReader while the handler reads.
// A non-positive limit disables the check.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
