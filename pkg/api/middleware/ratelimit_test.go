package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercator-hq/ruler/pkg/config"
	"mercator-hq/ruler/pkg/limits/ratelimit"
)

type stubLimiter struct {
	mu       sync.Mutex
	allow    bool
	wait     time.Duration
	slots    int
	keys     []string
	released int
}

func (s *stubLimiter) Allow(key string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return s.allow, s.wait
}

func (s *stubLimiter) Acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots == 0 {
		return false
	}
	s.slots--
	return true
}

func (s *stubLimiter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots++
	s.released++
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name           string
		limiter        *stubLimiter
		path           string
		wantStatus     int
		wantRetryAfter string
		wantMessage    string
	}{
		{
			name:       "allowed",
			limiter:    &stubLimiter{allow: true, slots: 1},
			path:       "/evaluate_rule",
			wantStatus: http.StatusOK,
		},
		{
			name:           "over rate",
			limiter:        &stubLimiter{allow: false, wait: 1500 * time.Millisecond, slots: 1},
			path:           "/evaluate_rule",
			wantStatus:     http.StatusTooManyRequests,
			wantRetryAfter: "2",
			wantMessage:    "Too many requests",
		},
		{
			name:           "sub-second wait rounds up",
			limiter:        &stubLimiter{allow: false, wait: 10 * time.Millisecond, slots: 1},
			path:           "/evaluate_rule",
			wantStatus:     http.StatusTooManyRequests,
			wantRetryAfter: "1",
			wantMessage:    "Too many requests",
		},
		{
			name:           "no free slot",
			limiter:        &stubLimiter{allow: true, slots: 0},
			path:           "/evaluate_rule",
			wantStatus:     http.StatusServiceUnavailable,
			wantRetryAfter: "1",
			wantMessage:    "Server is busy",
		},
		{
			name:       "exempt path",
			limiter:    &stubLimiter{allow: false, slots: 0},
			path:       "/health",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RateLimit(tt.limiter, nil, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.RemoteAddr = "192.0.2.7:51234"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetryAfter)
			}
			if tt.wantMessage != "" {
				var body errorBody
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("invalid JSON body: %v", err)
				}
				if body.Message != tt.wantMessage {
					t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
				}
			}
		})
	}
}

func TestRateLimit_KeysByHostAndReleases(t *testing.T) {
	limiter := &stubLimiter{allow: true, slots: 1}
	handler := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"192.0.2.7:1000", "192.0.2.7:2000", "[2001:db8::1]:443"} {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.RemoteAddr = addr
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	want := []string{"192.0.2.7", "192.0.2.7", "2001:db8::1"}
	for i, key := range want {
		if limiter.keys[i] != key {
			t.Errorf("key %d = %q, want %q", i, limiter.keys[i], key)
		}
	}
	if limiter.released != 3 || limiter.slots != 1 {
		t.Errorf("released = %d, slots = %d; want 3 and 1", limiter.released, limiter.slots)
	}
}

func TestRateLimit_WithLimiter(t *testing.T) {
	limiter := ratelimit.NewLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	handler := RateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 4)
	for _, addr := range []string{"10.0.0.1:1", "10.0.0.1:2", "10.0.0.1:3", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/rules", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests, http.StatusOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}
