package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chainsafe/qtx-rewards/internal/metrics"
)

const limiterIdleTTL = 30 * time.Minute

// KeyFunc extracts the rate limit key from a request. An empty key is not limited.
type KeyFunc func(r *http.Request) string

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	swept    time.Time
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per key with the given burst.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether a request for key may proceed now
func (l *RateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now

	if now.Sub(l.swept) > limiterIdleTTL {
		for k, other := range l.limiters {
			if now.Sub(other.lastSeen) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.swept = now
	}
	return e.limiter.AllowN(now, 1)
}

// Middleware rejects requests over the limit with 429
func (l *RateLimiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !l.Allow(k) {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", "1")
				WriteJSON(w, http.StatusTooManyRequests, &errorResponse{
					ErrMsg:     "too many requests",
					ErrMsgCode: http.StatusTooManyRequests,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
