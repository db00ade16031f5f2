package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"

	"golang.org/x/time/rate"
)

// UploadLimiter keeps one token bucket per caller.
type UploadLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewUploadLimiter allows perMinute uploads per caller with the given burst.
func NewUploadLimiter(perMinute float64, burst int) *UploadLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UploadLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
	}
}

func (l *UploadLimiter) limiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Middleware throttles POST requests. Other methods pass through.
func (l *UploadLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		key, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			key = r.RemoteAddr
		}
		limiter := l.limiter(key)
		if !limiter.Allow() {
			if l.limit > 0 {
				retry := time.Duration(float64(time.Second) / float64(l.limit))
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			}
			writeError(w, http.StatusTooManyRequests, "upload rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
