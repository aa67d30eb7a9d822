package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterTTL           = 30 * time.Minute
)

type userLimiter struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// SendLimiter throttles message sends per authenticated user.
type SendLimiter struct {
	perMinute int
	burst     int

	mu      sync.Mutex
	entries map[uuid.UUID]*userLimiter
}

func NewSendLimiter(perMinute, burst int) *SendLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &SendLimiter{
		perMinute: perMinute,
		burst:     burst,
		entries:   make(map[uuid.UUID]*userLimiter),
	}
}

func (l *SendLimiter) get(userID uuid.UUID) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[userID]
	if !ok {
		e = &userLimiter{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst),
		}
		l.entries[userID] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

// Allow reports whether userID may send one more message now.
func (l *SendLimiter) Allow(userID uuid.UUID) bool {
	return l.get(userID).Allow()
}

// Run drops idle limiters until ctx is cancelled.
func (l *SendLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *SendLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, e := range l.entries {
		if now.Sub(e.lastUse) > limiterTTL {
			delete(l.entries, id)
		}
	}
}

// Limit must run after Auth.
func (l *SendLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(GetUserID(r.Context())) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.burst))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Too many messages. Please slow down."}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
