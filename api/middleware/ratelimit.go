package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/apptrelay/config"
	"github.com/use-agent/apptrelay/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL = time.Hour
	limiterSweep   = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiters holds one token bucket per caller identity.
type limiters struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func (l *limiters) get(identity string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evict drops buckets idle since before cutoff.
func (l *limiters) evict(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. Buckets idle for an hour
// are evicted in the background.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := &limiters{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(limiterSweep)
		defer ticker.Stop()
		for range ticker.C {
			l.evict(time.Now().Add(-limiterIdleTTL))
		}
	}()

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.GetString(ContextKeyAPIKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !l.get(identity, time.Now()).Allow() {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited,
				"rate limit exceeded, a scraping run was triggered too recently")
			return
		}
		c.Next()
	}
}
