package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/server/respond"
)

// RateLimitRule is a token bucket: Rate tokens per second, at most Burst banked.
// A non-positive Rate or Burst disables the rule.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// RateLimitConfig limits one route group per owner.
type RateLimitConfig struct {
	// Group namespaces buckets so several limited groups can share a Limiter.
	Group   string
	Rule    RateLimitRule
	Limiter *RateLimiter
}

type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	last   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: now}
}

// RateLimit keys buckets by the authenticated owner, or the client IP when
// no identity is set, and answers 429 with the standard error envelope.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	return func(c *gin.Context) {
		owner := strings.TrimSpace(UserIDFromContext(c))
		if owner == "" {
			owner = c.ClientIP()
		}
		allowed, retryAfter := cfg.Limiter.Allow(cfg.Group+"|"+owner, cfg.Rule)
		if allowed {
			c.Next()
			return
		}
		retryAfterMs := max(retryAfter.Milliseconds(), 1)
		c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(float64(retryAfterMs)/1000)), 10))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
			"retryAfterMs": retryAfterMs,
		})
	}
}

// Allow spends one token from key's bucket and reports how long until the next one.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = bucket
	}
	if elapsed := now.Sub(bucket.last).Seconds(); elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Burst), bucket.tokens+elapsed*rule.Rate)
		bucket.last = now
	}
	if bucket.tokens >= 1 {
		bucket.tokens--
		return true, 0
	}
	wait := (1 - bucket.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}
