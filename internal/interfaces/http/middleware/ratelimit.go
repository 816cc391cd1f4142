package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window in-memory rate limiter. Each traffic class
// (webhook ingestion, admin API) gets its own instance with its own key
// space and thresholds; instances are constructed and injected explicitly,
// never shared through package state.
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*windowEntry
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// CheckResult describes the limiter's verdict for one request
type CheckResult struct {
	// Allowed is false once the window's request count exceeds the limit
	Allowed bool
	// Remaining is how many more requests fit in the current window
	Remaining int
	// ResetAt is when the current window ends and counts start over
	ResetAt time.Time
	// TotalInWindow is the request count within the current window,
	// including this one
	TotalInWindow int
}

// NewRateLimiter creates a rate limiter allowing maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		entries:     make(map[string]*windowEntry),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Check counts a request against the key's current window and reports
// whether it is allowed. Expired entries across the whole table are purged
// lazily on each call; there is no background sweeper. Exceeding the limit
// is not an error condition — the caller decides how to reject.
func (rl *RateLimiter) Check(key string) CheckResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.purge(now)

	entry, ok := rl.entries[key]
	if !ok || !now.Before(entry.resetAt) {
		entry = &windowEntry{count: 1, resetAt: now.Add(rl.window)}
		rl.entries[key] = entry
	} else {
		entry.count++
	}

	remaining := rl.maxRequests - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return CheckResult{
		Allowed:       entry.count <= rl.maxRequests,
		Remaining:     remaining,
		ResetAt:       entry.resetAt,
		TotalInWindow: entry.count,
	}
}

// purge drops every expired entry. O(n) over the table, amortized by the
// fact that webhook and admin key cardinality is small (shops, not users).
// Caller holds the mutex.
func (rl *RateLimiter) purge(now time.Time) {
	for key, entry := range rl.entries {
		if !now.Before(entry.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// Limit returns the configured per-window maximum
func (rl *RateLimiter) Limit() int {
	return rl.maxRequests
}

// RateLimit returns middleware that limits by client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RateLimitByKey returns middleware that limits using a custom key
// extractor (e.g. the webhook's shop domain header). Rejections answer 429
// with the standard error envelope and rate limit headers either way.
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := limiter.Check(keyFunc(c))

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_RATE_LIMITED",
					"message": "Too many requests. Please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}
