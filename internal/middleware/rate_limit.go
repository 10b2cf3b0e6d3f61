package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIPKey charges requests to the caller's IP address.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// ParamKey charges requests to a route parameter, e.g. the integration ID of
// a webhook route, so one noisy site cannot starve the others.
func ParamKey(name string) KeyFunc {
	return func(c *gin.Context) string {
		return name + ":" + c.Param(name)
	}
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	visitors map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit // requests per second
	b        int        // burst size
	key      KeyFunc
}

// NewRateLimiter creates a limiter allowing r requests per second with bursts
// of b. Idle buckets are swept every minute until ctx is done.
func NewRateLimiter(ctx context.Context, r rate.Limit, b int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = ClientIPKey
	}
	rl := &RateLimiter{
		visitors: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
		key:      key,
	}

	go rl.cleanupVisitors(ctx, time.Minute)

	return rl
}

func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.visitors[key]
	if !exists {
		limiter = rate.NewLimiter(rl.r, rl.b)
		rl.visitors[key] = limiter
	}

	return limiter
}

// cleanupVisitors drops buckets that have refilled completely
func (rl *RateLimiter) cleanupVisitors(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		for key, limiter := range rl.visitors {
			if limiter.Tokens() >= float64(rl.b) {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware returns a Gin middleware function for rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(rl.key(c)).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
