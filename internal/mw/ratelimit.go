package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter stores a rate limiter for each client IP. Visitors idle for longer than idle
// are forgotten on the next sweep.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	r        rate.Limit
	b        int
	idle     time.Duration
	lastGC   time.Time
	now      func() time.Time
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		r:        r,
		b:        b,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	if now.Sub(i.lastGC) > i.idle {
		for k, v := range i.visitors {
			if now.Sub(v.lastSeen) > i.idle {
				delete(i.visitors, k)
			}
		}
		i.lastGC = now
	}

	v, exists := i.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.r, i.b)}
		i.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Len returns the number of tracked IPs.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.visitors)
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
