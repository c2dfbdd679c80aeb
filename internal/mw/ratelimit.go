package mw

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiter tracks one limiter per client IP. Entries idle for an hour are
// evicted so the map does not grow without bound.
type ipLimiter struct {
	mu        sync.Mutex
	ips       map[string]*ipEntry
	r         rate.Limit
	b         int
	lastEvict time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const evictAfter = time.Hour

func newIPLimiter(r rate.Limit, b int) *ipLimiter {
	return &ipLimiter{
		ips:       make(map[string]*ipEntry),
		r:         r,
		b:         b,
		lastEvict: time.Now(),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastEvict) > evictAfter {
		for k, e := range l.ips {
			if now.Sub(e.lastSeen) > evictAfter {
				delete(l.ips, k)
			}
		}
		l.lastEvict = now
	}

	entry, ok := l.ips[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := newIPLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
