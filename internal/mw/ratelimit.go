package mw

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

// ClientRateLimiter hands out one token bucket per client key.
type ClientRateLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

// NewClientRateLimiter creates a limiter allowing r requests per second with burst b per client.
func NewClientRateLimiter(r rate.Limit, b int) *ClientRateLimiter {
	return &ClientRateLimiter{
		limiters: cache.New(idleLimiterTTL, 2*idleLimiterTTL),
		r:        r,
		b:        b,
	}
}

// Allow reports whether the client identified by key may make a request now.
func (l *ClientRateLimiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

func (l *ClientRateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		l.limiters.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	fresh := rate.NewLimiter(l.r, l.b)
	if err := l.limiters.Add(key, fresh, cache.DefaultExpiration); err != nil {
		// Lost the race; another request created it first.
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return fresh
}

// ClientKey identifies the caller by the given request header, falling
// back to gin's client IP when the header is unset or empty.
func ClientKey(c *gin.Context, header string) string {
	if header != "" {
		if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = strings.TrimSpace(v[:i])
			}
			return v
		}
	}
	return c.ClientIP()
}

// RateLimiter is a middleware for per-client rate limiting.
func RateLimiter(r rate.Limit, b int, header string) gin.HandlerFunc {
	limiter := NewClientRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Allow(ClientKey(c, header)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
