package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

// Reset drops limiters that are back to a full bucket so the map does not grow without bound.
func (i *IPRateLimiter) Reset() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for ip, limiter := range i.ips {
		if limiter.Tokens() >= float64(i.b) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

func IPRateLimitMiddleware(ipLimiter *IPRateLimiter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		limiter := ipLimiter.GetLimiter(clientIP)

		if !limiter.Allow() {
			log.Warn("rate limit exceeded",
				zap.String("ip", clientIP), zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded for your IP, please try again in a few seconds",
			})
			return
		}

		c.Next()
	}
}
