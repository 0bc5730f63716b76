package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spriteops/key-server/internal/metrics"
	"github.com/spriteops/key-server/internal/ratelimit"
)

// RateLimit throttles the public link routes per client address. Denials
// carry only a retry hint, never the remaining budget.
func RateLimit(limiter *ratelimit.Limiter, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		retryAfter, allowed := limiter.Check(c.ClientIP())
		if allowed {
			c.Next()
			return
		}

		if m != nil {
			m.RateLimitedTotal.Inc()
		}
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		body := fmt.Sprintf("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Too many requests</title></head>"+
			"<body><p>Too many requests. Try again in %d seconds.</p></body></html>\n", retryAfter)
		c.Data(http.StatusTooManyRequests, "text/html; charset=utf-8", []byte(body))
		c.Abort()
	}
}
