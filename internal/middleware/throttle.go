package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"commentboard/internal/logging"
	"commentboard/internal/ratelimit"
)

// Throttle counts each request against limiter under the route and client
// IP. A limiter outage lets the request through.
func Throttle(limiter ratelimit.Limiter, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + c.ClientIP()
		err := limiter.Allow(c.Request.Context(), key)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, ratelimit.ErrLimited):
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, try later"})
		default:
			log.Warn(c.Request.Context(), "limiter unavailable", "err", err)
			c.Next()
		}
	}
}
