package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitAllower is satisfied by store.RedisCache's RateLimitAllow method,
// kept narrow and structural so this package needn't import internal/store.
type RateLimitAllower interface {
	RateLimitAllow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware enforces a per-key request budget, preferring the
// authenticated user id over the caller's IP as the limiting key (teacher's
// gateway getRateLimitKey priority: API key > user > IP).
func RateLimitMiddleware(limiter RateLimitAllower, limit int, window time.Duration, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)

		allowed, err := limiter.RateLimitAllow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("gateway: rate limit check failed, allowing request", "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", "60")
			respondError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

func rateLimitKey(c *gin.Context) string {
	if userID, ok := UserID(c); ok && userID != "" {
		return "user:" + userID
	}
	ip := c.GetHeader("X-Forwarded-For")
	if ip == "" {
		ip = c.ClientIP()
	}
	return "ip:" + ip
}
