package middleware

import (
	"context"
	"net/http"
	"strconv"

	"designlens/internal/redis"
	"designlens/internal/transport/httpdto"
	"designlens/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SendLimiter interface {
	AllowSend(ctx context.Context, accountID string) (*redis.RateLimitResult, error)
}

// SendRateLimitMiddleware throttles analysis sends per account. It must run after
// AccountMiddleware. A limiter outage lets the request through.
func SendRateLimitMiddleware(limiter SendLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, ok := AccountID(c)
		if !ok || limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowSend(c.Request.Context(), accountID)
		if err != nil {
			if l != nil {
				l.WithContext(c.Request.Context()).Warn("rate limit check skipped", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("analysis rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
