package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/uwazi254/uwazi-api/internal/models"
	appErrors "github.com/uwazi254/uwazi-api/pkg/errors"
	"github.com/uwazi254/uwazi-api/pkg/response"
)

// IssueRateLimit caps issue submissions per authenticated user within a
// rolling window using a Redis counter. Fails open when Redis is down so a
// cache outage never blocks reporting.
func IssueRateLimit(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			c.Next()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		key := fmt.Sprintf("ratelimit:issues:%s", claims.UserID)
		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.Warn("rate limit counter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(c.Request.Context(), key, window).Err(); err != nil {
				logger.Warn("rate limit expiry not set", zap.Error(err))
			}
		}

		if int(count) > limit {
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited,
				fmt.Sprintf("issue submission limit of %d per %s reached", limit, window)))
			c.Abort()
			return
		}
		c.Next()
	}
}
