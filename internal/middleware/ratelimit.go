package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/you-joon/bingoruzzol/internal/repository"
)

// RateLimit 按客户端 IP 限制单位窗口内的请求次数，计数存 Redis。
// Redis 不可用时放行，限流是保护手段而不是可用性瓶颈。
func RateLimit(feed repository.FeedRepository, maxRequests int, window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()
		exceeded, err := feed.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).Warn("Rate limit check failed, allowing request")
			c.Next()
			return
		}
		if exceeded {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
