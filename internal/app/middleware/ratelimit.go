package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/FACorreiaa/medical-record/internal/app/observability/metrics"
	"github.com/FACorreiaa/medical-record/internal/pkg/ratelimit"
)

const rateLimitedMessage = "Too many login attempts, please try again later"

// RateLimit counts every request per client IP, successful or not. When the
// store is unreachable the request goes through.
func RateLimit(limiter *ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		decision, err := limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.Warn("Rate limit store unavailable, allowing request",
				zap.String("path", c.FullPath()),
				zap.Error(err))
			c.Next()
			return
		}

		now := time.Now()
		resetSeconds := int(decision.RetryAfter(now) / time.Second)
		h := c.Writer.Header()
		h.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

		if !decision.Allowed {
			metrics.Get().AuthRateLimitedTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("route", c.FullPath())))
			logger.Info("Rate limit exceeded", zap.String("client_ip", c.ClientIP()))
			h.Set("Retry-After", strconv.Itoa(resetSeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitedMessage})
			return
		}

		c.Next()
	}
}
