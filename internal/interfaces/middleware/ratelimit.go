package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/domain/ports"
	apperrors "github.com/gpus/backend/pkg/errors"
)

// Webhook traffic limits per client IP
const (
	WebhookRateLimit  = 100
	WebhookRateWindow = time.Minute
)

// RateLimit allows limit requests per window for each client IP. Limiter
// failures let the request through.
func RateLimit(limiter ports.RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := "ratelimit:" + scope + ":" + c.ClientIP()
		ok, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			log.Printf("⚠️ Rate limiter unavailable: %v", err)
			c.Next()
			return
		}
		if !ok {
			Abort(c, apperrors.NewRateLimitError("Muitas requisições. Tente novamente mais tarde."))
			return
		}
		c.Next()
	}
}
