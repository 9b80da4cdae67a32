package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dejobratic/storefront/internal/apikey"
	"github.com/gin-gonic/gin"
)

type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByCredential buckets authenticated callers by API key and everyone else
// by client IP.
func ByCredential(c *gin.Context) string {
	if key, ok := apikey.FromHeader(c.GetHeader("Authorization")); ok {
		return "key:" + apikey.Lookup(key)[:16]
	}
	return ByClientIP(c)
}

// Middleware rejects requests over the limit with 429. Limiter errors let
// the request through.
func Middleware(limiter Allower, keyFn KeyFunc, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision, err := limiter.Allow(c.Request.Context(), keyFn(c))
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, please retry later",
				"code":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
