package security

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
	limit int
}

// NewRateLimiter caps calls per identity per minute. A nil redis client
// disables limiting.
func NewRateLimiter(redisClient *redis.Client, limit int) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit}
}

// VerifyRateLimit throttles verification attempts per owner (gate scanners
// retry aggressively on flaky networks; the cap only has to stop abuse).
// Redis errors fail open: limiting is best effort, like the cache.
func (r *RateLimiter) VerifyRateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r.redis == nil || r.limit <= 0 {
				return next(c)
			}

			id := OwnerFrom(c)
			if id == "" {
				id = c.RealIP()
			}
			key := fmt.Sprintf("ratelimit:verify:%s", id)

			ctx := c.Request().Context()
			count, err := r.redis.Incr(ctx, key).Result()
			if err == nil {
				if count == 1 {
					r.redis.Expire(ctx, key, time.Minute)
				}
				if count > int64(r.limit) {
					return c.JSON(http.StatusTooManyRequests, map[string]any{
						"ok":    false,
						"error": "Trop de requêtes",
					})
				}
			}

			return next(c)
		}
	}
}
