package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/averon/venue-reservation/internal/config"
)

// RateLimit returns a fixed-window limiter keyed by client IP and route.
// The counter lives in Redis so the limit holds across instances.  With a
// nil Redis client or a disabled config the middleware is a pass-through;
// Redis errors also let the request through, availability beats
// precision here.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, limit int) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	if limit <= 0 {
		limit = cfg.Limit
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			window := time.Now().Unix() / int64(cfg.Window/time.Second)
			key := fmt.Sprintf("%s:%s:%s:%d", cfg.Prefix, c.RealIP(), c.Path(), window)

			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if n == 1 {
				rdb.Expire(ctx, key, cfg.Window)
			}
			if n > int64(limit) {
				retry := cfg.Window - time.Duration(time.Now().Unix()%int64(cfg.Window/time.Second))*time.Second
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}
