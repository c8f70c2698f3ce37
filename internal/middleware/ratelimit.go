package middleware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds per-client request limits. Zero disables a window.
type RateLimitConfig struct {
	PerSecond int
	PerMinute int
}

// LoadRateLimitConfigFromEnv loads rate limits from environment variables
func LoadRateLimitConfigFromEnv() RateLimitConfig {
	perSecond, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_SECOND", "10"))
	if err != nil || perSecond < 0 {
		perSecond = 10
	}
	perMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil || perMinute < 0 {
		perMinute = 120
	}

	return RateLimitConfig{
		PerSecond: perSecond,
		PerMinute: perMinute,
	}
}

// window is a fixed counting window
type window struct {
	name   string
	limit  int
	length time.Duration
}

// RateLimit limits requests per client IP with fixed Redis counters.
// A nil client or a Redis error lets the request through.
func RateLimit(rdb *redis.Client, config RateLimitConfig) fiber.Handler {
	windows := []window{
		{name: "second", limit: config.PerSecond, length: time.Second},
		{name: "minute", limit: config.PerMinute, length: time.Minute},
	}

	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}

		ctx := context.Background()
		now := time.Now()
		client := c.IP()

		for _, w := range windows {
			if w.limit <= 0 {
				continue
			}

			start := now.Truncate(w.length)
			key := RateLimitKey(client, w.name, start)

			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				// Redis unavailable, degrade to no limiting
				return c.Next()
			}
			if count == 1 {
				rdb.Expire(ctx, key, 2*w.length)
			}

			reset := start.Add(w.length)
			c.Set("X-RateLimit-Limit-"+w.name, strconv.Itoa(w.limit))
			c.Set("X-RateLimit-Remaining-"+w.name, strconv.FormatInt(maxInt64(0, int64(w.limit)-count), 10))

			if count > int64(w.limit) {
				retryAfter := int64(reset.Sub(now).Seconds()) + 1
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "rate_limit_exceeded",
					"message":     fmt.Sprintf("Too many requests per %s", w.name),
					"limit_type":  "per_" + w.name,
					"limit":       w.limit,
					"retry_after": retryAfter,
				})
			}
		}

		return c.Next()
	}
}

// RateLimitKey is the Redis counter key of a client in one window
func RateLimitKey(client, windowName string, start time.Time) string {
	return fmt.Sprintf("rl:ip:%s:%s:%d", client, windowName, start.Unix())
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
