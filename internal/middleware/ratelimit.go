package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailLocal falls back to an in-process token bucket per key.
	FailLocal FailPolicy = iota
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// CheckRateLimit checks if a resource has exceeded its rate limit.
// Returns true if allowed, false if limit exceeded.
// Limits are not enforced when APP_ENV is "test", "development" or "stress".
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	return checkRedis(ctx, rdb, resource, id, limit, window)
}

func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func checkRedis(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

const (
	fallbackKeys = 10000
	// fallbackIdle must exceed the longest window; an idle bucket is full again by then.
	fallbackIdle = 15 * time.Minute
)

// localLimiters holds token buckets used while Redis is unreachable. Keys idle
// for longer than the TTL, or least recently used beyond the size, are dropped.
type localLimiters struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

func newLocalLimiters(size int, idle time.Duration) *localLimiters {
	return &localLimiters{limiters: expirable.NewLRU[string, *rate.Limiter](size, nil, idle)}
}

var fallback = newLocalLimiters(fallbackKeys, fallbackIdle)

func (l *localLimiters) allow(key string, limit int, window time.Duration) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(max(limit, 1))), max(limit, 1))
	}
	// Add refreshes the expiry so only idle keys age out.
	l.limiters.Add(key, lim)
	l.mu.Unlock()
	return lim.Allow()
}

func (l *localLimiters) size() int {
	return l.limiters.Len()
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID (if set in c.Locals("userID")) otherwise by remote IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailLocal, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests per `window` with a specific failure policy.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rateLimitBypassed() {
			return c.Next()
		}

		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		allowed, err := checkRedis(c.UserContext(), rdb, resource, id, limit, window)
		if err != nil {
			switch policy {
			case FailClosed:
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, rejecting",
					slog.String("resource", resource), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			case FailOpen:
				return c.Next()
			default:
				allowed = fallback.allow(resource+"|"+id, limit, window)
			}
		}

		if !allowed {
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
