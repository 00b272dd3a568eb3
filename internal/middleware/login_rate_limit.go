package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// SignInRateLimit limits sign-in attempts per message address or IP using Redis if available.
func SignInRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		key := "rl:signin:" + signInSubject(c)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many sign-in attempts, try again later")
		}
		return c.Next()
	}
}

// signInSubject is the address line of the signed message, or the client IP.
func signInSubject(c *fiber.Ctx) string {
	var req struct {
		Message string `json:"message"`
	}
	_ = c.BodyParser(&req)
	lines := strings.SplitN(req.Message, "\n", 3)
	if len(lines) >= 2 {
		if addr := strings.ToLower(strings.TrimSpace(lines[1])); strings.HasPrefix(addr, "0x") && len(addr) == 42 {
			return addr
		}
	}
	return c.IP()
}
