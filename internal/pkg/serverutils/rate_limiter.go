package serverutils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiterMiddleware throttles by client IP. A nil storage falls back to
// the limiter's in-memory store.
func RateLimiterMiddleware(requestsPerMinute int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        requestsPerMinute,
		Expiration: time.Minute,
		Storage:    storage,
		LimitReached: func(ctx *fiber.Ctx) error {
			return ctx.Status(fiber.StatusTooManyRequests).
				JSON(ErrorResponse(fiber.StatusTooManyRequests, "Rate limit exceeded. Try again later."))
		},
	})
}
