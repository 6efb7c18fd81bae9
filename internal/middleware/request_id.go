package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CtxRequestID keys the per-request correlation id in fiber locals.
const CtxRequestID = "request_id"

// RequestIDMiddleware tags every request with a correlation id, honoring a
// caller-supplied X-Request-ID so ids survive proxy hops.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Locals(CtxRequestID, id)
		c.Set("X-Request-ID", id)
		return c.Next()
	}
}
