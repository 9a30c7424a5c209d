package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderRequestID carries the per-request correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

const localsRequestID = "request_id"

// RequestID reuses a caller-supplied X-Request-ID or mints a UUID, echoes it
// on the response, and stores it for the audit log.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Set(HeaderRequestID, reqID)
		c.Locals(localsRequestID, reqID)
		return c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "" when the
// middleware is not installed.
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsRequestID).(string)
	return id
}
