package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/logging"
)

// Logger writes one structured access-log entry per request with the request
// id, method, path, status, latency in milliseconds and the caller when known.
// Server errors are logged at error level.
func Logger(log logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := statusOf(c, err)
		fields := []any{
			"request_id", RequestIDFrom(c),
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency", float64(time.Since(start).Microseconds()) / 1000,
		}
		if ac, ok := AccessContextFrom(c); ok {
			fields = append(fields, "user_id", ac.UserID)
		}

		if status >= fiber.StatusInternalServerError {
			log.Errorw("http request", append(fields, "error", err)...)
		} else {
			log.Infow("http request", fields...)
		}
		return err
	}
}

// statusOf is the status the client will see. Errors returned down the chain are
// only turned into a response by the app error handler, after middleware ran.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	if fe, ok := err.(*fiber.Error); ok {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
