package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nestegg-app/nestegg/internal/auth"
)

// Audit emits one structured log line per request. Errors are rendered by the
// app's error handler first so the logged status is the one the client sees.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		requestID, _ := c.Locals(requestIDHeader).(string)

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if id := auth.AccountID(c); id != "" {
			attrs = append(attrs, slog.String("account_id", id))
		}
		if id := auth.DeviceID(c); id != "" {
			attrs = append(attrs, slog.String("device_id", id))
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request completed", append(attrs, slog.Any("error", chainErr))...)
		case chainErr != nil:
			logger.Warn("request completed", append(attrs, slog.Any("error", chainErr))...)
		default:
			logger.Info("request completed", attrs...)
		}
		return nil
	}
}
