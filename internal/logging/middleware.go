package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogger her isteği method, path, status ve süre ile loglar.
// userIDKey JWT middleware'inin Locals'a yazdığı anahtar.
func RequestLogger(l *Logger, userIDKey string) fiber.Handler {
	httpLog := l.WithComponent(ComponentHTTP)
	return func(c *fiber.Ctx) error {
		start := time.Now()
		// Hata burada ErrorHandler'a verilir ki loglanan status gerçek cevapla aynı olsun
		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		args := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid, ok := c.Locals(userIDKey).(uint); ok {
			args = append(args, "user_id", uid)
		}

		switch {
		case status >= 500:
			httpLog.Error("request", args...)
		case status >= 400:
			httpLog.Warn("request", args...)
		default:
			httpLog.Info("request", args...)
		}
		return nil
	}
}
