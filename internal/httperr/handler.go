package httperr

import (
	"errors"

	"rental-backend/internal/logging"
	"rental-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type ErrorResponse struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// InternalError istemciye gösterilecek mesajı ve loglanacak asıl hatayı birlikte taşır
type InternalError struct {
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalError) Unwrap() error { return e.Err }

// Internal 500 döner; err merkezi handler'da loglanır, cevapta yalnızca msg görünür
func Internal(msg string, err error) error {
	return &InternalError{Message: msg, Err: err}
}

// Handler merkezi Fiber ErrorHandler: fiber.Error ve doğrulama hatalarını JSON'a çevirir,
// geri kalan her şeyi loglayıp 500 döner.
func Handler(l *logging.Logger) fiber.ErrorHandler {
	httpLog := l.WithComponent(logging.ComponentHTTP)
	return func(c *fiber.Ctx, err error) error {
		var ie *InternalError
		if errors.As(err, &ie) {
			httpLog.Error(ie.Message, "method", c.Method(), "path", c.Path(), "error", ie.Err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: ie.Message})
		}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code >= fiber.StatusInternalServerError {
				httpLog.Error(fe.Message, "method", c.Method(), "path", c.Path())
			}
			return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
		}
		if ve, ok := validation.AsError(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: ve.Message, Details: ve.Fields})
		}

		httpLog.Error("Beklenmeyen hata", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "Beklenmeyen sunucu hatası",
		})
	}
}
