package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error constructors for the API's failure classes. Conflicts (a request in
// the wrong state) are reported as 400.
func BadRequest(msg string) *fiber.Error   { return fiber.NewError(fiber.StatusBadRequest, msg) }
func Unauthorized(msg string) *fiber.Error { return fiber.NewError(fiber.StatusUnauthorized, msg) }
func Forbidden(msg string) *fiber.Error    { return fiber.NewError(fiber.StatusForbidden, msg) }
func NotFound(msg string) *fiber.Error     { return fiber.NewError(fiber.StatusNotFound, msg) }
func Conflict(msg string) *fiber.Error     { return fiber.NewError(fiber.StatusBadRequest, msg) }

// ErrorHandler renders every error as {success:false, message}. Errors that
// are not *fiber.Error are logged and reported without their text.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			log.Error("unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	}
}
