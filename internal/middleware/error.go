package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/models"
)

// statusCodes names the statuses the collector produces on its own
var statusCodes = map[int]string{
	fiber.StatusBadRequest:            "BAD_REQUEST",
	fiber.StatusUnauthorized:          "UNAUTHORIZED",
	fiber.StatusNotFound:              "NOT_FOUND",
	fiber.StatusMethodNotAllowed:      "METHOD_NOT_ALLOWED",
	fiber.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	fiber.StatusServiceUnavailable:    "UNAVAILABLE",
}

// ErrorHandler returns a custom error handler middleware
func ErrorHandler(logger *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal Server Error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		fields := []interface{}{
			"path", c.Path(),
			"method", c.Method(),
			"status", code,
			"error", err,
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("Request error", fields...)
		} else {
			logger.Warn("Request rejected", fields...)
		}

		name, ok := statusCodes[code]
		if !ok {
			name = "ERROR"
		}

		return c.Status(code).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    name,
				Message: message,
				Path:    c.Path(),
			},
		})
	}
}
