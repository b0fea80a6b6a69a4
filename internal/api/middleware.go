package api

import (
	"time"

	"push-relay/internal/common/logger"
	"push-relay/internal/common/observability"

	"github.com/gofiber/fiber/v2"
)

// requestLogger logs every request and records it in the HTTP metrics.
// Errors returned down the chain are rendered here so the logged status is
// the one sent to the client.
func requestLogger(log logger.Logger, obs *observability.Observability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if err := c.Next(); err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		elapsed := time.Since(start)
		status := c.Response().StatusCode()
		route := c.Route().Path

		obs.RecordRequest(c.UserContext(), c.Method(), route, status, elapsed)

		fields := map[string]interface{}{
			"method":    c.Method(),
			"path":      c.Path(),
			"route":     route,
			"status":    status,
			"duration":  elapsed.String(),
			"requestId": requestID(c),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("HTTP request", fields)
		case status >= fiber.StatusBadRequest:
			log.Warn("HTTP request", fields)
		default:
			log.Info("HTTP request", fields)
		}
		return nil
	}
}

// errorHandler renders errors that escape the handlers: unknown routes,
// oversized bodies and recovered panics.
func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "internal server error"
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
			message = fe.Message
		} else {
			log.Error("Unhandled request error", map[string]interface{}{
				"path":  c.Path(),
				"error": err.Error(),
			})
		}

		code := "INTERNAL_ERROR"
		switch {
		case status == fiber.StatusNotFound:
			code = "NOT_FOUND"
		case status < fiber.StatusInternalServerError:
			code = "VALIDATION_ERROR"
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
			"code":    code,
		})
	}
}
