package api

import "github.com/gofiber/fiber/v2"

// Health handles GET /health. It never touches the registries.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"status":    "ok",
		"timestamp": h.now(),
	})
}
