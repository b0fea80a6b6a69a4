package api

import "github.com/gofiber/fiber/v2"

type registerDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
	UserID      string `json:"userId"`
	Platform    string `json:"platform"`
}

type unregisterDeviceRequest struct {
	UserID string `json:"userId"`
}

// RegisterDevice handles POST /register-device.
func (h *Handler) RegisterDevice(c *fiber.Ctx) error {
	var req registerDeviceRequest
	if err := bind(c, registerDeviceSchema, &req); err != nil {
		return h.fail(c, "register-device", err)
	}

	record, err := h.devices.Register(c.UserContext(), req.UserID, req.DeviceToken, req.Platform)
	if err != nil {
		return h.fail(c, "register-device", err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Device registered successfully",
		"userId":   record.UserID,
		"platform": record.Platform,
	})
}

// UnregisterDevice handles POST /unregister-device.
func (h *Handler) UnregisterDevice(c *fiber.Ctx) error {
	var req unregisterDeviceRequest
	if err := bind(c, unregisterDeviceSchema, &req); err != nil {
		return h.fail(c, "unregister-device", err)
	}

	if err := h.devices.Remove(c.UserContext(), req.UserID); err != nil {
		return h.fail(c, "unregister-device", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Device unregistered successfully",
	})
}
