package api

import (
	"slices"
	"strings"

	apperrors "push-relay/internal/common/errors"
	"push-relay/internal/models"

	"github.com/gofiber/fiber/v2"
)

type registerWebhookRequest struct {
	UserID     string   `json:"userId"`
	WebhookURL string   `json:"webhookUrl"`
	Events     []string `json:"events"`
}

type unregisterWebhookRequest struct {
	WebhookID string `json:"webhookId"`
}

type webhookLogRequest struct {
	UserID string `json:"userId"`
	models.SMSLog
}

// RegisterWebhook handles POST /register-webhook.
func (h *Handler) RegisterWebhook(c *fiber.Ctx) error {
	var req registerWebhookRequest
	if err := bind(c, registerWebhookSchema, &req); err != nil {
		return h.fail(c, "register-webhook", err)
	}

	record, err := h.webhooks.Register(c.UserContext(), req.UserID, req.WebhookURL, req.Events)
	if err != nil {
		return h.fail(c, "register-webhook", err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Webhook registered successfully",
		"webhookId": record.WebhookID,
		"webhook":   record,
	})
}

// UnregisterWebhook handles POST /unregister-webhook.
func (h *Handler) UnregisterWebhook(c *fiber.Ctx) error {
	var req unregisterWebhookRequest
	if err := bind(c, unregisterWebhookSchema, &req); err != nil {
		return h.fail(c, "unregister-webhook", err)
	}

	if err := h.webhooks.Unregister(c.UserContext(), req.WebhookID); err != nil {
		return h.fail(c, "unregister-webhook", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Webhook unregistered successfully",
	})
}

// ListWebhooks handles GET /webhooks/:userId.
func (h *Handler) ListWebhooks(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	if userID == "" {
		return h.fail(c, "list-webhooks", apperrors.NewValidationError("userId is required"))
	}

	records, err := h.webhooks.ListForUser(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, "list-webhooks", err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"count":    len(records),
		"webhooks": records,
	})
}

// SendWebhookLogs handles POST /send-webhook-logs. It answers 202 once the
// deliveries are launched; their outcome is never reported back.
func (h *Handler) SendWebhookLogs(c *fiber.Ctx) error {
	var req webhookLogRequest
	if err := bind(c, webhookLogSchema, &req); err != nil {
		return h.fail(c, "send-webhook-logs", err)
	}
	if !slices.Contains(models.LogEventTypes, req.Type) {
		return h.fail(c, "send-webhook-logs", apperrors.NewValidationErrorf(
			"type must be one of %s", strings.Join(models.LogEventTypes, ", ")))
	}

	log := req.SMSLog
	if log.Timestamp == "" {
		log.Timestamp = h.now()
	}

	queued, err := h.notifier.Notify(c.UserContext(), req.UserID, log.Type, log)
	if err != nil {
		return h.fail(c, "send-webhook-logs", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"success": true,
		"message": "Webhook notifications queued",
		"queued":  queued,
		"data":    log,
	})
}
