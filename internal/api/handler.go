// Package api is the relay's HTTP surface.
package api

import (
	"context"
	"encoding/json"

	apperrors "push-relay/internal/common/errors"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/validation"
	"push-relay/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DeviceRegistry interface {
	Register(ctx context.Context, userID, token, platform string) (*models.DeviceRecord, error)
	Lookup(ctx context.Context, userID string) (*models.DeviceRecord, error)
	LookupMany(ctx context.Context, userIDs []string) ([]*models.DeviceRecord, error)
	Remove(ctx context.Context, userID string) error
}

type WebhookRegistry interface {
	Register(ctx context.Context, userID, webhookURL string, events []string) (*models.WebhookRecord, error)
	Unregister(ctx context.Context, webhookID string) error
	ListForUser(ctx context.Context, userID string) ([]*models.WebhookRecord, error)
}

type PushDispatcher interface {
	SendToToken(ctx context.Context, token string, data map[string]string) (string, error)
	SendToTokens(ctx context.Context, tokens []string, data map[string]string) (*models.BatchResponse, error)
	SendToTopic(ctx context.Context, topic string, data map[string]string) (string, error)
	Subscribe(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error)
}

type WebhookNotifier interface {
	Notify(ctx context.Context, userID, eventType string, data interface{}) (int, error)
}

// Handler serves every relay endpoint.
type Handler struct {
	devices    DeviceRegistry
	webhooks   WebhookRegistry
	dispatcher PushDispatcher
	notifier   WebhookNotifier
	clock      clock.Clock
	logger     logger.Logger
	errors     *apperrors.ErrorHandler
}

func NewHandler(devices DeviceRegistry, webhooks WebhookRegistry, dispatcher PushDispatcher, notifier WebhookNotifier, clk clock.Clock, log logger.Logger) *Handler {
	if clk == nil {
		clk = clock.New()
	}
	return &Handler{
		devices:    devices,
		webhooks:   webhooks,
		dispatcher: dispatcher,
		notifier:   notifier,
		clock:      clk,
		logger:     log,
		errors:     apperrors.NewErrorHandler(log),
	}
}

// bind validates the body against schema and decodes it into dst.
func bind(c *fiber.Ctx, schema *validation.Schema, dst interface{}) error {
	body := c.Body()
	if result := schema.Validate(body); !result.Valid {
		return apperrors.NewValidationError(result.Error())
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewValidationErrorf("invalid request body: %v", err)
	}
	return nil
}

// fail writes err as {success:false, error, code}.
func (h *Handler) fail(c *fiber.Ctx, operation string, err error) error {
	status, stdErr := h.errors.Resolve(operation, err)
	body := fiber.Map{
		"success": false,
		"error":   stdErr.Message,
		"code":    stdErr.Code,
	}
	if stdErr.Details != "" && status < fiber.StatusInternalServerError {
		body["details"] = stdErr.Details
	}
	return c.Status(status).JSON(body)
}

func (h *Handler) now() string {
	return models.FormatTimestamp(h.clock.Now())
}

// requestID returns the id assigned by the requestid middleware.
func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
