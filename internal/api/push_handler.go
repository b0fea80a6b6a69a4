package api

import (
	"push-relay/internal/devices"

	"github.com/gofiber/fiber/v2"
)

// Push payload actions understood by the device app.
const (
	actionSendSMS      = "send_sms"
	actionNotification = "notification"
)

type sendToUserRequest struct {
	UserID      string `json:"userId"`
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendToUsersRequest struct {
	UserIDs     []string `json:"userIds"`
	PhoneNumber string   `json:"phoneNumber"`
	Message     string   `json:"message"`
}

type sendToTopicRequest struct {
	Topic       string `json:"topic"`
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type subscribeRequest struct {
	UserIDs []string `json:"userIds"`
	Topic   string   `json:"topic"`
}

func (h *Handler) notificationData(phoneNumber, message string) map[string]string {
	return map[string]string{
		"action":      actionNotification,
		"phoneNumber": phoneNumber,
		"message":     message,
		"timestamp":   h.now(),
	}
}

// SendSMS handles POST /send-sms: asks the user's device to send an SMS.
func (h *Handler) SendSMS(c *fiber.Ctx) error {
	var req sendToUserRequest
	if err := bind(c, sendToUserSchema, &req); err != nil {
		return h.fail(c, "send-sms", err)
	}

	ctx := c.UserContext()
	device, err := h.devices.Lookup(ctx, req.UserID)
	if err != nil {
		return h.fail(c, "send-sms", err)
	}

	reqID := requestID(c)
	messageID, err := h.dispatcher.SendToToken(ctx, device.Token, map[string]string{
		"action":      actionSendSMS,
		"phoneNumber": req.PhoneNumber,
		"message":     req.Message,
		"requestId":   reqID,
		"timestamp":   h.now(),
	})
	if err != nil {
		return h.fail(c, "send-sms", err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "SMS request sent to device",
		"messageId": messageID,
		"userId":    req.UserID,
		"requestId": reqID,
	})
}

// SendNotification handles POST /send-notification.
func (h *Handler) SendNotification(c *fiber.Ctx) error {
	var req sendToUserRequest
	if err := bind(c, sendToUserSchema, &req); err != nil {
		return h.fail(c, "send-notification", err)
	}

	ctx := c.UserContext()
	device, err := h.devices.Lookup(ctx, req.UserID)
	if err != nil {
		return h.fail(c, "send-notification", err)
	}

	data := h.notificationData(req.PhoneNumber, req.Message)
	messageID, err := h.dispatcher.SendToToken(ctx, device.Token, data)
	if err != nil {
		return h.fail(c, "send-notification", err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"messageId": messageID,
		"data":      data,
	})
}

// SendNotificationMultiple handles POST /send-notification-multiple. Users
// without a device are skipped; it is a 404 only when none has one.
func (h *Handler) SendNotificationMultiple(c *fiber.Ctx) error {
	var req sendToUsersRequest
	if err := bind(c, sendToUsersSchema, &req); err != nil {
		return h.fail(c, "send-notification-multiple", err)
	}

	ctx := c.UserContext()
	records, err := h.devices.LookupMany(ctx, req.UserIDs)
	if err != nil {
		return h.fail(c, "send-notification-multiple", err)
	}

	resp, err := h.dispatcher.SendToTokens(ctx, devices.Tokens(records), h.notificationData(req.PhoneNumber, req.Message))
	if err != nil {
		return h.fail(c, "send-notification-multiple", err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"successCount": resp.SuccessCount,
		"failureCount": resp.FailureCount,
		"responses":    resp.Responses,
	})
}

// SendToTopic handles POST /send-to-topic.
func (h *Handler) SendToTopic(c *fiber.Ctx) error {
	var req sendToTopicRequest
	if err := bind(c, sendToTopicSchema, &req); err != nil {
		return h.fail(c, "send-to-topic", err)
	}

	messageID, err := h.dispatcher.SendToTopic(c.UserContext(), req.Topic, h.notificationData(req.PhoneNumber, req.Message))
	if err != nil {
		return h.fail(c, "send-to-topic", err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"messageId": messageID,
		"topic":     req.Topic,
	})
}

// SubscribeToTopic handles POST /subscribe-to-topic.
func (h *Handler) SubscribeToTopic(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := bind(c, subscribeSchema, &req); err != nil {
		return h.fail(c, "subscribe-to-topic", err)
	}

	ctx := c.UserContext()
	records, err := h.devices.LookupMany(ctx, req.UserIDs)
	if err != nil {
		return h.fail(c, "subscribe-to-topic", err)
	}

	resp, err := h.dispatcher.Subscribe(ctx, devices.Tokens(records), req.Topic)
	if err != nil {
		return h.fail(c, "subscribe-to-topic", err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"successCount": resp.SuccessCount,
		"failureCount": resp.FailureCount,
		"errors":       resp.Errors,
	})
}
