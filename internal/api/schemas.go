package api

import "push-relay/internal/common/validation"

var (
	registerDeviceSchema = validation.MustCompile("register-device", `{
		"type": "object",
		"required": ["deviceToken", "userId"],
		"properties": {
			"deviceToken": {"type": "string", "minLength": 1},
			"userId": {"type": "string", "minLength": 1},
			"platform": {"type": "string"}
		}
	}`)

	unregisterDeviceSchema = validation.MustCompile("unregister-device", `{
		"type": "object",
		"required": ["userId"],
		"properties": {
			"userId": {"type": "string", "minLength": 1}
		}
	}`)

	sendToUserSchema = validation.MustCompile("send-to-user", `{
		"type": "object",
		"required": ["userId", "phoneNumber", "message"],
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"phoneNumber": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1}
		}
	}`)

	sendToUsersSchema = validation.MustCompile("send-to-users", `{
		"type": "object",
		"required": ["userIds", "phoneNumber", "message"],
		"properties": {
			"userIds": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			},
			"phoneNumber": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1}
		}
	}`)

	sendToTopicSchema = validation.MustCompile("send-to-topic", `{
		"type": "object",
		"required": ["topic", "phoneNumber", "message"],
		"properties": {
			"topic": {"type": "string", "minLength": 1},
			"phoneNumber": {"type": "string", "minLength": 1},
			"message": {"type": "string", "minLength": 1}
		}
	}`)

	subscribeSchema = validation.MustCompile("subscribe-to-topic", `{
		"type": "object",
		"required": ["userIds", "topic"],
		"properties": {
			"userIds": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			},
			"topic": {"type": "string", "minLength": 1}
		}
	}`)

	registerWebhookSchema = validation.MustCompile("register-webhook", `{
		"type": "object",
		"required": ["userId", "webhookUrl", "events"],
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"webhookUrl": {"type": "string", "minLength": 1},
			"events": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			}
		}
	}`)

	unregisterWebhookSchema = validation.MustCompile("unregister-webhook", `{
		"type": "object",
		"required": ["webhookId"],
		"properties": {
			"webhookId": {"type": "string", "minLength": 1}
		}
	}`)

	webhookLogSchema = validation.MustCompile("send-webhook-logs", `{
		"type": "object",
		"required": ["userId", "id", "recipient", "message", "status", "type"],
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"id": {"type": "string", "minLength": 1},
			"recipient": {"type": "string", "minLength": 1},
			"message": {"type": "string"},
			"status": {"type": "string", "minLength": 1},
			"type": {"type": "string", "minLength": 1},
			"timestamp": {"type": "string"}
		}
	}`)
)
