// internal/models/webhook.go
package models

import "time"

// Webhook event types accepted on the log forwarding endpoint.
const (
	EventSMSSent     = "sms:sent"
	EventSMSReceived = "sms:received"
)

// LogEventTypes lists the event types accepted by /send-webhook-logs.
var LogEventTypes = []string{EventSMSSent, EventSMSReceived}

// WebhookRecord is a user-registered delivery target.
type WebhookRecord struct {
	WebhookID  string    `json:"webhookId"`
	UserID     string    `json:"userId"`
	WebhookURL string    `json:"webhookUrl"`
	Events     []string  `json:"events"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Subscribes reports whether the webhook is subscribed to eventType.
func (w *WebhookRecord) Subscribes(eventType string) bool {
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// TimestampLayout is the ISO-8601 form used in payloads, millisecond precision, UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// WebhookPayload is the body POSTed to a webhook URL.
type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// SMSLog is a delivery log forwarded to webhooks.
type SMSLog struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}
