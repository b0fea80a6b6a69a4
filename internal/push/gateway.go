// Package push translates relay send requests into calls on an external push
// gateway. The gateway owns transport retry and delivery guarantees; nothing
// here retries.
package push

import (
	"context"

	"push-relay/internal/models"
)

// PriorityHigh is the fixed android delivery priority.
const PriorityHigh = "high"

// Message is one push message. Exactly one of Token or Topic is set.
type Message struct {
	Token    string
	Topic    string
	Data     map[string]string
	Priority string
}

// Gateway is the external push service.
type Gateway interface {
	// Send delivers msg to its token or topic and returns the gateway's message id.
	Send(ctx context.Context, msg *Message) (string, error)
	// SendMulticast delivers msg to every token. Per-token failures are
	// reported in the response, aligned with tokens.
	SendMulticast(ctx context.Context, tokens []string, msg *Message) (*models.BatchResponse, error)
	// SubscribeToTopic subscribes tokens to topic, reporting per-token failures.
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error)
}
