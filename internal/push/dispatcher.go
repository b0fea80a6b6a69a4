package push

import (
	"context"
	"strings"
	"time"

	apperrors "push-relay/internal/common/errors"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/metrics"
	"push-relay/internal/models"
)

// Dispatcher makes exactly one gateway call per operation.
type Dispatcher struct {
	gateway Gateway
	logger  logger.Logger
	timeout time.Duration
}

func NewDispatcher(gateway Gateway, log logger.Logger, timeout time.Duration) *Dispatcher {
	return &Dispatcher{gateway: gateway, logger: log, timeout: timeout}
}

// SendToToken pushes data to a single device token.
func (d *Dispatcher) SendToToken(ctx context.Context, token string, data map[string]string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", apperrors.NewValidationError("device token is required")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	messageID, err := d.gateway.Send(ctx, &Message{Token: token, Data: data, Priority: PriorityHigh})
	d.observe("send", start, err)
	if err != nil {
		d.logger.Error("Push send failed", map[string]interface{}{"error": err.Error()})
		return "", apperrors.NewGatewayError("send", err)
	}

	d.logger.Info("Push sent", map[string]interface{}{"messageId": messageID})
	return messageID, nil
}

// SendToTokens multicasts data. Partial failure is reported per token, not
// as an error.
func (d *Dispatcher) SendToTokens(ctx context.Context, tokens []string, data map[string]string) (*models.BatchResponse, error) {
	if len(tokens) == 0 {
		return nil, apperrors.NewValidationError("at least one device token is required")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := d.gateway.SendMulticast(ctx, tokens, &Message{Data: data, Priority: PriorityHigh})
	d.observe("multicast", start, err)
	if err != nil {
		d.logger.Error("Push multicast failed", map[string]interface{}{
			"tokens": len(tokens),
			"error":  err.Error(),
		})
		return nil, apperrors.NewGatewayError("multicast", err)
	}

	resp.SuccessCount, resp.FailureCount = 0, 0
	for _, r := range resp.Responses {
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
	}
	metrics.PushTokenOutcomes.WithLabelValues("multicast", metrics.StatusSuccess).Add(float64(resp.SuccessCount))
	metrics.PushTokenOutcomes.WithLabelValues("multicast", metrics.StatusFailure).Add(float64(resp.FailureCount))

	d.logger.Info("Push multicast sent", map[string]interface{}{
		"tokens":       len(tokens),
		"successCount": resp.SuccessCount,
		"failureCount": resp.FailureCount,
	})
	return resp, nil
}

// SendToTopic broadcasts data to every subscriber of topic.
func (d *Dispatcher) SendToTopic(ctx context.Context, topic string, data map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", apperrors.NewValidationError("topic is required")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	messageID, err := d.gateway.Send(ctx, &Message{Topic: topic, Data: data, Priority: PriorityHigh})
	d.observe("topic", start, err)
	if err != nil {
		d.logger.Error("Push topic send failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		return "", apperrors.NewGatewayError("topic", err)
	}

	d.logger.Info("Push sent to topic", map[string]interface{}{
		"topic":     topic,
		"messageId": messageID,
	})
	return messageID, nil
}

// Subscribe adds tokens to topic on a best-effort basis.
func (d *Dispatcher) Subscribe(ctx context.Context, tokens []string, topic string) (*models.TopicManagementResponse, error) {
	if len(tokens) == 0 {
		return nil, apperrors.NewValidationError("at least one device token is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, apperrors.NewValidationError("topic is required")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	resp, err := d.gateway.SubscribeToTopic(ctx, tokens, topic)
	d.observe("subscribe", start, err)
	if err != nil {
		d.logger.Error("Topic subscription failed", map[string]interface{}{
			"topic": topic,
			"error": err.Error(),
		})
		return nil, apperrors.NewGatewayError("subscribe", err)
	}
	if resp.Errors == nil {
		resp.Errors = []models.TopicError{}
	}
	metrics.PushTokenOutcomes.WithLabelValues("subscribe", metrics.StatusSuccess).Add(float64(resp.SuccessCount))
	metrics.PushTokenOutcomes.WithLabelValues("subscribe", metrics.StatusFailure).Add(float64(resp.FailureCount))

	d.logger.Info("Tokens subscribed to topic", map[string]interface{}{
		"topic":        topic,
		"successCount": resp.SuccessCount,
		"failureCount": resp.FailureCount,
	})
	return resp, nil
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *Dispatcher) observe(operation string, start time.Time, err error) {
	metrics.PushRequests.WithLabelValues(operation, metrics.Status(err)).Inc()
	metrics.PushDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
