package webhooks

import (
	"context"
	"strings"
	"time"

	httpclient "push-relay/internal/common/http"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/metrics"
	"push-relay/internal/models"

	"github.com/benbjohnson/clock"
	"github.com/sourcegraph/conc"
)

// Headers sent with every delivery.
const (
	HeaderWebhookID = "X-Webhook-Id"
	HeaderEvent     = "X-Webhook-Event"
)

// Lister returns the webhooks a user has active.
type Lister interface {
	ListActiveForUser(ctx context.Context, userID string) ([]*models.WebhookRecord, error)
}

// Poster delivers one JSON payload.
type Poster interface {
	PostJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) (*httpclient.Response, error)
}

// Notifier launches one background delivery per matching webhook and does
// not wait for any of them. Deliveries are at-most-once: no retry, and
// failures only reach the log and metrics.
type Notifier struct {
	webhooks Lister
	client   Poster
	clock    clock.Clock
	logger   logger.Logger
	timeout  time.Duration

	deliveries conc.WaitGroup
}

func NewNotifier(webhooks Lister, client Poster, clk clock.Clock, log logger.Logger, timeout time.Duration) *Notifier {
	if clk == nil {
		clk = clock.New()
	}
	return &Notifier{
		webhooks: webhooks,
		client:   client,
		clock:    clk,
		logger:   log,
		timeout:  timeout,
	}
}

// Notify looks up the user's active webhooks subscribed to eventType and
// starts a delivery to each. It returns once the deliveries are launched,
// reporting how many were. A user with no matching webhook is not an error.
func (n *Notifier) Notify(ctx context.Context, userID, eventType string, data interface{}) (int, error) {
	userID = strings.TrimSpace(userID)
	hooks, err := n.webhooks.ListActiveForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	payload := models.WebhookPayload{
		Event:     eventType,
		Timestamp: models.FormatTimestamp(n.clock.Now()),
		Data:      data,
	}

	launched := 0
	for _, hook := range hooks {
		if !hook.Subscribes(eventType) {
			continue
		}
		n.deliveries.Go(func() {
			n.deliver(hook, payload)
		})
		launched++
	}

	n.logger.Debug("Webhook fan-out started", map[string]interface{}{
		"userId":     userID,
		"event":      eventType,
		"candidates": len(hooks),
		"launched":   launched,
	})
	return launched, nil
}

// deliver runs detached from the request that triggered it.
func (n *Notifier) deliver(hook *models.WebhookRecord, payload models.WebhookPayload) {
	metrics.WebhookDeliveriesInFlight.Inc()
	defer metrics.WebhookDeliveriesInFlight.Dec()

	ctx := context.Background()
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := n.clock.Now()
	resp, err := n.client.PostJSON(ctx, hook.WebhookURL, payload, map[string]string{
		HeaderWebhookID: hook.WebhookID,
		HeaderEvent:     payload.Event,
	})
	elapsed := n.clock.Since(start)
	metrics.WebhookDeliveryDuration.WithLabelValues(payload.Event).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"webhookId": hook.WebhookID,
		"userId":    hook.UserID,
		"url":       hook.WebhookURL,
		"event":     payload.Event,
		"duration":  elapsed.String(),
	}

	switch {
	case err != nil:
		metrics.WebhookDeliveries.WithLabelValues(payload.Event, metrics.StatusFailure).Inc()
		fields["error"] = err.Error()
		n.logger.Error("Webhook delivery failed", fields)
	case !resp.OK():
		metrics.WebhookDeliveries.WithLabelValues(payload.Event, metrics.StatusFailure).Inc()
		fields["statusCode"] = resp.StatusCode
		fields["response"] = resp.Body
		n.logger.Warn("Webhook endpoint rejected delivery", fields)
	default:
		metrics.WebhookDeliveries.WithLabelValues(payload.Event, metrics.StatusSuccess).Inc()
		fields["statusCode"] = resp.StatusCode
		n.logger.Info("Webhook delivered", fields)
	}
}

// Wait blocks until every launched delivery has finished. It is used on
// shutdown; request handlers never call it.
func (n *Notifier) Wait() {
	if recovered := n.deliveries.WaitAndRecover(); recovered != nil {
		n.logger.Error("Webhook delivery panicked", map[string]interface{}{
			"panic": recovered.String(),
		})
	}
}
