// Package webhooks stores user webhook subscriptions and fans delivery logs
// out to them.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "push-relay/internal/common/errors"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/metrics"
	"push-relay/internal/common/validation"
	"push-relay/internal/models"
	"push-relay/internal/storage"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Collection is the document collection holding WebhookRecords keyed by webhookId.
const Collection = "webhooks"

// UserIDField is the document field webhooks are queried by.
const UserIDField = "userId"

const registryName = "webhooks"

type Registry struct {
	store  storage.Store
	clock  clock.Clock
	logger logger.Logger
}

func NewRegistry(store storage.Store, clk clock.Clock, log logger.Logger) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{store: store, clock: clk, logger: log}
}

// Register creates an active webhook. Duplicate event names are collapsed.
func (r *Registry) Register(ctx context.Context, userID, webhookURL string, events []string) (*models.WebhookRecord, error) {
	userID = strings.TrimSpace(userID)
	webhookURL = strings.TrimSpace(webhookURL)
	if userID == "" {
		return nil, apperrors.NewValidationError("userId is required")
	}
	if webhookURL == "" {
		return nil, apperrors.NewValidationError("webhookUrl is required")
	}
	if !validation.IsAbsoluteURL(webhookURL) {
		return nil, apperrors.NewValidationErrorf("invalid webhook URL: %s", webhookURL)
	}

	eventSet, err := normalizeEvents(events)
	if err != nil {
		return nil, err
	}

	now := r.clock.Now().UTC()
	record := &models.WebhookRecord{
		WebhookID:  newWebhookID(userID, now.UnixMilli()),
		UserID:     userID,
		WebhookURL: webhookURL,
		Events:     eventSet,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := r.store.Set(ctx, Collection, record.WebhookID, record); err != nil {
		r.observe("register", err)
		return nil, apperrors.NewInternalError("register webhook", err)
	}
	r.observe("register", nil)

	r.logger.Info("Webhook registered", map[string]interface{}{
		"webhookId": record.WebhookID,
		"userId":    userID,
		"events":    eventSet,
	})
	return record, nil
}

// Unregister hard-deletes the webhook.
func (r *Registry) Unregister(ctx context.Context, webhookID string) error {
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return apperrors.NewValidationError("webhookId is required")
	}

	err := r.store.Delete(ctx, Collection, webhookID)
	if errors.Is(err, storage.ErrNotFound) {
		r.observe("unregister", nil)
		return apperrors.NewNotFoundError("webhook", "no webhook with id "+webhookID)
	}
	if err != nil {
		r.observe("unregister", err)
		return apperrors.NewInternalError("unregister webhook", err)
	}
	r.observe("unregister", nil)

	r.logger.Info("Webhook unregistered", map[string]interface{}{"webhookId": webhookID})
	return nil
}

// ListForUser returns every webhook the user owns, active or not.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]*models.WebhookRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidationError("userId is required")
	}

	raws, err := r.store.Query(ctx, Collection, UserIDField, userID)
	if err != nil {
		r.observe("list", err)
		return nil, apperrors.NewInternalError("list webhooks", err)
	}
	records, err := storage.DecodeAll[models.WebhookRecord](raws)
	if err != nil {
		r.observe("list", err)
		return nil, apperrors.NewInternalError("list webhooks", err)
	}
	r.observe("list", nil)
	return records, nil
}

// ListActiveForUser returns the user's active webhooks. Order is not significant.
func (r *Registry) ListActiveForUser(ctx context.Context, userID string) ([]*models.WebhookRecord, error) {
	all, err := r.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]*models.WebhookRecord, 0, len(all))
	for _, rec := range all {
		if rec.Active {
			active = append(active, rec)
		}
	}
	return active, nil
}

func (r *Registry) observe(operation string, err error) {
	metrics.RegistryOperations.WithLabelValues(registryName, operation, metrics.Status(err)).Inc()
}

// newWebhookID is unique even for registrations by one user within the same
// millisecond.
func newWebhookID(userID string, unixMillis int64) string {
	return fmt.Sprintf("%s_%d_%s", userID, unixMillis, uuid.NewString())
}

func normalizeEvents(events []string) ([]string, error) {
	if len(events) == 0 {
		return nil, apperrors.NewValidationError("events must be a non-empty array")
	}

	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for i, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			return nil, apperrors.NewValidationErrorf("events[%d] must be a non-empty string", i)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}
