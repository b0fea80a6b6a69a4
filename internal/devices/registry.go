// Package devices maps a user to the push token of their device.
package devices

import (
	"context"
	"errors"
	"strings"

	apperrors "push-relay/internal/common/errors"
	"push-relay/internal/common/logger"
	"push-relay/internal/common/metrics"
	"push-relay/internal/models"
	"push-relay/internal/storage"

	"github.com/benbjohnson/clock"
)

// Collection is the document collection holding DeviceRecords keyed by userId.
const Collection = "devices"

const registryName = "devices"

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

// Register stores token as the user's device, replacing any previous one.
// The first registration time is kept across replacements.
func (r *Registry) Register(ctx context.Context, userID, token, platform string) (*models.DeviceRecord, error) {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" || token == "" {
		return nil, apperrors.NewValidationError("userId and deviceToken are required")
	}

	now := r.clock.Now().UTC()
	record := &models.DeviceRecord{
		UserID:       userID,
		Token:        token,
		Platform:     models.ParsePlatform(platform),
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	var previous models.DeviceRecord
	err := r.store.Get(ctx, Collection, userID, &previous)
	switch {
	case err == nil:
		record.RegisteredAt = previous.RegisteredAt
	case !errors.Is(err, storage.ErrNotFound):
		r.observe("register", err)
		return nil, apperrors.NewInternalError("register device", err)
	}
	replaced := err == nil

	if err := r.store.Set(ctx, Collection, userID, record); err != nil {
		r.observe("register", err)
		return nil, apperrors.NewInternalError("register device", err)
	}
	r.observe("register", nil)

	r.logger.Info("Device registered", map[string]interface{}{
		"userId":   userID,
		"platform": record.Platform,
		"replaced": replaced,
	})
	return record, nil
}

// Lookup returns the device registered for userID.
func (r *Registry) Lookup(ctx context.Context, userID string) (*models.DeviceRecord, error) {
	userID = strings.TrimSpace(userID)
	var record models.DeviceRecord
	err := r.store.Get(ctx, Collection, userID, &record)
	if errors.Is(err, storage.ErrNotFound) {
		r.observe("lookup", nil)
		return nil, apperrors.NewNotFoundError("device", "no device registered for user "+userID)
	}
	if err != nil {
		r.observe("lookup", err)
		return nil, apperrors.NewInternalError("lookup device", err)
	}
	r.observe("lookup", nil)
	return &record, nil
}

// LookupMany resolves userIDs in input order, skipping users without a
// device. It fails with NotFound when none resolve.
func (r *Registry) LookupMany(ctx context.Context, userIDs []string) ([]*models.DeviceRecord, error) {
	records := make([]*models.DeviceRecord, 0, len(userIDs))
	for _, userID := range userIDs {
		record, err := r.Lookup(ctx, userID)
		if apperrors.IsNotFound(err) {
			r.logger.Warn("No device registered for user, skipping", map[string]interface{}{
				"userId": userID,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, apperrors.NewNotFoundError("device", "no valid device tokens found")
	}
	return records, nil
}

// Remove deletes the user's device. Removing an absent device succeeds.
func (r *Registry) Remove(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.NewValidationError("userId is required")
	}

	err := r.store.Delete(ctx, Collection, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		r.observe("remove", err)
		return apperrors.NewInternalError("remove device", err)
	}
	r.observe("remove", nil)

	r.logger.Info("Device unregistered", map[string]interface{}{
		"userId":  userID,
		"existed": err == nil,
	})
	return nil
}

// Tokens returns the token of every record, in order.
func Tokens(records []*models.DeviceRecord) []string {
	tokens := make([]string, len(records))
	for i, rec := range records {
		tokens[i] = rec.Token
	}
	return tokens
}

func (r *Registry) observe(operation string, err error) {
	metrics.RegistryOperations.WithLabelValues(registryName, operation, metrics.Status(err)).Inc()
}
