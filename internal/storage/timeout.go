package storage

import (
	"context"
	"encoding/json"
	"time"
)

// timeoutStore bounds every call on the wrapped store.
type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout wraps store so each operation gives up after d. A
// non-positive d returns store unchanged.
func WithTimeout(store Store, d time.Duration) Store {
	if d <= 0 {
		return store
	}
	return &timeoutStore{next: store, timeout: d}
}

func (s *timeoutStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Get(ctx, collection, id, dst)
}

func (s *timeoutStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Set(ctx, collection, id, doc)
}

func (s *timeoutStore) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Delete(ctx, collection, id)
}

func (s *timeoutStore) Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Query(ctx, collection, field, value)
}
