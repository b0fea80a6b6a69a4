// Package storage is the document store behind the device and webhook
// registries. Documents are JSON objects addressed by collection and id.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get and Delete for a missing document.
var ErrNotFound = errors.New("document not found")

// Store is implemented by every backend.
type Store interface {
	// Get decodes the document into dst.
	Get(ctx context.Context, collection, id string, dst interface{}) error
	// Set creates or replaces the document.
	Set(ctx context.Context, collection, id string, doc interface{}) error
	// Delete removes the document.
	Delete(ctx context.Context, collection, id string) error
	// Query returns the documents whose top-level string field equals value.
	Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error)
}

// Indexes lists, per collection, the fields Query is expected to be called
// with. Backends that maintain secondary indexes use it.
type Indexes map[string][]string

// Fields returns the indexed fields of collection.
func (ix Indexes) Fields(collection string) []string {
	if ix == nil {
		return nil
	}
	return ix[collection]
}

// Has reports whether field is indexed for collection.
func (ix Indexes) Has(collection, field string) bool {
	for _, f := range ix.Fields(collection) {
		if f == field {
			return true
		}
	}
	return false
}

// DecodeAll unmarshals every raw document into a T.
func DecodeAll[T any](raws []json.RawMessage) ([]*T, error) {
	out := make([]*T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func encode(doc interface{}) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

func decode(raw []byte, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// fieldValue extracts a top-level string field from a JSON object.
func fieldValue(raw []byte, field string) (string, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	v, ok := obj[field].(string)
	return v, ok
}

func fieldMatches(raw []byte, field, value string) bool {
	v, ok := fieldValue(raw, field)
	return ok && v == value
}
