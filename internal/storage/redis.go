package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a JSON string under
// <prefix>:<collection>:doc:<id>. Fields listed in Indexes get a set per
// value under <prefix>:<collection>:idx:<field>:<value> holding document ids.
type RedisStore struct {
	client  redis.Cmdable
	prefix  string
	indexes Indexes
}

func NewRedisStore(client redis.Cmdable, prefix string, indexes Indexes) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, indexes: indexes}
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, collection, id)
}

func (s *RedisStore) indexKey(collection, field, value string) string {
	return fmt.Sprintf("%s:%s:idx:%s:%s", s.prefix, collection, field, value)
}

func (s *RedisStore) Get(ctx context.Context, collection, id string, dst interface{}) error {
	raw, err := s.client.Get(ctx, s.docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	return decode(raw, dst)
}

func (s *RedisStore) Set(ctx context.Context, collection, id string, doc interface{}) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}

	fields := s.indexes.Fields(collection)
	var previous []byte
	if len(fields) > 0 {
		previous, err = s.client.Get(ctx, s.docKey(collection, id)).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis get: %w", err)
		}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, id), raw, 0)
		for _, field := range fields {
			if old, ok := fieldValue(previous, field); ok {
				if cur, _ := fieldValue(raw, field); cur != old {
					pipe.SRem(ctx, s.indexKey(collection, field, old), id)
				}
			}
			if cur, ok := fieldValue(raw, field); ok {
				pipe.SAdd(ctx, s.indexKey(collection, field, cur), id)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	key := s.docKey(collection, id)
	previous, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		for _, field := range s.indexes.Fields(collection) {
			if old, ok := fieldValue(previous, field); ok {
				pipe.SRem(ctx, s.indexKey(collection, field, old), id)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Query reads the index set when field is indexed and falls back to a SCAN
// over the collection otherwise. Results are ordered by id.
func (s *RedisStore) Query(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	var (
		ids []string
		err error
	)
	if s.indexes.Has(collection, field) {
		ids, err = s.client.SMembers(ctx, s.indexKey(collection, field, value)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis smembers: %w", err)
		}
	} else {
		ids, err = s.scanIDs(ctx, collection)
		if err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return []json.RawMessage{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.docKey(collection, id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		raw := []byte(str)
		if fieldMatches(raw, field, value) {
			out = append(out, json.RawMessage(raw))
		}
	}
	return out, nil
}

func (s *RedisStore) scanIDs(ctx context.Context, collection string) ([]string, error) {
	prefix := s.docKey(collection, "")
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}
