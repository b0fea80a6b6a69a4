package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"push-relay/internal/common/config"
	"push-relay/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	log := logger.NewTestLogger(t)
	ctx := context.Background()

	t.Run("memory by default", func(t *testing.T) {
		store, closeFn, err := Open(ctx, config.StorageConfig{}, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &MemoryStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, closeFn, err := Open(ctx, config.StorageConfig{
			Driver: config.DriverRedis,
			Prefix: "test",
			Redis:  config.RedisConfig{Address: mr.Addr()},
		}, nil, log)
		require.NoError(t, err)
		assert.IsType(t, &RedisStore{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := Open(ctx, config.StorageConfig{Driver: "cassandra"}, nil, log)
		assert.ErrorContains(t, err, "unsupported storage driver")
	})
}

func TestOpen_ElasticsearchIndexFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		if r.URL.Path == "/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, closeFn, err := Open(context.Background(), config.StorageConfig{
		Driver:        config.DriverElasticsearch,
		Prefix:        "relay",
		Elasticsearch: config.ElasticsearchConfig{URL: srv.URL},
	}, Indexes{"webhooks": {"userId"}}, logger.NewTestLogger(t))

	require.Error(t, err)
	assert.Nil(t, store)
	assert.Nil(t, closeFn)
}
