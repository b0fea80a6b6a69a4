package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordRequest(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	obs := newWithProvider(provider, "push-relay-test")

	ctx := context.Background()
	obs.RecordRequest(ctx, "POST", "/send-sms", 200, 12*time.Millisecond)
	obs.RecordRequest(ctx, "POST", "/send-sms", 200, 8*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	var found bool
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "http.server.requests" {
			continue
		}
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		found = true
	}
	assert.True(t, found, "request counter not exported")
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	obs.RecordRequest(context.Background(), "GET", "/health", 200, time.Millisecond)
	obs.Shutdown()

	(&Observability{}).RecordRequest(context.Background(), "GET", "/health", 200, time.Millisecond)
}
