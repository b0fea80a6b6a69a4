// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PushRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_requests_total",
			Help: "Total number of push gateway calls by operation and outcome",
		},
		[]string{"operation", "status"},
	)

	PushTokenOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_token_outcomes_total",
			Help: "Per-token outcomes of multicast sends and topic subscriptions",
		},
		[]string{"operation", "status"},
	)

	PushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "push_request_duration_seconds",
			Help: "Duration of push gateway calls in seconds",
		},
		[]string{"operation"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome",
		},
		[]string{"event", "status"},
	)

	WebhookDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "webhook_delivery_duration_seconds",
			Help: "Duration of webhook deliveries in seconds",
		},
		[]string{"event"},
	)

	WebhookDeliveriesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_deliveries_in_flight",
			Help: "Number of webhook deliveries currently running",
		},
	)

	RegistryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_operations_total",
			Help: "Device and webhook registry operations by outcome",
		},
		[]string{"registry", "operation", "status"},
	)
)

// Outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Status returns the outcome label for err.
func Status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
