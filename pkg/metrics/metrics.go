// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// WSConnectionsActive tracks live WebSocket connections.
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	// MessagesSentTotal tracks messages accepted and persisted.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages persisted via the send path",
		},
		[]string{"type"},
	)

	// DeliveryPushesTotal tracks fan-out pushes to recipient connections.
	DeliveryPushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_pushes_total",
			Help: "Total delivery events pushed to live connections",
		},
	)

	// DeliveryDropsTotal tracks pushes dropped because a connection's send
	// buffer was full or the recipient had no live connection on this node.
	DeliveryDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_drops_total",
			Help: "Total best-effort delivery pushes that were dropped",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
