// Package metrics provides Prometheus instrumentation for tether.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tether_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Connection metrics.
var (
	ConnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_connect_attempts_total",
		Help: "Total number of transports dialed.",
	})

	ReconnectsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_reconnects_scheduled_total",
		Help: "Total number of reconnect timers armed.",
	})

	ReconnectDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tether_reconnect_delay_seconds",
		Help:    "Delay of scheduled reconnect attempts in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32, 64},
	})

	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_connections_open",
		Help: "Number of currently open transports.",
	})

	ClosesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tether_closes_total",
		Help: "Total number of transport close events by kind (normal, abnormal).",
	}, []string{"kind"})

	TransportErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_transport_errors_total",
		Help: "Total number of transport errors, including failed dials.",
	})
)

// Message metrics.
var (
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_messages_sent_total",
		Help: "Total number of payloads transmitted.",
	})

	MessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_messages_received_total",
		Help: "Total number of payloads delivered to callers.",
	})

	MessagesQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_messages_queued",
		Help: "Number of payloads waiting in outbound queues.",
	})
)

// WebSocket echo server metrics.
var (
	WSEchoConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tether_ws_echo_connections_active",
		Help: "Number of active echo server WebSocket connections.",
	})

	WSEchoMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tether_ws_echo_messages_total",
		Help: "Total number of messages echoed.",
	})
)
