// Package metrics exposes prometheus collectors for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's collectors.
type Metrics struct {
	Connections            prometheus.Gauge
	EventsEmitted          *prometheus.CounterVec
	MessagesSent           prometheus.Counter
	NotificationsPersisted prometheus.Counter
	HTTPRequests           *prometheus.CounterVec
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "websocket_connections",
			Help:      "Currently open websocket connections.",
		}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "events_emitted_total",
			Help:      "Realtime events emitted to clients, by event type.",
		}, []string{"type"}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_sent_total",
			Help:      "Chat messages persisted.",
		}),
		NotificationsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "notifications_persisted_total",
			Help:      "Notification rows written.",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by method and status class.",
		}, []string{"method", "class"}),
	}
}
