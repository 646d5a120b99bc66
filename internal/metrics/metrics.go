package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	CallsTotal    *prometheus.CounterVec
	ActiveCalls   prometheus.Gauge
	WebhookEvents *prometheus.CounterVec
}

// New registers the collectors against the given registerer. Tests pass a
// fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "calls_total",
			Help:      "Completed calls by terminal status.",
		}, []string{"status"}),
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "frontdesk",
			Name:      "active_calls",
			Help:      "Calls currently in flight.",
		}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontdesk",
			Name:      "webhook_events_total",
			Help:      "Webhook events received by type.",
		}, []string{"event_type"}),
	}
}
