package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the display service collectors.
	Registry = prometheus.NewRegistry()

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tamias_display",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Display sessions currently open.",
		},
	)

	SubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tamias_display",
			Subsystem: "channel",
			Name:      "subscriptions_active",
			Help:      "Cashier channel subscriptions currently held by display sessions.",
		},
	)

	SubscribeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "channel",
			Name:      "subscribe_failures_total",
			Help:      "Cashier channel subscriptions that could not be opened.",
		},
	)

	EventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "channel",
			Name:      "events_total",
			Help:      "Broadcast events received, by event name.",
		},
		[]string{"event"},
	)

	EventsMalformed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "channel",
			Name:      "events_malformed_total",
			Help:      "Broadcast events whose payload needed defaults.",
		},
		[]string{"event"},
	)

	Reverts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "state",
			Name:      "success_reverts_total",
			Help:      "Times the success screen reverted to idle on its timer.",
		},
	)

	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Store resolutions, by lookup path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tamias_display",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tamias_display",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		SessionsActive,
		SubscriptionsActive,
		SubscribeFailures,
		EventsReceived,
		EventsMalformed,
		Reverts,
		Resolutions,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordHTTPRequest(method, path, status string, seconds float64) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}
