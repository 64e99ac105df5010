package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		apiRequestsTotal,
		rateLimitTriggeredTotal,
		notificationsTotal,
	)
}

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Operator API requests by route and status class.",
		},
		[]string{"route", "code"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_triggered_total",
			Help: "Operator calls rejected by the rate limiter.",
		},
		[]string{"route"},
	)

	// status: sent | error | disabled
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_notifications_total",
			Help: "Operator notifications about granted entitlements.",
		},
		[]string{"status"},
	)
)

func IncAPIRequest(route, code string) {
	apiRequestsTotal.WithLabelValues(route, code).Inc()
}

func IncRateLimitTriggered(route string) {
	rateLimitTriggeredTotal.WithLabelValues(route).Inc()
}

func IncNotification(status string) {
	notificationsTotal.WithLabelValues(norm(status)).Inc()
}
