package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		gatewayRequestsTotal,
		gatewayRequestDuration,
	)
}

var (
	// endpoint: fetch_order | fetch_payments | list_orders
	// result: ok | not_found | rejected | transient
	gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Payment gateway calls by endpoint and classified result.",
		},
		[]string{"provider", "endpoint", "result"},
	)

	gatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Payment gateway call latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"provider", "endpoint"},
	)
)

func ObserveGatewayRequest(provider, endpoint, result string, d time.Duration) {
	gatewayRequestsTotal.WithLabelValues(norm(provider), norm(endpoint), norm(result)).Inc()
	gatewayRequestDuration.WithLabelValues(norm(provider), norm(endpoint)).Observe(d.Seconds())
}
