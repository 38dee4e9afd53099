package notification

import "github.com/prometheus/client_golang/prometheus"

var (
	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ark",
			Subsystem: "push",
			Name:      "notifications_total",
			Help:      "Total number of push notifications by delivery outcome.",
		},
		[]string{"outcome"},
	)

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ark",
			Subsystem: "push",
			Name:      "gateway_calls_total",
			Help:      "Total number of push gateway calls by result.",
		},
		[]string{"result"},
	)

	gatewayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ark",
			Subsystem: "push",
			Name:      "gateway_call_duration_seconds",
			Help:      "Duration of push gateway calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

// RegisterMetrics registers the push collectors on reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(notificationsSent, gatewayCalls, gatewayDuration)
}
