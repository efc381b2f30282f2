package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream (completion + embedding endpoint) Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream model requests",
		},
		[]string{"endpoint", "model", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "naviq",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream model request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "model"},
	)

	UpstreamTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "upstream_tokens_total",
			Help:      "Total upstream tokens consumed",
		},
		[]string{"endpoint", "model", "type"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "upstream_errors_total",
			Help:      "Total upstream errors",
		},
		[]string{"endpoint", "model", "error_type"},
	)

	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "upstream_retries_total",
			Help:      "Total upstream call retries",
		},
		[]string{"endpoint"},
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers upstream Prometheus metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamTokensTotal)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(UpstreamRetriesTotal)
	upstreamMetricsRegistered = true
}
