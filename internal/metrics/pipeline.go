package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline executions",
		},
		[]string{"pipeline", "status"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "naviq",
			Name:      "pipeline_duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"pipeline"},
	)

	ArbitrationWinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "arbitration_wins_total",
			Help:      "Arbitration outcomes by winning pipeline",
		},
		[]string{"winner"},
	)

	RecordsReembeddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "naviq",
			Name:      "records_reembedded_total",
			Help:      "Total records whose embedding was recomputed",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline Prometheus metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(ArbitrationWinsTotal)
	prometheus.MustRegister(RecordsReembeddedTotal)
	pipelineMetricsRegistered = true
}
