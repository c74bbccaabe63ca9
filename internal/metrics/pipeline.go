package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics. Stage label values: fetch, filter, embed, load, verify.
var (
	RecordsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperdex",
			Name:      "records_processed_total",
			Help:      "Total records a stage has consumed",
		},
		[]string{"stage"},
	)

	RecordsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperdex",
			Name:      "records_failed_total",
			Help:      "Total records a stage has rejected",
		},
		[]string{"stage", "reason"},
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperdex",
			Name:      "batches_total",
			Help:      "Total batches a stage has completed",
		},
		[]string{"stage", "status"},
	)

	BatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "paperdex",
			Name:      "batch_duration_seconds",
			Help:      "Batch processing duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	DocumentsIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paperdex",
			Name:      "documents_indexed_total",
			Help:      "Total documents written to the index",
		},
	)

	DownloadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paperdex",
			Name:      "download_bytes_total",
			Help:      "Total bytes fetched from the dataset source",
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecordsProcessedTotal)
	prometheus.MustRegister(RecordsFailedTotal)
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(DownloadBytesTotal)
	pipelineMetricsRegistered = true
}
