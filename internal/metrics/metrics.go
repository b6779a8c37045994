package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconciliation",
		Name:      "files_processed_total",
		Help:      "Files run through the reconciliation pipeline, by outcome.",
	}, []string{"status"})

	RecordsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconciliation",
		Name:      "records_total",
		Help:      "Reconciled records written, by grouping rule.",
	}, []string{"rule"})

	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconciliation",
		Name:      "decisions_total",
		Help:      "Records removed by the reconciliation engine, by pass.",
	}, []string{"pass"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reconciliation",
		Name:      "batch_duration_seconds",
		Help:      "Wall time spent processing one upload batch.",
		Buckets:   prometheus.DefBuckets,
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
