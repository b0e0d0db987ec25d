package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ChecksTotal counts similarity checks by outcome
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellguard_checks_total",
			Help: "Total number of similarity checks",
		},
		[]string{"outcome"},
	)

	// CheckDuration measures check duration
	CheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cellguard_check_duration_seconds",
			Help:    "Similarity check duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	PairComparisons = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cellguard_pair_comparisons_total",
			Help: "Total number of fragment pairs scored",
		},
	)

	FragmentsExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cellguard_fragments_extracted_total",
			Help: "Total number of code fragments extracted and cached",
		},
	)

	SkippedSiblings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cellguard_skipped_siblings_total",
			Help: "Total number of sibling versions skipped after a failure",
		},
	)

	// StreamMessages counts upload events by how they were settled
	StreamMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cellguard_stream_messages_total",
			Help: "Total number of upload events consumed from the stream",
		},
		[]string{"result"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cellguard_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint", "status"},
	)
)

// InitPrometheus registers the collectors with the default registry
func InitPrometheus() {
	prometheus.MustRegister(ChecksTotal)
	prometheus.MustRegister(CheckDuration)
	prometheus.MustRegister(PairComparisons)
	prometheus.MustRegister(FragmentsExtracted)
	prometheus.MustRegister(SkippedSiblings)
	prometheus.MustRegister(StreamMessages)
	prometheus.MustRegister(RequestDuration)
}
