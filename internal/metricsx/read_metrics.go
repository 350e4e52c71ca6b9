package metricsx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReadMetrics covers the storage execution handler's read dispatch path.
type ReadMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	SubmissionWaitMs     *prometheus.HistogramVec
	QueueDepth           *prometheus.GaugeVec
	DatabaseLookupMs      *prometheus.HistogramVec
	ComputeMs             *prometheus.HistogramVec
	ComputeSerializationMs *prometheus.HistogramVec
	EarlyTerminations     prometheus.Counter
}

func NewReadMetrics() *ReadMetrics {
	return &ReadMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "requests_total",
			Help:      "Read dispatch requests handled, labeled by operation type and outcome.",
		}, []string{"operation", "outcome"}),
		SubmissionWaitMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "submission_wait_ms",
			Help:      "Time a request waited in the worker pool's queue before a worker picked it up.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"pool"}),
		QueueDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "queue_depth",
			Help:      "Number of requests currently queued in a worker pool.",
		}, []string{"pool"}),
		DatabaseLookupMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "database_lookup_ms",
			Help:      "Time spent fetching a value from the local storage engine.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"operation"}),
		ComputeMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "compute_ms",
			Help:      "Time spent evaluating a compute operator pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"operator"}),
		ComputeSerializationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "compute_serialization_ms",
			Help:      "Time spent serializing a compute result record.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"operation"}),
		EarlyTerminations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "corestore",
			Subsystem: "read",
			Name:      "early_terminations_total",
			Help:      "Requests abandoned because their early-termination flag was set, detected by the dispatcher's double-check.",
		}),
	}
}

// ObserveSubmissionWait and SetQueueDepth let ReadMetrics satisfy
// workerpool.WaitObserver without that package depending on Prometheus
// directly.
func (m *ReadMetrics) ObserveSubmissionWait(pool string, d time.Duration) {
	m.SubmissionWaitMs.WithLabelValues(pool).Observe(float64(d.Microseconds()) / 1000.0)
}

func (m *ReadMetrics) SetQueueDepth(pool string, depth int) {
	m.QueueDepth.WithLabelValues(pool).Set(float64(depth))
}
