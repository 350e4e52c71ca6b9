// Package metricsx exposes the Prometheus metrics spec.md §6 names for the
// admin consumption path and the read dispatch path, grounded on the
// teacher's storage-node/internal/metrics/prometheus.go construction style
// (promauto-registered fields on a plain struct, one constructor per side).
package metricsx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AdminMetrics covers the admin consumption task's named metrics.
type AdminMetrics struct {
	// FailingOffset mirrors adminConsumptionFailedOffset: the offset the
	// task is currently blocked on, or -1 when nothing is blocking.
	FailingOffset prometheus.Gauge

	// PendingMessagesCount mirrors pendingAdminMessagesCount.
	PendingMessagesCount prometheus.Gauge

	// StoresWithPendingCount mirrors storesWithPendingAdminMessagesCount.
	StoresWithPendingCount prometheus.Gauge

	// CycleDurationMs mirrors adminConsumptionCycleDurationMs.
	CycleDurationMs prometheus.Histogram

	// DIVErrorReportCount mirrors adminTopicDIVErrorReportCount.
	DIVErrorReportCount prometheus.Counter
}

func NewAdminMetrics(cluster string) *AdminMetrics {
	labels := prometheus.Labels{"cluster": cluster}
	return &AdminMetrics{
		FailingOffset: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "corestore",
			Subsystem:   "admin",
			Name:        "consumption_failed_offset",
			Help:        "Offset the admin consumption task is currently blocked on, or -1 when unblocked.",
			ConstLabels: labels,
		}),
		PendingMessagesCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "corestore",
			Subsystem:   "admin",
			Name:        "pending_messages_count",
			Help:        "Number of admin messages buffered across all per-store pending queues.",
			ConstLabels: labels,
		}),
		StoresWithPendingCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "corestore",
			Subsystem:   "admin",
			Name:        "stores_with_pending_messages_count",
			Help:        "Number of stores with at least one undelivered admin message.",
			ConstLabels: labels,
		}),
		CycleDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "corestore",
			Subsystem:   "admin",
			Name:        "consumption_cycle_duration_ms",
			Help:        "Wall time of one poll-dispatch-execute-persist cycle, in milliseconds.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 16),
		}),
		DIVErrorReportCount: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "corestore",
			Subsystem:   "admin",
			Name:        "topic_div_error_report_count",
			Help:        "Count of DIV gap errors reported while consuming the admin topic.",
			ConstLabels: labels,
		}),
	}
}
