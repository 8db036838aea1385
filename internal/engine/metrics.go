package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/hostrunner/internal/model"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hostrunner_operations_total",
			Help: "Total number of operation executions by outcome.",
		},
		[]string{"operation", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hostrunner_operation_duration_seconds",
			Help:    "Operation execution time from start to settle, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hostrunner_queue_depth",
			Help: "Number of queued operations, including the one executing.",
		},
	)

	submissionsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostrunner_submissions_dropped_total",
			Help: "Submissions ignored because the host was unreachable.",
		},
	)

	submissionsSuperseded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hostrunner_submissions_superseded_total",
			Help: "Submissions replaced by a later submission of the same operation before they started.",
		},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(submissionsDropped)
	prometheus.MustRegister(submissionsSuperseded)

	// Pre-initialize built-in label combinations so they appear in /metrics
	// with value 0 from startup.
	for _, op := range model.OperationNames {
		for _, status := range []string{model.ExecResolved, model.ExecRejected, model.ExecFailed, model.ExecTimedOut} {
			operationsTotal.WithLabelValues(op, status)
		}
	}
}
