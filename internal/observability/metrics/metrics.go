// Package metrics provides Prometheus instrumentation for srcverify.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// Explorer HTTP metrics
	explorerRequestsTotal *prometheus.CounterVec
	explorerDuration      *prometheus.HistogramVec

	// Workflow metrics
	workflowTotal    *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	statusPolls      prometheus.Histogram
	txListAttempts   prometheus.Histogram
)

// Init initializes the metrics system. It must be called at most once.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	explorerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_requests_total",
			Help:        "Total number of requests sent to block explorers",
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		[]string{"action", "status"},
	)

	explorerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "explorer_request_duration_seconds",
			Help:        "Block explorer request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		[]string{"action"},
	)

	workflowTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "verification_workflow_total",
			Help:        "Total number of verification workflow runs by final stage and outcome",
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		[]string{"shape", "stage", "outcome"},
	)

	workflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "verification_workflow_duration_seconds",
			Help:        "Wall-clock time of verification workflow runs",
			Buckets:     []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		[]string{"shape"},
	)

	statusPolls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "verification_status_polls",
			Help:        "Status checks needed before a verification result was final",
			Buckets:     prometheus.LinearBuckets(1, 2, 10),
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
	)

	txListAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "verification_txlist_attempts",
			Help:        "Transaction list requests needed before the deployment was indexed",
			Buckets:     prometheus.LinearBuckets(1, 1, 11),
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
