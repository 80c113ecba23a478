// Package metrics provides Prometheus metrics for codepad sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Workspace operations
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_operations_total",
			Help: "Workspace operations by kind and outcome",
		},
		[]string{"op", "status"},
	)

	treeNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "codepad_tree_nodes",
			Help: "Number of files and folders in the published forest",
		},
	)

	// Export metrics
	exportEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_export_entries_total",
			Help: "Archive entries written, by kind",
		},
		[]string{"kind"},
	)

	exportFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codepad_export_entry_failures_total",
			Help: "Archive entries skipped after a per-entry failure",
		},
	)

	exportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codepad_export_duration_seconds",
			Help:    "Folder export duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Execute service
	executeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_execute_requests_total",
			Help: "Requests sent to the execute service",
		},
		[]string{"status"},
	)

	executeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codepad_execute_duration_seconds",
			Help:    "Round trip to the execute service in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Mount writes
	mountWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codepad_mount_writes_total",
			Help: "File writes committed through a mount view",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordOperation counts one workspace operation.
func RecordOperation(op string, err error) {
	operationsTotal.WithLabelValues(op, status(err)).Inc()
}

// SetTreeNodes sets the size of the current forest.
func SetTreeNodes(n int) {
	treeNodes.Set(float64(n))
}

// RecordExport records a finished folder export. A partial export is
// "partial", a hard or cancelled one "error".
func RecordExport(files, dirs, failures int, duration time.Duration, err error) {
	exportEntriesTotal.WithLabelValues("file").Add(float64(files))
	exportEntriesTotal.WithLabelValues("dir").Add(float64(dirs))
	exportFailuresTotal.Add(float64(failures))
	s := status(err)
	if err == nil && failures > 0 {
		s = "partial"
	}
	exportDuration.WithLabelValues(s).Observe(duration.Seconds())
}

// RecordExecute records one execute round trip. success is the remote
// verdict; err is a transport failure.
func RecordExecute(duration time.Duration, success bool, err error) {
	executeDuration.Observe(duration.Seconds())
	s := "success"
	switch {
	case err != nil:
		s = "unreachable"
	case !success:
		s = "failed"
	}
	executeRequestsTotal.WithLabelValues(s).Inc()
}

// RecordMountWrite counts a write flushed through NFS or FUSE.
func RecordMountWrite(err error) {
	mountWritesTotal.WithLabelValues(status(err)).Inc()
}
