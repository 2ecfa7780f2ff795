// Package metrics provides Prometheus metrics for scans, analysis and exports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo2txt_scans_total",
			Help: "Total number of directory scans",
		},
		[]string{"kind", "status"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repo2txt_scan_duration_seconds",
			Help:    "Time spent walking a root directory",
			Buckets: prometheus.DefBuckets,
		},
	)

	indexedNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "repo2txt_indexed_nodes",
			Help: "Number of nodes in the current index",
		},
	)

	analyzedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo2txt_analyzed_files_total",
			Help: "Total number of files measured by the background analyzer",
		},
		[]string{"kind"},
	)

	staleBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repo2txt_stale_batches_total",
			Help: "Analyzer batches dropped because a newer scan started",
		},
	)

	exportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo2txt_exports_total",
			Help: "Total number of exports",
		},
		[]string{"status"},
	)

	exportBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "repo2txt_export_bytes_total",
			Help: "Total bytes of generated export content",
		},
	)

	exportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "repo2txt_export_duration_seconds",
			Help:    "Time spent generating an export",
			Buckets: prometheus.DefBuckets,
		},
	)

	commandRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repo2txt_command_requests_total",
			Help: "Total number of command server requests",
		},
		[]string{"command", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScan records a finished root or subtree scan.
func RecordScan(kind string, nodeCount int, duration time.Duration, success bool) {
	scansTotal.WithLabelValues(kind, outcome(success)).Inc()
	if !success {
		return
	}
	scanDuration.Observe(duration.Seconds())
	if kind == ScanKindRoot {
		indexedNodes.Set(float64(nodeCount))
	}
}

// RecordAnalyzedFile records one measured file.
func RecordAnalyzedFile(binary bool) {
	kind := "text"
	if binary {
		kind = "binary"
	}
	analyzedFilesTotal.WithLabelValues(kind).Inc()
}

// RecordStaleBatch records a batch suppressed by a newer scan.
func RecordStaleBatch() {
	staleBatchesTotal.Inc()
}

// RecordExport records a finished export.
func RecordExport(contentBytes int, duration time.Duration, success bool) {
	exportsTotal.WithLabelValues(outcome(success)).Inc()
	if !success {
		return
	}
	exportBytesTotal.Add(float64(contentBytes))
	exportDuration.Observe(duration.Seconds())
}

// RecordCommand records one command server request.
func RecordCommand(command string, status int) {
	commandRequestsTotal.WithLabelValues(command, strconv.Itoa(status)).Inc()
}

const (
	// ScanKindRoot labels full root scans.
	ScanKindRoot = "root"
	// ScanKindDirectory labels one-level subtree scans.
	ScanKindDirectory = "directory"
)

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
