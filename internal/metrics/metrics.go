package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "situations_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	composeTotal   *prometheus.CounterVec
	composeLatency *prometheus.HistogramVec

	snapshotWriteFailures *prometheus.CounterVec
	reconcileTotal        *prometheus.CounterVec

	progressUpdates *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	jobRuns    *prometheus.CounterVec
	jobLatency *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the collectors with the default registry. Observe* calls
// before Init are no-ops.
func Init() {
	registerOnce.Do(func() {
		composeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "compose_total",
				Help: "Total statement compositions by outcome",
			},
			[]string{"outcome"},
		)
		composeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "compose_latency_seconds",
				Help:    "Statement composition latency in seconds, persistence included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		snapshotWriteFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_write_failures_total",
				Help: "Total failed snapshot row writes by kind",
			},
			[]string{"kind"},
		)
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Total statement reconciliations by result",
			},
			[]string{"result"},
		)
		progressUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "progress_updates_total",
				Help: "Total line progress updates by line kind and result",
			},
			[]string{"kind", "result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total statement exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)
		jobRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "job_runs_total",
				Help: "Total background job runs by job and result",
			},
			[]string{"job", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_latency_seconds",
				Help:    "Background job latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		)
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(
			composeTotal,
			composeLatency,
			snapshotWriteFailures,
			reconcileTotal,
			progressUpdates,
			exportTotal,
			exportLatency,
			jobRuns,
			jobLatency,
			httpRequests,
			httpLatency,
		)
	})
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

// ObserveCompose records a composition outcome (ok, degraded_baseline,
// partial, conflict, fatal...) and its duration.
func ObserveCompose(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if composeTotal != nil {
		composeTotal.WithLabelValues(outcome).Inc()
	}
	if composeLatency != nil {
		composeLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// AddSnapshotWriteFailures counts failed snapshot rows of a kind.
func AddSnapshotWriteFailures(kind string, count int) {
	if count <= 0 {
		return
	}
	if snapshotWriteFailures != nil {
		snapshotWriteFailures.WithLabelValues(kind).Add(float64(count))
	}
}

// IncReconcile records a reconciliation result.
func IncReconcile(result string) {
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(result).Inc()
	}
}

// IncProgressUpdate records a line progress update.
func IncProgressUpdate(kind string, err error) {
	if progressUpdates != nil {
		progressUpdates.WithLabelValues(kind, resultOf(err)).Inc()
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format string, err error, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, resultOf(err)).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format).Observe(duration.Seconds())
	}
}

// ObserveJob records a background job run.
func ObserveJob(job string, err error, duration time.Duration) {
	if job == "" {
		job = "anonymous"
	}
	if jobRuns != nil {
		jobRuns.WithLabelValues(job, resultOf(err)).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(job).Observe(duration.Seconds())
	}
}

// ObserveHTTP records an HTTP request.
func ObserveHTTP(method, route, status string, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, route, status).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
	}
}
