package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics instruments the storage engine: uploads, downloads, multipart
// activity, maintenance task outcomes, and fixity failures.
//
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	uploads         prometheus.Counter
	uploadBytes     prometheus.Counter
	downloads       prometheus.Counter
	downloadBytes   prometheus.Counter
	multipartActive prometheus.Gauge
	taskRuns        *prometheus.CounterVec
	fixityFailures  prometheus.Counter
}

// NewEngineMetrics creates the engine metrics instance.
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewEngineMetrics() *EngineMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &EngineMetrics{
		uploads: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shelfd_uploads_total",
			Help: "Total number of completed object uploads",
		}),
		uploadBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shelfd_upload_bytes_total",
			Help: "Total bytes ingested by object uploads",
		}),
		downloads: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shelfd_downloads_total",
			Help: "Total number of object downloads",
		}),
		downloadBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shelfd_download_bytes_total",
			Help: "Total bytes served by object downloads",
		}),
		multipartActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "shelfd_multipart_uploads_active",
			Help: "Number of in-progress multipart uploads",
		}),
		taskRuns: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "shelfd_task_runs_total",
			Help: "Maintenance task executions by task name and outcome",
		}, []string{"task", "outcome"}),
		fixityFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "shelfd_fixity_failures_total",
			Help: "Checksum verifications that detected a mismatch",
		}),
	}
}

// RecordUpload records a completed upload of the given size.
func (m *EngineMetrics) RecordUpload(bytes int64) {
	if m == nil {
		return
	}
	m.uploads.Inc()
	m.uploadBytes.Add(float64(bytes))
}

// RecordDownload records a served download of the given size.
func (m *EngineMetrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.downloads.Inc()
	m.downloadBytes.Add(float64(bytes))
}

// MultipartStarted increments the active multipart gauge.
func (m *EngineMetrics) MultipartStarted() {
	if m == nil {
		return
	}
	m.multipartActive.Inc()
}

// MultipartFinished decrements the active multipart gauge.
func (m *EngineMetrics) MultipartFinished() {
	if m == nil {
		return
	}
	m.multipartActive.Dec()
}

// RecordTaskRun records a maintenance task execution.
func (m *EngineMetrics) RecordTaskRun(task string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.taskRuns.WithLabelValues(task, outcome).Inc()
}

// RecordFixityFailure records a checksum mismatch.
func (m *EngineMetrics) RecordFixityFailure() {
	if m == nil {
		return
	}
	m.fixityFailures.Inc()
}
