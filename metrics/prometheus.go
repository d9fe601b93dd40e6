package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rayjob"

// Registry builds a private Prometheus registry holding the current counter
// values. Each call produces a fresh registry.
func (c *Collector) Registry() *prometheus.Registry {
	s := c.Snapshot()
	labels := prometheus.Labels{"dashboard": s.Dashboard, "packages_backend": s.PackagesBackend}

	counter := func(name, help string, v int64) prometheus.Counter {
		ctr := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		ctr.Add(float64(v))
		return ctr
	}

	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Name:        "jobs_terminal_total",
		Help:        "Terminal job statuses observed while waiting",
		ConstLabels: labels,
	}, []string{"status"})
	for status, v := range s.TerminalByStatus {
		terminal.WithLabelValues(status).Add(float64(v))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		counter("jobs_submitted_total", "Jobs accepted by the dashboard", s.Submissions),
		counter("jobs_submit_failures_total", "Job submissions that failed", s.SubmissionsFailed),
		counter("job_polls_total", "Job status polls", s.Polls),
		counter("job_poll_errors_total", "Job status polls that failed", s.PollErrors),
		counter("job_wait_timeouts_total", "Waits that exceeded their bound", s.Timeouts),
		terminal,
		counter("package_uploads_total", "Packages uploaded", s.UploadsPerformed),
		counter("package_uploads_skipped_total", "Uploads skipped because the package existed", s.UploadsSkipped),
		counter("package_upload_failures_total", "Failed package checks or uploads", s.UploadsFailed),
		counter("package_upload_bytes_total", "Bytes of package data uploaded", s.BytesUploaded),
	)
	return reg
}

// WritePrometheusTextfile writes the counters in the Prometheus text format
// for the node exporter textfile collector.
func (c *Collector) WritePrometheusTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry())
}
