// Package metrics provides client-side counters for submissions, polling
// and package uploads.
//
// The Collector accumulates counters for the lifetime of one client process.
// It is a leaf package apart from the Prometheus export in prometheus.go.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Jobs
	Submissions       int64
	SubmissionsFailed int64
	Polls             int64
	PollErrors        int64
	Timeouts          int64
	TerminalByStatus  map[string]int64

	// Packages
	UploadsPerformed int64
	UploadsSkipped   int64
	UploadsFailed    int64
	BytesUploaded    int64

	// Dimensions (informational, set at construction)
	Dashboard       string
	PackagesBackend string
}

// Collector accumulates client metrics.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	submissions       int64
	submissionsFailed int64
	polls             int64
	pollErrors        int64
	timeouts          int64
	terminalByStatus  map[string]int64

	uploadsPerformed int64
	uploadsSkipped   int64
	uploadsFailed    int64
	bytesUploaded    int64

	dashboard       string
	packagesBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(dashboard, packagesBackend string) *Collector {
	return &Collector{
		terminalByStatus: make(map[string]int64),
		dashboard:        dashboard,
		packagesBackend:  packagesBackend,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Jobs ---

// IncSubmission records an accepted job submission.
func (c *Collector) IncSubmission() {
	if c == nil {
		return
	}
	c.add(&c.submissions, 1)
}

// IncSubmissionFailed records a submission that did not reach the dashboard
// or was rejected by it.
func (c *Collector) IncSubmissionFailed() {
	if c == nil {
		return
	}
	c.add(&c.submissionsFailed, 1)
}

// IncPoll records one status observation during a wait.
func (c *Collector) IncPoll() {
	if c == nil {
		return
	}
	c.add(&c.polls, 1)
}

// IncPollError records a status request that failed during a wait.
func (c *Collector) IncPollError() {
	if c == nil {
		return
	}
	c.add(&c.pollErrors, 1)
}

// IncTimeout records a wait that exceeded its bound.
func (c *Collector) IncTimeout() {
	if c == nil {
		return
	}
	c.add(&c.timeouts, 1)
}

// IncTerminal records a terminal status observed by a wait.
// The status is string-typed to keep this package free of the types package.
func (c *Collector) IncTerminal(status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.terminalByStatus[status]++
	c.mu.Unlock()
}

// --- Packages ---

// IncUploadPerformed records a package upload of n bytes.
func (c *Collector) IncUploadPerformed(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadsPerformed++
	c.bytesUploaded += int64(n)
	c.mu.Unlock()
}

// IncUploadSkipped records an upload avoided because the package existed.
func (c *Collector) IncUploadSkipped() {
	if c == nil {
		return
	}
	c.add(&c.uploadsSkipped, 1)
}

// IncUploadFailed records a failed existence check or upload.
func (c *Collector) IncUploadFailed() {
	if c == nil {
		return
	}
	c.add(&c.uploadsFailed, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{TerminalByStatus: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	terminal := make(map[string]int64, len(c.terminalByStatus))
	for k, v := range c.terminalByStatus {
		terminal[k] = v
	}

	return Snapshot{
		Submissions:       c.submissions,
		SubmissionsFailed: c.submissionsFailed,
		Polls:             c.polls,
		PollErrors:        c.pollErrors,
		Timeouts:          c.timeouts,
		TerminalByStatus:  terminal,

		UploadsPerformed: c.uploadsPerformed,
		UploadsSkipped:   c.uploadsSkipped,
		UploadsFailed:    c.uploadsFailed,
		BytesUploaded:    c.bytesUploaded,

		Dashboard:       c.dashboard,
		PackagesBackend: c.packagesBackend,
	}
}
