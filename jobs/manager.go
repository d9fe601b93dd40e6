// Package jobs submits jobs to the dashboard and waits for them to finish.
//
// Submission rewrites a local working directory into a package URI before
// the request leaves the process. Waiting polls the dashboard at a fixed
// interval until the job is terminal, the optional bound elapses, or the
// context ends. Status transitions are never inferred locally.
package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/rayjob/adapter"
	"github.com/justapithecus/rayjob/journal"
	"github.com/justapithecus/rayjob/log"
	"github.com/justapithecus/rayjob/metrics"
	"github.com/justapithecus/rayjob/types"
)

// PollInterval is the fixed delay between status polls.
const PollInterval = 500 * time.Millisecond

// Client is the dashboard surface the manager needs.
// *dashboard.Client satisfies it.
type Client interface {
	BaseURL() string
	SubmitJob(ctx context.Context, req *types.JobSubmitRequest) (string, error)
	ListJobs(ctx context.Context) ([]types.JobDetails, error)
	GetJobDetails(ctx context.Context, id string) (*types.JobDetails, error)
	StopJob(ctx context.Context, id string) (bool, error)
	DeleteJob(ctx context.Context, id string) (bool, error)
	GetJobLogs(ctx context.Context, id string) (string, error)
}

// Recorder appends submission history. *journal.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Manager runs job operations against one dashboard.
// It keeps no per-job state; concurrent calls on different jobs are
// independent.
type Manager struct {
	client   Client
	uploader Uploader
	adapter  adapter.Adapter
	journal  Recorder
	metrics  *metrics.Collector
	logger   *log.Logger
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithUploader enables local working_dir packaging on submit.
func WithUploader(u Uploader) Option {
	return func(m *Manager) { m.uploader = u }
}

// WithAdapter publishes a completion event when a wait sees a terminal status.
func WithAdapter(a adapter.Adapter) Option {
	return func(m *Manager) { m.adapter = a }
}

// WithJournal records submissions and terminal outcomes.
func WithJournal(r Recorder) Option {
	return func(m *Manager) { m.journal = r }
}

// WithMetrics records submission and polling counters.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) { m.metrics = c }
}

// WithLogger attaches a logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager over client.
func NewManager(client Client, opts ...Option) *Manager {
	m := &Manager{client: client, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "jobs").With("dashboard", client.BaseURL())
	return m
}

// NewSubmissionID generates an id in the dashboard's raysubmit_ format.
func NewSubmissionID() string {
	return "raysubmit_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// Submit packages a local working_dir if needed, assigns a submission id
// when the request has none, and submits the job. The caller's request is
// not modified.
func (m *Manager) Submit(ctx context.Context, req types.JobSubmitRequest) (string, error) {
	prepared, err := RewriteWorkingDir(ctx, req, m.uploader)
	if err != nil {
		m.metrics.IncSubmissionFailed()
		return "", err
	}
	if prepared.SubmissionID == "" {
		prepared.SubmissionID = NewSubmissionID()
	}

	id, err := m.client.SubmitJob(ctx, &prepared)
	if err != nil {
		m.metrics.IncSubmissionFailed()
		return "", err
	}
	m.metrics.IncSubmission()

	var workingDir string
	if prepared.RuntimeEnv != nil {
		workingDir = prepared.RuntimeEnv.WorkingDir
	}
	m.record(ctx, journal.Entry{
		Event:        journal.EventSubmitted,
		SubmissionID: id,
		Entrypoint:   prepared.Entrypoint,
		WorkingDir:   workingDir,
		Dashboard:    m.client.BaseURL(),
		Timestamp:    m.now(),
	})
	return id, nil
}

// Status returns the job's current status as reported by the dashboard.
func (m *Manager) Status(ctx context.Context, id string) (types.JobStatus, error) {
	details, err := m.client.GetJobDetails(ctx, id)
	if err != nil {
		return "", err
	}
	return details.Status, nil
}

// Details returns the job's full record.
func (m *Manager) Details(ctx context.Context, id string) (*types.JobDetails, error) {
	return m.client.GetJobDetails(ctx, id)
}

// List returns every job known to the dashboard.
func (m *Manager) List(ctx context.Context) ([]types.JobDetails, error) {
	return m.client.ListJobs(ctx)
}

// Stop asks the dashboard to stop a job. It reports whether the job was
// running.
func (m *Manager) Stop(ctx context.Context, id string) (bool, error) {
	return m.client.StopJob(ctx, id)
}

// Delete removes a terminal job's record from the dashboard.
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	return m.client.DeleteJob(ctx, id)
}

// Logs returns the job's full log text.
func (m *Manager) Logs(ctx context.Context, id string) (string, error) {
	return m.client.GetJobLogs(ctx, id)
}

func (m *Manager) record(ctx context.Context, e journal.Entry) {
	if m.journal == nil {
		return
	}
	if err := m.journal.Record(ctx, e); err != nil {
		m.logger.Warn("journal record failed", map[string]any{
			"submission_id": e.SubmissionID,
			"event_type":    e.Event,
			"error":         err,
		})
	}
}
