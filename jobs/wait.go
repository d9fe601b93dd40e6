package jobs

import (
	"context"
	"time"

	"github.com/justapithecus/rayjob/adapter"
	"github.com/justapithecus/rayjob/journal"
	"github.com/justapithecus/rayjob/types"
)

// Observer is called with every status observed by a wait, in order.
type Observer func(details *types.JobDetails, elapsed time.Duration)

type waitConfig struct {
	observer Observer
}

// WaitOption configures a single wait.
type WaitOption func(*waitConfig)

// WithObserver reports each poll result to fn.
func WithObserver(fn Observer) WaitOption {
	return func(c *waitConfig) { c.observer = fn }
}

// WaitForTerminal polls the job every PollInterval until its status is
// terminal and returns the final details.
//
// A positive limit bounds the wait: once a non-terminal status is observed
// at or past the limit, a *TimeoutError is returned. A zero limit waits
// indefinitely. Request failures return immediately without retry. ctx is
// checked at the start of each poll and while sleeping.
func (m *Manager) WaitForTerminal(ctx context.Context, id string, limit time.Duration, opts ...WaitOption) (*types.JobDetails, error) {
	var cfg waitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := m.now()
	timer := time.NewTimer(PollInterval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		details, err := m.client.GetJobDetails(ctx, id)
		if err != nil {
			m.metrics.IncPollError()
			return nil, err
		}
		m.metrics.IncPoll()

		elapsed := m.now().Sub(start)
		if cfg.observer != nil {
			cfg.observer(details, elapsed)
		}

		if details.Status.IsTerminal() {
			m.finish(ctx, details, elapsed)
			return details, nil
		}
		if limit > 0 && elapsed >= limit {
			m.metrics.IncTimeout()
			m.logger.Warn("wait timed out", map[string]any{
				"submission_id": id,
				"limit":         limit.String(),
				"status":        string(details.Status),
			})
			return details, &TimeoutError{SubmissionID: id, Limit: limit, Last: details.Status}
		}

		timer.Reset(PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// finish records a terminal observation. Hook failures are logged only.
func (m *Manager) finish(ctx context.Context, details *types.JobDetails, elapsed time.Duration) {
	m.metrics.IncTerminal(string(details.Status))
	m.logger.Info("job finished", map[string]any{
		"submission_id": details.ID(),
		"status":        string(details.Status),
	})

	event := adapter.NewJobCompletedEvent(m.client.BaseURL(), details, elapsed, m.now())
	if m.adapter != nil {
		if err := m.adapter.Publish(ctx, event); err != nil {
			m.logger.Warn("completion event not published", map[string]any{
				"submission_id": event.SubmissionID,
				"error":         err,
			})
		}
	}

	m.record(ctx, journal.Entry{
		Event:        journal.EventTerminal,
		SubmissionID: event.SubmissionID,
		Entrypoint:   details.Entrypoint,
		Status:       event.Status,
		Dashboard:    event.Dashboard,
		Message:      event.Message,
		DurationMs:   event.DurationMs,
		Timestamp:    m.now(),
	})
}
