// Package adapter defines the notification boundary for finished jobs.
//
// Adapters publish a JobCompletedEvent when a wait observes a terminal
// status. Publishing is best effort: callers log failures and carry on.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/rayjob/types"
)

// ContractVersion versions the event payload shape.
const ContractVersion = "1.0.0"

// EventTypeJobCompleted is the only event type published today.
const EventTypeJobCompleted = "job_completed"

// JobCompletedEvent is the payload published when a job reaches a terminal
// status.
type JobCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "job_completed"
	SubmissionID    string `json:"submission_id"`
	Status          string `json:"status"` // SUCCEEDED, FAILED or STOPPED
	Entrypoint      string `json:"entrypoint"`
	Message         string `json:"message,omitempty"`
	Dashboard       string `json:"dashboard"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	DurationMs      int64  `json:"duration_ms"`
}

// NewJobCompletedEvent builds the event for a terminal job.
// The duration comes from the job's own start and end times when the
// dashboard reports both, else from waited.
func NewJobCompletedEvent(dashboard string, details *types.JobDetails, waited time.Duration, now time.Time) *JobCompletedEvent {
	duration := waited.Milliseconds()
	if details.StartTime != nil && details.EndTime != nil && *details.EndTime >= *details.StartTime {
		duration = int64(*details.EndTime - *details.StartTime)
	}
	return &JobCompletedEvent{
		ContractVersion: ContractVersion,
		EventType:       EventTypeJobCompleted,
		SubmissionID:    details.ID(),
		Status:          string(details.Status),
		Entrypoint:      details.Entrypoint,
		Message:         details.MessageText(),
		Dashboard:       dashboard,
		Timestamp:       now.UTC().Format(time.RFC3339),
		DurationMs:      duration,
	}
}

// Adapter publishes job completion events to a downstream system.
type Adapter interface {
	// Publish sends a job completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *JobCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt i (1-based): 500ms, 1s, 2s...
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Retry runs fn up to 1+retries times with exponential backoff between
// attempts. An error for which permanent returns true stops immediately.
// name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, fn func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
