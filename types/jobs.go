package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobStatus is the dashboard-reported state of a job.
// Transitions are owned by the dashboard; clients only observe them.
type JobStatus string

const (
	// JobStatusPending means the job is accepted but not yet running.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusRunning means the driver is executing the entrypoint.
	JobStatusRunning JobStatus = "RUNNING"
	// JobStatusStopped means the job was stopped by a user.
	JobStatusStopped JobStatus = "STOPPED"
	// JobStatusSucceeded means the entrypoint exited with code 0.
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	// JobStatusFailed means the entrypoint or its setup failed.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition can occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusStopped, JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects statuses outside the known vocabulary.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, err := ParseJobStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParseJobStatus parses a status name case-insensitively.
func ParseJobStatus(s string) (JobStatus, error) {
	switch status := JobStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case JobStatusPending, JobStatusRunning, JobStatusStopped, JobStatusSucceeded, JobStatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// JobType distinguishes submitted jobs from drivers started directly on the cluster.
type JobType string

const (
	// JobTypeSubmission is a job submitted through the job API.
	JobTypeSubmission JobType = "SUBMISSION"
	// JobTypeDriver is a driver script connected to the cluster directly.
	JobTypeDriver JobType = "DRIVER"
)

// JobSubmitRequest is the payload of POST /api/jobs/.
type JobSubmitRequest struct {
	Entrypoint          string             `json:"entrypoint" yaml:"entrypoint"`
	SubmissionID        string             `json:"submission_id,omitempty" yaml:"submission_id,omitempty"`
	RuntimeEnv          *RuntimeEnv        `json:"runtime_env,omitempty" yaml:"runtime_env,omitempty"`
	Metadata            map[string]string  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	EntrypointNumCPUs   *float64           `json:"entrypoint_num_cpus,omitempty" yaml:"entrypoint_num_cpus,omitempty"`
	EntrypointNumGPUs   *float64           `json:"entrypoint_num_gpus,omitempty" yaml:"entrypoint_num_gpus,omitempty"`
	EntrypointMemory    *uint64            `json:"entrypoint_memory,omitempty" yaml:"entrypoint_memory,omitempty"`
	EntrypointResources map[string]float64 `json:"entrypoint_resources,omitempty" yaml:"entrypoint_resources,omitempty"`
}

// Clone returns a deep copy of the request.
func (r JobSubmitRequest) Clone() JobSubmitRequest {
	out := r
	out.RuntimeEnv = r.RuntimeEnv.Clone()
	out.Metadata = cloneStrings(r.Metadata)
	if r.EntrypointNumCPUs != nil {
		v := *r.EntrypointNumCPUs
		out.EntrypointNumCPUs = &v
	}
	if r.EntrypointNumGPUs != nil {
		v := *r.EntrypointNumGPUs
		out.EntrypointNumGPUs = &v
	}
	if r.EntrypointMemory != nil {
		v := *r.EntrypointMemory
		out.EntrypointMemory = &v
	}
	if r.EntrypointResources != nil {
		out.EntrypointResources = make(map[string]float64, len(r.EntrypointResources))
		for k, v := range r.EntrypointResources {
			out.EntrypointResources[k] = v
		}
	}
	return out
}

// JobDriverInfo describes the driver process of a running job.
type JobDriverInfo struct {
	ID            string `json:"id"`
	NodeIPAddress string `json:"node_ip_address"`
	PID           string `json:"pid"`
}

// JobDetails is returned by GET /api/jobs/ and GET /api/jobs/{id}.
type JobDetails struct {
	Type                   JobType           `json:"type"`
	Entrypoint             string            `json:"entrypoint"`
	Status                 JobStatus         `json:"status"`
	SubmissionID           *string           `json:"submission_id"`
	DriverInfo             *JobDriverInfo    `json:"driver_info"`
	Message                *string           `json:"message"`
	ErrorType              *string           `json:"error_type"`
	StartTime              *uint64           `json:"start_time"`
	EndTime                *uint64           `json:"end_time"`
	Metadata               map[string]string `json:"metadata"`
	RuntimeEnv             *RuntimeEnv       `json:"runtime_env"`
	DriverAgentHTTPAddress *string           `json:"driver_agent_http_address"`
	DriverNodeID           *string           `json:"driver_node_id"`
	DriverExitCode         *int              `json:"driver_exit_code"`
}

// ID returns the submission id, or an empty string for driver jobs without one.
func (d *JobDetails) ID() string {
	if d == nil || d.SubmissionID == nil {
		return ""
	}
	return *d.SubmissionID
}

// MessageText returns the status message, or an empty string.
func (d *JobDetails) MessageText() string {
	if d == nil || d.Message == nil {
		return ""
	}
	return *d.Message
}

// JobSubmitResponse is returned by POST /api/jobs/.
type JobSubmitResponse struct {
	SubmissionID string `json:"submission_id"`
}

// JobStopResponse is returned by POST /api/jobs/{id}/stop.
type JobStopResponse struct {
	Stopped bool `json:"stopped"`
}

// JobDeleteResponse is returned by DELETE /api/jobs/{id}.
type JobDeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// JobLogsResponse is returned by GET /api/jobs/{id}/logs.
type JobLogsResponse struct {
	Logs string `json:"logs"`
}

// Lines splits the logs into lines without trailing newlines.
func (r JobLogsResponse) Lines() []string {
	if r.Logs == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(r.Logs, "\n"), "\n")
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
