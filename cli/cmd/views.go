package cmd

import (
	"time"

	"github.com/justapithecus/rayjob/types"
)

// JobView is the rendered form of a job for status and list.
type JobView struct {
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	Status       string    `json:"status" yaml:"status"`
	Type         string    `json:"type" yaml:"type"`
	Entrypoint   string    `json:"entrypoint" yaml:"entrypoint"`
	WorkingDir   string    `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	StartTime    time.Time `json:"start_time,omitzero" yaml:"start_time,omitempty"`
	EndTime      time.Time `json:"end_time,omitzero" yaml:"end_time,omitempty"`
	ExitCode     *int      `json:"driver_exit_code,omitempty" yaml:"driver_exit_code,omitempty"`
	Message      string    `json:"message,omitempty" yaml:"message,omitempty"`
}

func newJobView(d *types.JobDetails) JobView {
	v := JobView{
		SubmissionID: d.ID(),
		Status:       string(d.Status),
		Type:         string(d.Type),
		Entrypoint:   d.Entrypoint,
		StartTime:    fromMillis(d.StartTime),
		EndTime:      fromMillis(d.EndTime),
		ExitCode:     d.DriverExitCode,
		Message:      d.MessageText(),
	}
	if d.RuntimeEnv != nil {
		v.WorkingDir = d.RuntimeEnv.WorkingDir
	}
	return v
}

func fromMillis(ms *uint64) time.Time {
	if ms == nil || *ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(*ms)).UTC()
}

// SubmitResult is printed by submit without --wait.
type SubmitResult struct {
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
	Dashboard    string `json:"dashboard" yaml:"dashboard"`
	WorkingDir   string `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
}

// WaitResult is printed when a wait ends.
type WaitResult struct {
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
	Status       string `json:"status" yaml:"status"`
	Message      string `json:"message,omitempty" yaml:"message,omitempty"`
	Elapsed      string `json:"elapsed" yaml:"elapsed"`
	TimedOut     bool   `json:"timed_out,omitempty" yaml:"timed_out,omitempty"`
}

// ActionResult reports stop and delete.
type ActionResult struct {
	SubmissionID string `json:"submission_id" yaml:"submission_id"`
	Action       string `json:"action" yaml:"action"`
	Changed      bool   `json:"changed" yaml:"changed"`
}

// PackageResult reports package subcommands.
type PackageResult struct {
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	URI      string `json:"uri,omitempty" yaml:"uri,omitempty"`
	Hash     string `json:"hash,omitempty" yaml:"hash,omitempty"`
	Archive  string `json:"archive,omitempty" yaml:"archive,omitempty"`
	Bytes    int64  `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Exists   *bool  `json:"exists,omitempty" yaml:"exists,omitempty"`
	Uploaded *bool  `json:"uploaded,omitempty" yaml:"uploaded,omitempty"`
}

// HistoryView is one journal entry as rendered by history.
type HistoryView struct {
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	Event        string    `json:"event_type" yaml:"event_type"`
	SubmissionID string    `json:"submission_id" yaml:"submission_id"`
	Status       string    `json:"status,omitempty" yaml:"status,omitempty"`
	Entrypoint   string    `json:"entrypoint,omitempty" yaml:"entrypoint,omitempty"`
	WorkingDir   string    `json:"working_dir,omitempty" yaml:"working_dir,omitempty"`
	DurationMs   int64     `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
}

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version   string                 `json:"version" yaml:"version"`
	Commit    string                 `json:"commit" yaml:"commit"`
	UserAgent string                 `json:"user_agent" yaml:"user_agent"`
	Dashboard *types.VersionResponse `json:"dashboard,omitempty" yaml:"dashboard,omitempty"`
}
