package types //nolint:revive // types is a valid package name

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
)

func TestVersion_Format(t *testing.T) {
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	if !semverRegex.MatchString(Version) {
		t.Errorf("Version %q is not a valid semver", Version)
	}
	if !strings.HasSuffix(UserAgent, "/"+Version) {
		t.Errorf("UserAgent %q does not carry Version", UserAgent)
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusPending, false},
		{JobStatusRunning, false},
		{JobStatusStopped, true},
		{JobStatusSucceeded, true},
		{JobStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestJobStatus_JSON(t *testing.T) {
	data, err := json.Marshal(JobStatusRunning)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"RUNNING"` {
		t.Errorf("marshal = %s, want \"RUNNING\"", data)
	}

	var status JobStatus
	if err := json.Unmarshal([]byte(`"SUCCEEDED"`), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status != JobStatusSucceeded {
		t.Errorf("unmarshal = %s, want SUCCEEDED", status)
	}

	if err := json.Unmarshal([]byte(`"EXPLODED"`), &status); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseJobStatus_CaseInsensitive(t *testing.T) {
	got, err := ParseJobStatus(" failed ")
	if err != nil {
		t.Fatalf("ParseJobStatus: %v", err)
	}
	if got != JobStatusFailed {
		t.Errorf("got %s, want FAILED", got)
	}
}

func TestJobDetails_DecodesTypeField(t *testing.T) {
	payload := `{
		"type": "SUBMISSION",
		"entrypoint": "python script.py",
		"status": "PENDING",
		"submission_id": "raysubmit_123",
		"driver_info": null,
		"message": "Job has not started yet.",
		"start_time": 1700000000000,
		"metadata": {"owner": "ci"},
		"runtime_env": {"working_dir": "gcs://_ray_pkg_abc.zip"}
	}`

	var details JobDetails
	if err := json.Unmarshal([]byte(payload), &details); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if details.Type != JobTypeSubmission {
		t.Errorf("type = %s, want SUBMISSION", details.Type)
	}
	if details.ID() != "raysubmit_123" {
		t.Errorf("ID() = %q", details.ID())
	}
	if details.RuntimeEnv == nil || details.RuntimeEnv.WorkingDir != "gcs://_ray_pkg_abc.zip" {
		t.Errorf("runtime_env not decoded: %+v", details.RuntimeEnv)
	}
	if details.EndTime != nil {
		t.Errorf("end_time = %v, want nil", *details.EndTime)
	}
}

func TestJobSubmitRequest_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(JobSubmitRequest{Entrypoint: "echo hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"entrypoint":"echo hi"}` {
		t.Errorf("marshal = %s", data)
	}
}

func TestJobSubmitRequest_CloneIsDeep(t *testing.T) {
	cpus := 2.0
	orig := JobSubmitRequest{
		Entrypoint:        "python main.py",
		RuntimeEnv:        &RuntimeEnv{WorkingDir: "./src", EnvVars: map[string]string{"A": "1"}},
		Metadata:          map[string]string{"k": "v"},
		EntrypointNumCPUs: &cpus,
	}

	clone := orig.Clone()
	clone.RuntimeEnv.WorkingDir = "gcs://_ray_pkg_x.zip"
	clone.RuntimeEnv.EnvVars["A"] = "2"
	clone.Metadata["k"] = "changed"
	*clone.EntrypointNumCPUs = 8

	if orig.RuntimeEnv.WorkingDir != "./src" {
		t.Errorf("working_dir mutated: %s", orig.RuntimeEnv.WorkingDir)
	}
	if orig.RuntimeEnv.EnvVars["A"] != "1" {
		t.Error("env_vars mutated")
	}
	if orig.Metadata["k"] != "v" {
		t.Error("metadata mutated")
	}
	if *orig.EntrypointNumCPUs != 2 {
		t.Error("entrypoint_num_cpus mutated")
	}
}

func TestJobLogsResponse_Lines(t *testing.T) {
	r := JobLogsResponse{Logs: "one\ntwo\n"}
	lines := r.Lines()
	if len(lines) != 2 || lines[0] != "one" || lines[1] != "two" {
		t.Errorf("Lines() = %q", lines)
	}
	if got := (JobLogsResponse{}).Lines(); got != nil {
		t.Errorf("empty Lines() = %q, want nil", got)
	}
}

func TestError_IsKind(t *testing.T) {
	inner := errors.New("disk on fire")
	err := NewError(ErrIO, "archive", "/tmp/pkg.zip", inner)

	if !errors.Is(err, ErrIO) {
		t.Error("expected errors.Is(err, ErrIO)")
	}
	if errors.Is(err, ErrArchive) {
		t.Error("unexpected errors.Is(err, ErrArchive)")
	}
	if !errors.Is(err, inner) {
		t.Error("expected underlying error in chain")
	}
	if !strings.Contains(err.Error(), "/tmp/pkg.zip") {
		t.Errorf("message missing path: %s", err.Error())
	}
}
