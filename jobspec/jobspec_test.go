package jobspec

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/rayjob/types"
)

func TestParse_YAML(t *testing.T) {
	req, err := Parse([]byte(`
entrypoint: python train.py
submission_id: train-1
metadata:
  owner: ml
entrypoint_num_cpus: 1.5
entrypoint_memory: 1024
entrypoint_resources:
  accel: 1
runtime_env:
  working_dir: gcs://_ray_pkg_abc.zip
  env_vars:
    MODE: fast
  py_modules: [utils]
  config:
    setup_timeout_seconds: 600
    eager_install: true
  pip:
    packages: [numpy, pandas]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if req.Entrypoint != "python train.py" || req.SubmissionID != "train-1" {
		t.Errorf("req = %+v", req)
	}
	if req.Metadata["owner"] != "ml" {
		t.Errorf("Metadata = %v", req.Metadata)
	}
	if req.EntrypointNumCPUs == nil || *req.EntrypointNumCPUs != 1.5 {
		t.Errorf("EntrypointNumCPUs = %v", req.EntrypointNumCPUs)
	}
	if req.EntrypointMemory == nil || *req.EntrypointMemory != 1024 {
		t.Errorf("EntrypointMemory = %v", req.EntrypointMemory)
	}
	if req.EntrypointResources["accel"] != 1 {
		t.Errorf("EntrypointResources = %v", req.EntrypointResources)
	}

	env := req.RuntimeEnv
	if env == nil {
		t.Fatal("RuntimeEnv is nil")
	}
	if env.WorkingDir != "gcs://_ray_pkg_abc.zip" || env.EnvVars["MODE"] != "fast" {
		t.Errorf("RuntimeEnv = %+v", env)
	}
	if env.Config == nil || env.Config.SetupTimeoutSeconds == nil || *env.Config.SetupTimeoutSeconds != 600 {
		t.Errorf("Config = %+v", env.Config)
	}
	if env.Pip == nil || len(env.Pip.Packages) != 2 {
		t.Errorf("Pip = %+v", env.Pip)
	}
}

func TestParse_JSON(t *testing.T) {
	req, err := Parse([]byte(`{"entrypoint": "echo hi", "runtime_env": {"env_vars": {"A": "1"}}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if req.Entrypoint != "echo hi" || req.RuntimeEnv.EnvVars["A"] != "1" {
		t.Errorf("req = %+v", req)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing entrypoint", "submission_id: x\n"},
		{"empty entrypoint", "entrypoint: ''\n"},
		{"unknown field", "entrypoint: x\nentry_point: y\n"},
		{"negative cpus", "entrypoint: x\nentrypoint_num_cpus: -1\n"},
		{"fractional memory", "entrypoint: x\nentrypoint_memory: 1.5\n"},
		{"env var not string", "entrypoint: x\nruntime_env:\n  env_vars:\n    A: [1]\n"},
		{"unknown runtime env key", "entrypoint: x\nruntime_env:\n  conda: base\n"},
		{"pip without packages", "entrypoint: x\nruntime_env:\n  pip: {}\n"},
		{"not yaml", "entrypoint: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, types.ErrValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestLoad_ResolvesRelativeWorkingDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte("entrypoint: python main.py\nruntime_env:\n  working_dir: ./src\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join(dir, "src")
	if req.RuntimeEnv.WorkingDir != want {
		t.Errorf("WorkingDir = %q, want %q", req.RuntimeEnv.WorkingDir, want)
	}
}

func TestLoad_KeepsURIWorkingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	if err := os.WriteFile(path, []byte("entrypoint: x\nruntime_env:\n  working_dir: s3://bucket/code.zip\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	req, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if req.RuntimeEnv.WorkingDir != "s3://bucket/code.zip" {
		t.Errorf("WorkingDir = %q", req.RuntimeEnv.WorkingDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, types.ErrIO) {
		t.Errorf("err = %v, want io", err)
	}
}
