// Package jobspec loads job submissions from YAML or JSON files.
//
// A spec file mirrors the submit request body. It is validated against an
// embedded JSON schema before decoding, so typos in field names and
// negative resource requests fail early with a path to the offending key.
//
//	entrypoint: python train.py --epochs 3
//	runtime_env:
//	  working_dir: ./src
//	  env_vars:
//	    MODE: fast
//	entrypoint_num_cpus: 2
//
// A relative working_dir is resolved against the job file's directory.
package jobspec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/rayjob/packaging"
	"github.com/justapithecus/rayjob/types"
)

const schemaID = "inmemory://jobspec.schema.json"

//go:embed schema/jobspec.schema.json
var schemaJSON []byte

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaID, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaID)
	})
	return compiled, compileErr
}

// Load reads, validates and decodes a spec file.
func Load(path string) (*types.JobSubmitRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewError(types.ErrIO, "read job spec", path, err)
	}
	req, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if env := req.RuntimeEnv; env != nil && env.WorkingDir != "" &&
		!packaging.IsURI(env.WorkingDir) && !filepath.IsAbs(env.WorkingDir) {
		base, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, types.NewError(types.ErrIO, "resolve working_dir", path, err)
		}
		env.WorkingDir = filepath.Join(base, env.WorkingDir)
	}
	return req, nil
}

// Parse validates and decodes spec content. JSON input is accepted as YAML.
func Parse(data []byte) (*types.JobSubmitRequest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewError(types.ErrValidation, "parse job spec", "", err)
	}
	if doc == nil {
		return nil, types.NewError(types.ErrValidation, "parse job spec", "", fmt.Errorf("empty document"))
	}

	// Round-trip through JSON so the schema sees JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, types.NewError(types.ErrValidation, "parse job spec", "", err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, types.NewError(types.ErrValidation, "parse job spec", "", err)
	}

	s, err := schema()
	if err != nil {
		return nil, fmt.Errorf("compile job spec schema: %w", err)
	}
	if err := s.Validate(value); err != nil {
		return nil, types.NewError(types.ErrValidation, "validate job spec", "", err)
	}

	var req types.JobSubmitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, types.NewError(types.ErrValidation, "decode job spec", "", err)
	}
	return &req, nil
}
