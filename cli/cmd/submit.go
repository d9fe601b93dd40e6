package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/render"
	"github.com/justapithecus/rayjob/cli/state"
	"github.com/justapithecus/rayjob/jobspec"
	"github.com/justapithecus/rayjob/types"
)

// SubmitCommand returns the submit command.
//
//	rayjob submit --working-dir ./src -- python main.py
//	rayjob submit --spec job.yaml --wait --timeout 30m
func SubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a job, packaging a local working directory if needed",
		ArgsUsage: "[-- entrypoint...]",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "spec", Usage: "Job spec file (YAML or JSON)"},
			&cli.StringFlag{Name: "submission-id", Usage: "Submission id (generated when omitted)"},
			&cli.StringFlag{Name: "working-dir", Usage: "Local directory or package URI"},
			&cli.StringSliceFlag{Name: "env", Usage: "Environment variable KEY=VALUE (repeatable)"},
			&cli.StringSliceFlag{Name: "metadata", Usage: "Metadata KEY=VALUE (repeatable)"},
			&cli.StringSliceFlag{Name: "pip", Usage: "pip package (repeatable)"},
			&cli.StringSliceFlag{Name: "py-module", Usage: "Python module URI or path (repeatable)"},
			&cli.Float64Flag{Name: "num-cpus", Usage: "CPUs reserved for the entrypoint"},
			&cli.Float64Flag{Name: "num-gpus", Usage: "GPUs reserved for the entrypoint"},
			&cli.Uint64Flag{Name: "memory", Usage: "Memory in bytes reserved for the entrypoint"},
			&cli.StringFlag{Name: "packages-backend", Usage: "Package store: dashboard or s3 (overrides config)"},
			&cli.BoolFlag{Name: "wait", Usage: "Wait for the job to finish"},
			&cli.DurationFlag{Name: "timeout", Usage: "Maximum wait (0 = no limit)"},
			&cli.BoolFlag{Name: "tail", Usage: "Stream logs to stderr while waiting"},
		),
		Action: submitAction,
	}
}

func submitAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Bool("tui") && !c.Bool("wait") {
		return cli.Exit("--tui requires --wait", exitError)
	}

	req, err := buildRequest(c)
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer func() { _ = e.close() }()

	ctx := c.Context
	coord, err := e.coordinator(ctx, c.String("packages-backend"))
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	mgr := e.manager(ctx, coord, true)

	id, err := mgr.Submit(ctx, req)
	if err != nil {
		return exitFor(err)
	}

	remembered := state.Submission{
		ID:          id,
		Dashboard:   e.client.BaseURL(),
		Entrypoint:  req.Entrypoint,
		SubmittedAt: time.Now(),
	}
	if req.RuntimeEnv != nil {
		remembered.WorkingDir = req.RuntimeEnv.WorkingDir
	}
	if err := e.state.Remember(remembered); err != nil {
		e.logger.Warn("could not remember submission", map[string]any{"error": err})
	}

	if !c.Bool("wait") {
		return r.Render(SubmitResult{SubmissionID: id, Dashboard: e.client.BaseURL()})
	}
	return waitAndReport(c, e, mgr, r, id, waitLimit(c, e))
}

// buildRequest merges --spec with flags; flags win.
func buildRequest(c *cli.Context) (types.JobSubmitRequest, error) {
	var req types.JobSubmitRequest
	if path := c.String("spec"); path != "" {
		loaded, err := jobspec.Load(path)
		if err != nil {
			return req, err
		}
		req = *loaded
	}

	if args := c.Args().Slice(); len(args) > 0 {
		req.Entrypoint = strings.Join(args, " ")
	}
	if req.Entrypoint == "" {
		return req, fmt.Errorf("entrypoint required: pass --spec or a command after --")
	}
	if c.IsSet("submission-id") {
		req.SubmissionID = c.String("submission-id")
	}

	runtimeEnv := func() *types.RuntimeEnv {
		if req.RuntimeEnv == nil {
			req.RuntimeEnv = &types.RuntimeEnv{}
		}
		return req.RuntimeEnv
	}

	if c.IsSet("working-dir") {
		runtimeEnv().WorkingDir = c.String("working-dir")
	}
	for _, kv := range c.StringSlice("env") {
		k, v, err := splitPair("env", kv)
		if err != nil {
			return req, err
		}
		runtimeEnv().SetEnvVar(k, v)
	}
	if pkgs := c.StringSlice("pip"); len(pkgs) > 0 {
		runtimeEnv().Pip = &types.PackageSettings{Packages: pkgs}
	}
	if mods := c.StringSlice("py-module"); len(mods) > 0 {
		runtimeEnv().PyModules = append(runtimeEnv().PyModules, mods...)
	}

	for _, kv := range c.StringSlice("metadata") {
		k, v, err := splitPair("metadata", kv)
		if err != nil {
			return req, err
		}
		if req.Metadata == nil {
			req.Metadata = make(map[string]string)
		}
		req.Metadata[k] = v
	}

	if c.IsSet("num-cpus") {
		v := c.Float64("num-cpus")
		req.EntrypointNumCPUs = &v
	}
	if c.IsSet("num-gpus") {
		v := c.Float64("num-gpus")
		req.EntrypointNumGPUs = &v
	}
	if c.IsSet("memory") {
		v := c.Uint64("memory")
		req.EntrypointMemory = &v
	}
	return req, nil
}

func splitPair(flag, kv string) (string, string, error) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("--%s %q: want KEY=VALUE", flag, kv)
	}
	return k, v, nil
}
