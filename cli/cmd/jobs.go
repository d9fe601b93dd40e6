package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/render"
	"github.com/justapithecus/rayjob/cli/tui"
	"github.com/justapithecus/rayjob/jobs"
	"github.com/justapithecus/rayjob/types"
)

// listWarningThreshold is the number of jobs above which list suggests --limit.
const listWarningThreshold = 100

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a job's current status (defaults to the last submission)",
		ArgsUsage: "[submission-id]",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			id, err := resolveID(c, e)
			if err != nil {
				return err
			}
			details, err := e.manager(c.Context, nil, false).Details(c.Context, id)
			if err != nil {
				return exitFor(err)
			}
			return r.Render(newJobView(details))
		},
	}
}

// WaitCommand returns the wait command.
func WaitCommand() *cli.Command {
	return &cli.Command{
		Name:      "wait",
		Usage:     "Wait for a job to reach a terminal status",
		ArgsUsage: "[submission-id]",
		Flags: append(OutputFlags(),
			&cli.DurationFlag{Name: "timeout", Usage: "Maximum wait (0 = no limit)"},
			&cli.BoolFlag{Name: "tail", Usage: "Stream logs to stderr while waiting"},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			id, err := resolveID(c, e)
			if err != nil {
				return err
			}
			return waitAndReport(c, e, e.manager(c.Context, nil, true), r, id, waitLimit(c, e))
		},
	}
}

// LogsCommand returns the logs command.
func LogsCommand() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Print a job's logs",
		ArgsUsage: "[submission-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "follow", Aliases: []string{"F"}, Usage: "Stream logs until the job finishes"},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			id, err := resolveID(c, e)
			if err != nil {
				return err
			}

			out := c.App.Writer
			if c.Bool("follow") {
				if err := tailLogs(c.Context, e, id, out); err != nil {
					return exitFor(err)
				}
				return nil
			}

			logs, err := e.manager(c.Context, nil, false).Logs(c.Context, id)
			if err != nil {
				return exitFor(err)
			}
			_, err = io.WriteString(out, logs)
			return err
		},
	}
}

// StopCommand returns the stop command.
func StopCommand() *cli.Command {
	return actionCommand("stop", "Stop a running job", func(ctx context.Context, m *jobs.Manager, id string) (bool, error) {
		return m.Stop(ctx, id)
	})
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return actionCommand("delete", "Delete a finished job's record from the dashboard", func(ctx context.Context, m *jobs.Manager, id string) (bool, error) {
		return m.Delete(ctx, id)
	})
}

func actionCommand(name, usage string, fn func(context.Context, *jobs.Manager, string) (bool, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<submission-id>",
		Flags:     OutputFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}
			id := c.Args().First()
			if id == "" {
				return cli.Exit(name+" requires a submission id", exitError)
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			changed, err := fn(c.Context, e.manager(c.Context, nil, false), id)
			if err != nil {
				return exitFor(err)
			}
			return r.Render(ActionResult{SubmissionID: id, Action: name, Changed: changed})
		},
	}
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List jobs known to the dashboard",
		Flags: append(OutputFlags(),
			&cli.StringFlag{Name: "status", Usage: "Filter by status: pending, running, stopped, succeeded, failed"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of jobs to return (0 = no limit)"},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}

			var filter types.JobStatus
			if s := c.String("status"); s != "" {
				if filter, err = types.ParseJobStatus(s); err != nil {
					return cli.Exit(err.Error(), exitError)
				}
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			all, err := e.manager(c.Context, nil, false).List(c.Context)
			if err != nil {
				return exitFor(err)
			}

			views := make([]JobView, 0, len(all))
			for i := range all {
				if filter != "" && all[i].Status != filter {
					continue
				}
				views = append(views, newJobView(&all[i]))
			}
			sortJobViews(views)

			limit := c.Int("limit")
			if limit > 0 && len(views) > limit {
				views = views[:limit]
			}
			if len(views) > listWarningThreshold && limit == 0 && isStderrTTY() {
				fmt.Fprintf(c.App.ErrWriter, "Warning: returning %d jobs. Consider using --limit to reduce output.\n\n", len(views))
			}
			return r.Render(views)
		},
	}
}

// sortJobViews orders newest first; jobs that have not started go last.
func sortJobViews(views []JobView) {
	slices.SortStableFunc(views, func(a, b JobView) int {
		return b.StartTime.Compare(a.StartTime)
	})
}

// resolveID returns the first argument or the last submission made against
// this dashboard.
func resolveID(c *cli.Context, e *env) (string, error) {
	if id := c.Args().First(); id != "" {
		return id, nil
	}
	last, ok, err := e.state.Last(e.client.BaseURL())
	if err != nil {
		e.logger.Warn("could not read submission state", map[string]any{"error": err})
	}
	if !ok {
		return "", cli.Exit("submission id required (no previous submission recorded for "+e.client.BaseURL()+")", exitError)
	}
	return last.ID, nil
}

func waitLimit(c *cli.Context, e *env) time.Duration {
	if c.IsSet("timeout") {
		return c.Duration("timeout")
	}
	return e.cfg.Wait.Timeout.Duration
}

// waitAndReport waits for id, renders the outcome and maps it to an exit code.
func waitAndReport(c *cli.Context, e *env, mgr *jobs.Manager, r *render.Renderer, id string, limit time.Duration) error {
	ctx := c.Context
	start := time.Now()

	stopTail := func(bool) {}
	if c.Bool("tail") {
		stopTail = startTail(ctx, e, id)
	}

	var (
		details *types.JobDetails
		err     error
	)
	if c.Bool("tui") {
		details, err = tui.RunWait(ctx, id, limit, func(ctx context.Context, obs jobs.Observer) (*types.JobDetails, error) {
			return mgr.WaitForTerminal(ctx, id, limit, jobs.WithObserver(obs))
		})
	} else {
		details, err = mgr.WaitForTerminal(ctx, id, limit, jobs.WithObserver(progressPrinter(e.stderr, r, id)))
	}
	stopTail(err == nil)

	result := WaitResult{SubmissionID: id, Elapsed: time.Since(start).Truncate(time.Millisecond).String()}
	var timeoutErr *jobs.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		result.Status = string(timeoutErr.Last)
		result.TimedOut = true
		if rerr := r.Render(result); rerr != nil {
			return rerr
		}
		return cli.Exit(err.Error(), exitTimeout)
	case err != nil:
		return exitFor(err)
	}

	result.Status = string(details.Status)
	result.Message = details.MessageText()
	if err := r.Render(result); err != nil {
		return err
	}
	if details.Status != types.JobStatusSucceeded {
		return cli.Exit("", exitJobFailed)
	}
	return nil
}

// progressPrinter reports status changes on a terminal stderr.
func progressPrinter(w io.Writer, r *render.Renderer, id string) jobs.Observer {
	if !isStderrTTY() {
		return nil
	}
	var last types.JobStatus
	return func(d *types.JobDetails, elapsed time.Duration) {
		if d.Status == last {
			return
		}
		last = d.Status
		fmt.Fprintf(w, "%s: %s (%s)\n", id, r.Status(string(d.Status)), elapsed.Truncate(100*time.Millisecond))
	}
}

// tailGrace is how long a finished wait lets the log tail drain.
const tailGrace = 2 * time.Second

// startTail streams logs to stderr alongside a wait. The returned stop
// func cancels the stream and waits for it to end; with drain set it first
// gives the dashboard tailGrace to close the stream itself.
func startTail(ctx context.Context, e *env, id string) func(drain bool) {
	tailCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := tailLogs(tailCtx, e, id, e.stderr)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("log tail ended", map[string]any{"submission_id": id, "error": err})
		}
	}()

	return func(drain bool) {
		if drain {
			select {
			case <-done:
			case <-time.After(tailGrace):
			}
		}
		cancel()
		<-done
	}
}

// tailLogs streams log chunks to w until the dashboard closes the stream.
func tailLogs(ctx context.Context, e *env, id string, w io.Writer) error {
	return e.client.TailJobLogs(ctx, id, func(chunk string) error {
		_, err := io.WriteString(w, chunk)
		return err
	})
}

// exitFor maps an operation error to an exit code.
func exitFor(err error) error {
	if errors.Is(err, types.ErrTimeout) {
		return cli.Exit(err.Error(), exitTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return cli.Exit("interrupted", exitError)
	}
	return cli.Exit(strings.TrimSpace(err.Error()), exitError)
}

// isStderrTTY reports whether stderr is a terminal.
func isStderrTTY() bool {
	return render.IsTerminal(os.Stderr)
}
