// Package main provides the rayjob CLI entrypoint.
//
// Usage:
//
//	rayjob [global options] <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: error
//   - 2: job finished FAILED or STOPPED (submit --wait, wait)
//   - 3: wait timed out
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/cmd"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cmd.NewApp(commit)
	app.ExitErrHandler = exitErrHandler

	if err := app.RunContext(ctx, os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if code, ok := report(os.Stderr, err); ok {
		os.Exit(code)
	}
}

// report prints err and returns the exit code it maps to. ok is false for
// a nil error.
func report(w io.Writer, err error) (code int, ok bool) {
	if err == nil {
		return 0, false
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code = exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code, true
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1, true
}
