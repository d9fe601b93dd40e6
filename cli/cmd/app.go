package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/types"
)

// NewApp assembles the rayjob CLI. The caller sets ExitErrHandler.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:                   "rayjob",
		Usage:                  "Submit and manage jobs on a Ray dashboard",
		Version:                fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:                  GlobalFlags(),
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			SubmitCommand(),
			StatusCommand(),
			WaitCommand(),
			LogsCommand(),
			StopCommand(),
			DeleteCommand(),
			ListCommand(),
			PackageCommand(),
			HistoryCommand(),
			VersionCommand(commit),
		},
	}
}
