// Package cmd provides CLI commands for the rayjob binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/dashboard"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitError     = 1
	exitJobFailed = 2 // job ended FAILED or STOPPED under --wait
	exitTimeout   = 3
)

// Global flags, set before the command name.
var (
	// ConfigFlag points at a rayjob.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to rayjob.yaml",
		EnvVars: []string{"RAYJOB_CONFIG"},
	}

	// AddressFlag overrides the dashboard URL.
	AddressFlag = &cli.StringFlag{
		Name:    "address",
		Usage:   "Dashboard URL (default " + dashboard.DefaultURL + ")",
		EnvVars: []string{"RAY_DASHBOARD_ADDRESS"},
	}

	// LogLevelFlag sets the log level: debug, info, warn, error.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}

	// MetricsTextfileFlag writes client counters in Prometheus text format on exit.
	MetricsTextfileFlag = &cli.StringFlag{
		Name:  "metrics-textfile",
		Usage: "Write Prometheus counters to this file on exit",
	}
)

// GlobalFlags returns the app-level flags.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, AddressFlag, LogLevelFlag, MetricsTextfileFlag}
}

// Output flags shared by every command that renders a result.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables the live Bubble Tea view while waiting.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show a live view while waiting (submit --wait, wait)",
	}
)

// OutputFlags returns the shared output flags. --tui is included
// everywhere so unsupported commands can reject it explicitly.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag, TUIFlag}
}

func rejectTUI(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for "+c.Command.Name, exitError)
	}
	return nil
}
