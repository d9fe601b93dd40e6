package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/render"
	"github.com/justapithecus/rayjob/types"
)

// VersionCommand returns the version command. It only contacts the
// dashboard with --remote.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: append(OutputFlags(),
			&cli.BoolFlag{Name: "remote", Usage: "Also report the dashboard's version"},
		),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			if err := rejectTUI(c); err != nil {
				return err
			}

			resp := VersionResponse{
				Version:   types.Version,
				Commit:    commit,
				UserAgent: types.UserAgent,
			}
			if c.Bool("remote") {
				e, err := newEnv(c)
				if err != nil {
					return err
				}
				defer func() { _ = e.close() }()

				resp.UserAgent = e.client.UserAgent()
				v, err := e.client.Version(c.Context)
				if err != nil {
					return exitFor(err)
				}
				resp.Dashboard = v
			}
			return r.Render(resp)
		},
	}
}
