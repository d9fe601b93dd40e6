package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rayjob/cli/render"
	"github.com/justapithecus/rayjob/journal"
)

// HistoryCommand returns the history command, which reads the local
// submission journal.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show recorded submissions and outcomes, newest first",
		ArgsUsage: "[submission-id]",
		Flags: append(OutputFlags(),
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of entries (0 = no limit)", Value: 20},
		),
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

			j, err := e.journal(c.Context)
			if err != nil {
				return exitFor(err)
			}
			if j == nil {
				return cli.Exit("journal is disabled (journal.backend: none)", exitError)
			}

			var entries []journal.Entry
			if id := c.Args().First(); id != "" {
				entries, err = j.ForSubmission(c.Context, id)
				if limit := c.Int("limit"); err == nil && limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
			} else {
				entries, err = j.History(c.Context, c.Int("limit"))
			}
			if err != nil {
				return exitFor(err)
			}

			views := make([]HistoryView, 0, len(entries))
			for _, en := range entries {
				views = append(views, HistoryView{
					Timestamp:    en.Timestamp,
					Event:        en.Event,
					SubmissionID: en.SubmissionID,
					Status:       en.Status,
					Entrypoint:   en.Entrypoint,
					WorkingDir:   en.WorkingDir,
					DurationMs:   en.DurationMs,
				})
			}
			return r.Render(views)
		},
	}
}
