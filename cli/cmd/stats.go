package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rawzeo/cli/render"
)

// StatsCommand returns the stats command.
// Stats decodes its sources without emitting records and shows the
// session's metrics snapshot.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Decode replay files silently and show decoder statistics",
		ArgsUsage: "[replay-file...]",
		Flags: concatFlags(
			sessionFlags(),
			sourceFlags(),
			decoderFlags(),
			TUIReadOnlyFlags(),
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return configExit(err)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return configExit(err)
	}

	run, err := runSession(c, cfg, sessionHooks{})
	if err != nil {
		return err
	}
	snap := run.pipeline.collector.Snapshot()

	if c.Bool("tui") {
		if err := r.RenderTUI("stats_session", snap); err != nil {
			return err
		}
	} else if err := r.Render(snap); err != nil {
		return err
	}
	return exitFor(run.result.Outcome)
}
